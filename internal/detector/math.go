package detector

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pulkyeet/arbscan/internal/pricecache"
)

// AmountOut computes the constant-product swap output
//
//	out = reserveOut * inWithFee / (reserveIn + inWithFee)
//
// with the venue fee in basis points, entirely in 256-bit integer
// arithmetic. Profit decisions of fractions of a percent must not pick up
// binary floating point representation error, so no float ever touches an
// amount here.
func AmountOut(amountIn, reserveIn, reserveOut *uint256.Int, feeBps uint64) *uint256.Int {
	if amountIn.IsZero() || reserveIn.IsZero() || reserveOut.IsZero() {
		return uint256.NewInt(0)
	}

	inWithFee := new(uint256.Int).Mul(amountIn, uint256.NewInt(10000-feeBps))

	num, overflow := new(uint256.Int).MulOverflow(inWithFee, reserveOut)
	if overflow {
		return uint256.NewInt(0)
	}

	den := new(uint256.Int).Mul(reserveIn, uint256.NewInt(10000))
	den.Add(den, inWithFee)

	return num.Div(num, den)
}

// quoteOut runs amountIn of tokenIn through a snapshot's reserves.
func quoteOut(snap *pricecache.Snapshot, tokenIn common.Address, amountIn *uint256.Int) *uint256.Int {
	if tokenIn == snap.Token0 {
		return AmountOut(amountIn, snap.Reserve0, snap.Reserve1, snap.FeeBps)
	}
	return AmountOut(amountIn, snap.Reserve1, snap.Reserve0, snap.FeeBps)
}

// reservesFor orients a snapshot's reserves as (base, quote).
func reservesFor(snap *pricecache.Snapshot, base common.Address) (resBase, resQuote *uint256.Int) {
	if base == snap.Token0 {
		return snap.Reserve0, snap.Reserve1
	}
	return snap.Reserve1, snap.Reserve0
}

// SpreadBps returns the relative difference between the sell-side and
// buy-side implied quote price, in basis points. The price of the quote
// asset in base terms on venue v is resBase_v / resQuote_v; the spread is
// computed by cross-multiplication so it stays exact:
//
//	spread = (pSell/pBuy - 1) * 10000
//	       = (sellBase*buyQuote - buyBase*sellQuote) * 10000 / (buyBase*sellQuote)
//
// Negative when the sell venue is actually cheaper.
func SpreadBps(buy, sell *pricecache.Snapshot, base common.Address) int64 {
	buyBase, buyQuote := reservesFor(buy, base)
	sellBase, sellQuote := reservesFor(sell, base)

	// products can exceed 256 bits for deep pools; big.Int keeps it exact
	lhs := new(big.Int).Mul(sellBase.ToBig(), buyQuote.ToBig())
	rhs := new(big.Int).Mul(buyBase.ToBig(), sellQuote.ToBig())
	if rhs.Sign() == 0 {
		return 0
	}

	num := new(big.Int).Sub(lhs, rhs)
	num.Mul(num, big.NewInt(10000))
	return num.Div(num, rhs).Int64()
}
