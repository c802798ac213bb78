package detector

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pulkyeet/arbscan/internal/pricecache"
	"github.com/stretchr/testify/require"
)

func TestAmountOut(t *testing.T) {
	// floor(9_970_000 * 500_000 / (10_000_000_000 + 9_970_000)) = 498
	out := AmountOut(uint256.NewInt(1000), uint256.NewInt(1_000_000), uint256.NewInt(500_000), 30)
	require.Equal(t, uint64(498), out.Uint64())

	// zero fee round-trips the plain constant-product formula
	out = AmountOut(uint256.NewInt(1000), uint256.NewInt(1_000_000), uint256.NewInt(1_000_000), 0)
	require.Equal(t, uint64(999), out.Uint64())
}

func TestAmountOutDegenerate(t *testing.T) {
	zero := uint256.NewInt(0)
	one := uint256.NewInt(1)

	require.True(t, AmountOut(zero, one, one, 30).IsZero())
	require.True(t, AmountOut(one, zero, one, 30).IsZero())
	require.True(t, AmountOut(one, one, zero, 30).IsZero())
}

func TestAmountOutNeverDrainsPool(t *testing.T) {
	reserveOut := uint256.NewInt(1_000_000)
	// even an absurdly large input cannot buy the whole reserve
	in := uint256.NewInt(0).Lsh(uint256.NewInt(1), 120)
	out := AmountOut(in, uint256.NewInt(1_000_000), reserveOut, 30)
	require.True(t, out.Lt(reserveOut))
}

func snapWithReserves(venue string, t0, t1 common.Address, r0, r1 *uint256.Int) *pricecache.Snapshot {
	return &pricecache.Snapshot{
		Key:      pricecache.Key{Chain: 1, Venue: venue},
		Token0:   t0,
		Token1:   t1,
		Reserve0: r0,
		Reserve1: r1,
		FeeBps:   5,
	}
}

func TestSpreadBps(t *testing.T) {
	usdc := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

	// weth is 60bps more expensive in usdc terms on venue b
	a := snapWithReserves("a", usdc, weth,
		uint256.MustFromDecimal("5000000000000"),
		uint256.MustFromDecimal("2000000000000000000000"))
	b := snapWithReserves("b", usdc, weth,
		uint256.MustFromDecimal("5030000000000"),
		uint256.MustFromDecimal("2000000000000000000000"))

	require.Equal(t, int64(60), SpreadBps(a, b, usdc))
	require.Equal(t, int64(-60), SpreadBps(b, a, usdc))
	require.Equal(t, int64(0), SpreadBps(a, a, usdc))
}

func TestQuoteOutOrientation(t *testing.T) {
	usdc := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

	snap := snapWithReserves("a", usdc, weth, uint256.NewInt(1_000_000), uint256.NewInt(500_000))
	snap.FeeBps = 30

	// token0 in: reserves used as (r0, r1); token1 in: flipped
	forward := quoteOut(snap, usdc, uint256.NewInt(1000))
	require.Equal(t, uint64(498), forward.Uint64())

	backward := quoteOut(snap, weth, uint256.NewInt(1000))
	expected := AmountOut(uint256.NewInt(1000), uint256.NewInt(500_000), uint256.NewInt(1_000_000), 30)
	require.Equal(t, expected, backward)
}
