package chains

import (
	"bytes"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainID identifies an EVM chain (1 = mainnet, 137 = polygon, ...)
type ChainID uint64

// Token describes an ERC20 tracked on one chain. Decimals and the USD
// reference price are fixed at registry load.
type Token struct {
	Chain    ChainID
	Address  common.Address
	Symbol   string
	Decimals int

	// USDPriceE8 is a static reference price with 8 fixed decimals,
	// used only to convert native gas cost into the profit token.
	USDPriceE8 *big.Int
}

// VenueKind selects the on-chain observation and quoting path for a venue.
type VenueKind int

const (
	ConstantProduct VenueKind = iota
	ConcentratedLiquidity
)

func (k VenueKind) String() string {
	switch k {
	case ConstantProduct:
		return "constant_product"
	case ConcentratedLiquidity:
		return "concentrated_liquidity"
	default:
		return fmt.Sprintf("venuekind(%d)", int(k))
	}
}

// Venue is one DEX deployment on one chain. Read-only after registry load.
type Venue struct {
	Name         string
	Chain        ChainID
	Kind         VenueKind
	Router       common.Address
	Factory      common.Address
	InitCodeHash common.Hash
	FeeBps       uint64
}

// Pair is a tracked token pair. Notional (and therefore profit) is
// denominated in Base.
type Pair struct {
	Base     Token
	Quote    Token
	Notional *big.Int
}

func (p Pair) String() string {
	return p.Quote.Symbol + "/" + p.Base.Symbol
}

// Key returns the canonical address-sorted identity of the pair.
func (p Pair) Key() PairKey {
	return NewPairKey(p.Base.Address, p.Quote.Address)
}

// PairKey is the ownership-free identity of a pair: the two token
// addresses in ascending byte order, as uniswap factories store them.
type PairKey struct {
	Token0 common.Address
	Token1 common.Address
}

func NewPairKey(a, b common.Address) PairKey {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return PairKey{Token0: a, Token1: b}
	}
	return PairKey{Token0: b, Token1: a}
}

// FlashLoanProvider is one flash-loan source with a flat bps fee model.
type FlashLoanProvider struct {
	Name        string
	Chain       ChainID
	Pool        common.Address
	FeeBps      uint64
	MaxNotional *big.Int
}

// Chain bundles everything needed to poll one chain.
type Chain struct {
	Name         string
	ID           ChainID
	Endpoints    []string
	PollInterval time.Duration
	RPCTimeout   time.Duration
	RatePerSec   float64
	MaxInFlight  int

	// NativeUSDE8 prices the native gas asset (1e8 fixed point).
	NativeUSDE8     *big.Int
	GasUnitEstimate uint64

	Tokens []Token
	Pairs  []Pair
	Venues []Venue
}
