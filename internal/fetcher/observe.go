package fetcher

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pulkyeet/arbscan/internal/chains"
	"github.com/pulkyeet/arbscan/internal/pricecache"
)

// V2-style pair: getReserves only
const pairABIJSON = `[
	{
		"constant": true,
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{"internalType": "uint112", "name": "reserve0", "type": "uint112"},
			{"internalType": "uint112", "name": "reserve1", "type": "uint112"},
			{"internalType": "uint32",  "name": "blockTimestampLast", "type": "uint32"}
		],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	}
]`

// Concentrated-liquidity pool: slot0 (sqrt price) + in-range liquidity
const clPoolABIJSON = `[
	{
		"inputs": [],
		"name": "slot0",
		"outputs": [
			{"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
			{"internalType": "int24",   "name": "tick", "type": "int24"},
			{"internalType": "uint16",  "name": "observationIndex", "type": "uint16"},
			{"internalType": "uint16",  "name": "observationCardinality", "type": "uint16"},
			{"internalType": "uint16",  "name": "observationCardinalityNext", "type": "uint16"},
			{"internalType": "uint8",   "name": "feeProtocol", "type": "uint8"},
			{"internalType": "bool",    "name": "unlocked", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "liquidity",
		"outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

var (
	pairABI   = mustABI(pairABIJSON)
	clPoolABI = mustABI(clPoolABIJSON)
)

func mustABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	return parsed
}

// call runs a packed method against addr at blockNum. Empty returndata on
// a successful call means no contract at the address: the venue's factory
// never deployed this pair.
func call(ctx context.Context, client Client, contract abi.ABI, addr common.Address,
	method string, blockNum *big.Int) ([]interface{}, error) {

	data, err := contract.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, blockNum)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(result) == 0 {
		return nil, ErrPairNotFound
	}

	unpacked, err := contract.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", ErrMalformed, method, err)
	}
	return unpacked, nil
}

// fetchReserves reads a V2-style pool's reserves at the pinned block.
func fetchReserves(ctx context.Context, client Client, addr common.Address,
	blockNum *big.Int) (reserve0, reserve1 *big.Int, err error) {

	unpacked, err := call(ctx, client, pairABI, addr, "getReserves", blockNum)
	if err != nil {
		return nil, nil, err
	}
	if len(unpacked) < 2 {
		return nil, nil, fmt.Errorf("%w: getReserves returned %d values", ErrMalformed, len(unpacked))
	}

	reserve0, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("%w: reserve0 type", ErrMalformed)
	}
	reserve1, ok = unpacked[1].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("%w: reserve1 type", ErrMalformed)
	}
	return reserve0, reserve1, nil
}

// fetchVirtualReserves maps a concentrated-liquidity pool's current state
// onto constant-product virtual reserves:
//
//	reserve0 = L * 2^96 / sqrtPriceX96
//	reserve1 = L * sqrtPriceX96 / 2^96
//
// Exact around the current tick, which is all a two-swap spread check
// needs at our notional sizes.
func fetchVirtualReserves(ctx context.Context, client Client, addr common.Address,
	blockNum *big.Int) (reserve0, reserve1 *big.Int, err error) {

	slot0, err := call(ctx, client, clPoolABI, addr, "slot0", blockNum)
	if err != nil {
		return nil, nil, err
	}
	sqrtPrice, ok := slot0[0].(*big.Int)
	if !ok || sqrtPrice.Sign() == 0 {
		return nil, nil, fmt.Errorf("%w: slot0 sqrtPriceX96", ErrMalformed)
	}

	liqOut, err := call(ctx, client, clPoolABI, addr, "liquidity", blockNum)
	if err != nil {
		return nil, nil, err
	}
	liquidity, ok := liqOut[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("%w: liquidity type", ErrMalformed)
	}
	if liquidity.Sign() == 0 {
		return nil, nil, ErrPairNotFound
	}

	q96 := new(big.Int).Lsh(big.NewInt(1), 96)

	reserve0 = new(big.Int).Mul(liquidity, q96)
	reserve0.Div(reserve0, sqrtPrice)

	reserve1 = new(big.Int).Mul(liquidity, sqrtPrice)
	reserve1.Rsh(reserve1, 96)

	return reserve0, reserve1, nil
}

func newSnapshot(venue chains.Venue, key chains.PairKey, r0, r1 *big.Int,
	block uint64, at time.Time) (*pricecache.Snapshot, error) {

	res0, overflow := uint256.FromBig(r0)
	if overflow {
		return nil, fmt.Errorf("%w: reserve0 overflows 256 bits", ErrMalformed)
	}
	res1, overflow := uint256.FromBig(r1)
	if overflow {
		return nil, fmt.Errorf("%w: reserve1 overflows 256 bits", ErrMalformed)
	}
	if res0.IsZero() || res1.IsZero() {
		return nil, ErrPairNotFound
	}

	return &pricecache.Snapshot{
		Key: pricecache.Key{
			Chain: venue.Chain,
			Venue: venue.Name,
			Pair:  key,
		},
		Token0:      key.Token0,
		Token1:      key.Token1,
		Reserve0:    res0,
		Reserve1:    res1,
		FeeBps:      venue.FeeBps,
		SourceBlock: block,
		ObservedAt:  at,
	}, nil
}
