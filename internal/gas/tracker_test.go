package gas

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/pulkyeet/arbscan/internal/chains"
	"github.com/stretchr/testify/require"
)

func TestCostInToken(t *testing.T) {
	eth2500 := big.NewInt(250_000_000_000) // $2500 with 8 decimals

	usdc := chains.Token{Symbol: "USDC", Decimals: 6, USDPriceE8: big.NewInt(100_000_000)}
	weth := chains.Token{Symbol: "WETH", Decimals: 18, USDPriceE8: eth2500}

	// 4 gwei * 200k units = 8e14 wei = $2 at $2500/ETH = 2_000_000 in USDC units
	gasPrice := big.NewInt(4_000_000_000)
	cost := CostInToken(gasPrice, 200_000, eth2500, usdc)
	require.Equal(t, "2000000", cost.String())

	// converting into the native asset itself is the identity
	cost = CostInToken(gasPrice, 200_000, eth2500, weth)
	require.Equal(t, "800000000000000", cost.String())
}

func TestRecordAndCurrent(t *testing.T) {
	tr := NewTracker(time.Minute)

	_, ok := tr.Current(1)
	require.False(t, ok)

	tr.Record(1, big.NewInt(30_000_000_000))
	tr.Record(1, big.NewInt(40_000_000_000))

	price, ok := tr.Current(1)
	require.True(t, ok)
	require.Equal(t, "40000000000", price.String())

	// per-chain isolation
	_, ok = tr.Current(137)
	require.False(t, ok)
}

func TestCurrentExpires(t *testing.T) {
	tr := NewTracker(time.Minute)
	t0 := time.Now()
	tr.now = func() time.Time { return t0 }

	tr.Record(1, big.NewInt(30_000_000_000))

	t0 = t0.Add(2 * time.Minute)
	_, ok := tr.Current(1)
	require.False(t, ok)
}

func TestHistoryBounded(t *testing.T) {
	tr := NewTracker(time.Minute)

	for i := 0; i < historyCap+50; i++ {
		tr.Record(1, big.NewInt(int64(i)))
	}
	require.Len(t, tr.history[1], historyCap)

	// trimmed from the front: the latest observation survives
	price, ok := tr.Current(1)
	require.True(t, ok)
	require.Equal(t, int64(historyCap+49), price.Int64())
}

func TestAverage(t *testing.T) {
	tr := NewTracker(time.Minute)
	t0 := time.Now()
	tr.now = func() time.Time { return t0 }

	tr.Record(1, big.NewInt(10))
	tr.Record(1, big.NewInt(20))
	tr.Record(1, big.NewInt(30))

	avg, ok := tr.Average(1, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(20), avg.Int64())

	_, ok = tr.Average(137, time.Minute)
	require.False(t, ok)
}

type fakeSource struct {
	price *big.Int
	err   error
}

func (s fakeSource) SuggestGasPrice(context.Context) (*big.Int, error) {
	return s.price, s.err
}

func TestUpdate(t *testing.T) {
	tr := NewTracker(time.Minute)

	require.NoError(t, tr.Update(context.Background(), 1, fakeSource{price: big.NewInt(42)}))
	price, ok := tr.Current(1)
	require.True(t, ok)
	require.Equal(t, int64(42), price.Int64())

	err := tr.Update(context.Background(), 1, fakeSource{err: errors.New("rpc down")})
	require.Error(t, err)

	// a failed poll leaves the last good observation in place
	price, ok = tr.Current(1)
	require.True(t, ok)
	require.Equal(t, int64(42), price.Int64())
}
