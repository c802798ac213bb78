package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/pulkyeet/arbscan/internal/chains"
)

// PriceSource is what the tracker polls, satisfied by *eth.Client.
type PriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

const historyCap = 100

type observation struct {
	price *big.Int
	at    time.Time
}

// Tracker keeps a bounded recent gas price history per chain. Current()
// serves detection; the history window exists for average/diagnostic use.
type Tracker struct {
	mu      sync.RWMutex
	history map[chains.ChainID][]observation
	maxAge  time.Duration
	now     func() time.Time
}

func NewTracker(maxAge time.Duration) *Tracker {
	return &Tracker{
		history: make(map[chains.ChainID][]observation),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Update polls src and records the price for chain.
func (t *Tracker) Update(ctx context.Context, chain chains.ChainID, src PriceSource) error {
	price, err := src.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("gas: chain %d: %w", chain, err)
	}
	t.Record(chain, price)
	return nil
}

// Record stores an observed gas price, trimming history to the last
// historyCap entries.
func (t *Tracker) Record(chain chains.ChainID, price *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := append(t.history[chain], observation{price: new(big.Int).Set(price), at: t.now()})
	if len(h) > historyCap {
		h = h[len(h)-historyCap:]
	}
	t.history[chain] = h
}

// Current returns the latest observation if it is fresh enough.
func (t *Tracker) Current(chain chains.ChainID) (*big.Int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h := t.history[chain]
	if len(h) == 0 {
		return nil, false
	}
	last := h[len(h)-1]
	if t.maxAge > 0 && t.now().Sub(last.at) > t.maxAge {
		return nil, false
	}
	return new(big.Int).Set(last.price), true
}

// Average returns the mean gas price over the given window.
func (t *Tracker) Average(chain chains.ChainID, window time.Duration) (*big.Int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := t.now().Add(-window)
	sum := new(big.Int)
	n := 0
	for _, obs := range t.history[chain] {
		if obs.at.Before(cutoff) {
			continue
		}
		sum.Add(sum, obs.price)
		n++
	}
	if n == 0 {
		return nil, false
	}
	return sum.Div(sum, big.NewInt(int64(n))), true
}

// CostInToken converts a native gas cost (price * units, in the native
// smallest unit) into smallest units of the profit token, using the static
// USD reference prices. Pure integer arithmetic:
//
//	cost = gasWei * nativeUSDe8 * 10^tokenDecimals / (1e18 * tokenUSDe8)
func CostInToken(gasPrice *big.Int, gasUnits uint64, nativeUSDE8 *big.Int, token chains.Token) *big.Int {
	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasUnits))
	cost.Mul(cost, nativeUSDE8)
	cost.Mul(cost, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(token.Decimals)), nil))

	den := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	den.Mul(den, token.USDPriceE8)
	return cost.Div(cost, den)
}
