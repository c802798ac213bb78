package dedup

import (
	"math/big"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pulkyeet/arbscan/internal/detector"
)

const maxTracked = 4096

type emission struct {
	at  time.Time
	net *big.Int
}

// Gate suppresses re-emission of the same route within a cooldown window
// and enforces the process-wide single-flight execution rule. Safe for
// concurrent use.
//
// The cooldown map is an expirable LRU: entries age out after the cooldown
// on their own, so map growth stays bounded without a bespoke sweep.
type Gate struct {
	mu       sync.Mutex
	seen     *expirable.LRU[string, emission]
	cooldown time.Duration

	// overrideOnBetter lets a materially better opportunity (>2x net)
	// through inside the cooldown. Off by default: a suppressed emission
	// must not reset the window.
	overrideOnBetter bool

	inFlight bool
	now      func() time.Time
}

func NewGate(cooldown time.Duration, overrideOnBetter bool) *Gate {
	return &Gate{
		seen:             expirable.NewLRU[string, emission](maxTracked, nil, cooldown),
		cooldown:         cooldown,
		overrideOnBetter: overrideOnBetter,
		now:              time.Now,
	}
}

// Admit reports whether the opportunity may be emitted. A route admitted
// within the cooldown is suppressed without touching its timestamp, and
// while an execution is in flight everything is suppressed.
func (g *Gate) Admit(opp *detector.Opportunity) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight {
		return false
	}

	key := opp.DedupKey()
	now := g.now()

	if prev, ok := g.seen.Get(key); ok && now.Sub(prev.at) < g.cooldown {
		if !g.overrideOnBetter {
			return false
		}
		threshold := new(big.Int).Lsh(prev.net, 1)
		if opp.NetProfit.Cmp(threshold) <= 0 {
			return false
		}
	}

	g.seen.Add(key, emission{at: now, net: new(big.Int).Set(opp.NetProfit)})
	return true
}

// BeginExecution acquires the single-flight gate. Exactly one concurrent
// caller wins; everyone else gets false until EndExecution.
func (g *Gate) BeginExecution() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight {
		return false
	}
	g.inFlight = true
	return true
}

// EndExecution releases the gate. Callers must pair it with a successful
// BeginExecution on both success and failure paths, normally via defer.
func (g *Gate) EndExecution() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false
}

// InFlight reports whether an execution currently holds the gate.
func (g *Gate) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}
