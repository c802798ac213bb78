package scanner

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/pulkyeet/arbscan/internal/chains"
)

// Metrics counts what happened instead of crashing over it. Degraded
// chains and fetch failures surface here and in logs; the loops keep
// running.
type Metrics struct {
	Cycles        atomic.Uint64
	FetchOK       atomic.Uint64
	FetchFailed   atomic.Uint64
	FetchNotFound atomic.Uint64
	Detected      atomic.Uint64
	Suppressed    atomic.Uint64
	Emitted       atomic.Uint64
	SweptEntries  atomic.Uint64

	mu       sync.Mutex
	degraded map[chains.ChainID]bool
}

func NewMetrics() *Metrics {
	return &Metrics{degraded: make(map[chains.ChainID]bool)}
}

// SetDegraded flips a chain's degraded flag, logging transitions only.
func (m *Metrics) SetDegraded(chain chains.ChainID, degraded bool) {
	m.mu.Lock()
	was := m.degraded[chain]
	m.degraded[chain] = degraded
	m.mu.Unlock()

	if degraded && !was {
		log.Printf("scanner: chain %d degraded, skipping detection until it recovers", chain)
	}
	if !degraded && was {
		log.Printf("scanner: chain %d recovered", chain)
	}
}

// Degraded reports whether a chain is currently skipped.
func (m *Metrics) Degraded(chain chains.ChainID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded[chain]
}

func (m *Metrics) Log() {
	m.mu.Lock()
	degraded := 0
	for _, d := range m.degraded {
		if d {
			degraded++
		}
	}
	m.mu.Unlock()

	log.Printf("scanner: cycles=%d fetch_ok=%d fetch_failed=%d fetch_notfound=%d detected=%d suppressed=%d emitted=%d swept=%d degraded_chains=%d",
		m.Cycles.Load(), m.FetchOK.Load(), m.FetchFailed.Load(), m.FetchNotFound.Load(),
		m.Detected.Load(), m.Suppressed.Load(), m.Emitted.Load(), m.SweptEntries.Load(), degraded)
}
