package scanner

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pulkyeet/arbscan/internal/chains"
	"github.com/pulkyeet/arbscan/internal/detector"
	"github.com/pulkyeet/arbscan/internal/dedup"
	"github.com/pulkyeet/arbscan/internal/emitter"
	"github.com/pulkyeet/arbscan/internal/fetcher"
	"github.com/pulkyeet/arbscan/internal/gas"
	"github.com/pulkyeet/arbscan/internal/pricecache"
)

const (
	sweepInterval   = 30 * time.Second
	metricsInterval = 60 * time.Second
	shutdownGrace   = 10 * time.Second
)

// GasSource resolves the gas price source for a chain, satisfied by the
// per-chain *eth.Client map in cmd wiring.
type GasSource func(chains.ChainID) gas.PriceSource

// Scanner drives the live loops: one refresh+detect cycle per chain on its
// own timer, plus periodic cache/metrics housekeeping. All cross-task
// state lives behind the cache and the dedup gate.
type Scanner struct {
	reg      *chains.Registry
	fetch    *fetcher.Fetcher
	detect   *detector.Detector
	gate     *dedup.Gate
	emit     *emitter.Emitter
	gasT     *gas.Tracker
	gasSrc   GasSource
	cache    *pricecache.Cache
	cacheTTL time.Duration

	Metrics *Metrics
}

func New(reg *chains.Registry, fetch *fetcher.Fetcher, detect *detector.Detector,
	gate *dedup.Gate, emit *emitter.Emitter, gasT *gas.Tracker, gasSrc GasSource,
	cache *pricecache.Cache, cacheTTL time.Duration) *Scanner {
	return &Scanner{
		reg:      reg,
		fetch:    fetch,
		detect:   detect,
		gate:     gate,
		emit:     emit,
		gasT:     gasT,
		gasSrc:   gasSrc,
		cache:    cache,
		cacheTTL: cacheTTL,
		Metrics:  NewMetrics(),
	}
}

// Run blocks until ctx is cancelled, then waits up to the shutdown grace
// period for in-flight cycles to finish. No new cycles start after
// cancellation.
func (s *Scanner) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, id := range s.reg.ChainIDs() {
		wg.Add(1)
		go func(id chains.ChainID) {
			defer wg.Done()
			s.chainLoop(ctx, id)
		}(id)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.housekeeping(ctx)
	}()

	<-ctx.Done()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		log.Printf("scanner: shutdown grace period elapsed, abandoning in-flight work")
	}
}

func (s *Scanner) chainLoop(ctx context.Context, id chains.ChainID) {
	interval := s.reg.PollInterval(id)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// first cycle immediately, then on the timer
	s.cycle(ctx, id)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx, id)
		}
	}
}

// cycle is one refresh+detect pass over a chain. Fetch and quote errors
// are recovered here; only cancellation stops the loop.
func (s *Scanner) cycle(ctx context.Context, id chains.ChainID) {
	if ctx.Err() != nil {
		return
	}
	s.Metrics.Cycles.Add(1)

	// best-effort gas refresh; detection degrades to zero gas cost
	// estimates only if the price has never been observed
	if src := s.gasSrc(id); src != nil {
		if err := s.gasT.Update(ctx, id, src); err != nil {
			log.Printf("scanner: gas update chain %d: %v", id, err)
		}
	}

	report, err := s.fetch.Refresh(ctx, id)
	if err != nil {
		// whole chain unreachable this cycle: degraded, retry next tick
		log.Printf("scanner: refresh chain %d: %v", id, err)
		s.Metrics.SetDegraded(id, true)
		return
	}

	s.Metrics.FetchOK.Add(uint64(report.Observed))
	s.Metrics.FetchFailed.Add(uint64(report.Failed))
	s.Metrics.FetchNotFound.Add(uint64(report.NotFound))

	if report.Observed == 0 && report.Discarded == 0 {
		s.Metrics.SetDegraded(id, true)
		return
	}
	s.Metrics.SetDegraded(id, false)

	opps := s.detect.Scan(id)
	s.Metrics.Detected.Add(uint64(len(opps)))

	for _, opp := range opps {
		if !s.gate.Admit(opp) {
			s.Metrics.Suppressed.Add(1)
			continue
		}
		s.emit.Publish(opp)
		s.Metrics.Emitted.Add(1)
	}
}

func (s *Scanner) housekeeping(ctx context.Context) {
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()
	report := time.NewTicker(metricsInterval)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if n := s.cache.Sweep(s.cacheTTL); n > 0 {
				s.Metrics.SweptEntries.Add(uint64(n))
			}
		case <-report.C:
			s.Metrics.Log()
		}
	}
}
