package emitter

import (
	"context"
	"log"
	"sync"

	"github.com/pulkyeet/arbscan/internal/detector"
)

// Sink consumes published opportunities: execution engine, persistence,
// notification. Sink errors are logged, never propagated back into the
// detection loop.
type Sink interface {
	Name() string
	Record(ctx context.Context, opp *detector.Opportunity) error
}

// Emitter hands ranked opportunities to sinks through a bounded buffer.
// Publish never blocks: when the buffer is full the lowest-net-profit
// entry is dropped so a slow consumer can't stall detection.
type Emitter struct {
	mu      sync.Mutex
	buf     []*detector.Opportunity
	cap     int
	dropped uint64
	wake    chan struct{}
	sinks   []Sink
}

func New(capacity int, sinks ...Sink) *Emitter {
	if capacity <= 0 {
		capacity = 64
	}
	return &Emitter{
		cap:   capacity,
		wake:  make(chan struct{}, 1),
		sinks: sinks,
	}
}

// Publish enqueues opp for delivery. Non-blocking.
func (e *Emitter) Publish(opp *detector.Opportunity) {
	e.mu.Lock()
	e.buf = append(e.buf, opp)
	if len(e.buf) > e.cap {
		e.evictLowest()
		e.dropped++
	}
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// evictLowest removes the lowest-net-profit entry, oldest first among
// equals. Called with the lock held.
func (e *Emitter) evictLowest() {
	lowest := 0
	for i := 1; i < len(e.buf); i++ {
		if e.buf[i].NetProfit.Cmp(e.buf[lowest].NetProfit) < 0 {
			lowest = i
		}
	}
	e.buf = append(e.buf[:lowest], e.buf[lowest+1:]...)
}

// pop removes and returns the best buffered entry, or nil.
func (e *Emitter) pop() *detector.Opportunity {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.buf) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(e.buf); i++ {
		if e.buf[i].NetProfit.Cmp(e.buf[best].NetProfit) > 0 {
			best = i
		}
	}
	opp := e.buf[best]
	e.buf = append(e.buf[:best], e.buf[best+1:]...)
	return opp
}

// Dropped reports how many entries were discarded under backpressure.
func (e *Emitter) Dropped() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Len reports the current buffer depth.
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buf)
}

// Run delivers buffered opportunities to all sinks, best-first, until ctx
// is cancelled.
func (e *Emitter) Run(ctx context.Context) {
	for {
		opp := e.pop()
		if opp == nil {
			select {
			case <-ctx.Done():
				return
			case <-e.wake:
				continue
			}
		}

		for _, s := range e.sinks {
			if err := s.Record(ctx, opp); err != nil {
				log.Printf("emitter: sink %s: %v", s.Name(), err)
			}
		}
	}
}
