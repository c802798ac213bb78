package scanner

import (
	"context"
	"log"

	"github.com/pulkyeet/arbscan/internal/dedup"
	"github.com/pulkyeet/arbscan/internal/detector"
)

// Executor is the external execution collaborator. The core does not know
// how execution happens, only whether the single-flight gate permits
// issuing one.
type Executor interface {
	RequestExecution(ctx context.Context, opp *detector.Opportunity) error
}

// ExecutionSink forwards admitted opportunities to the executor behind the
// single-flight gate. The gate is released on every path out.
type ExecutionSink struct {
	gate *dedup.Gate
	exec Executor
}

func NewExecutionSink(gate *dedup.Gate, exec Executor) *ExecutionSink {
	return &ExecutionSink{gate: gate, exec: exec}
}

func (s *ExecutionSink) Name() string { return "executor" }

func (s *ExecutionSink) Record(ctx context.Context, opp *detector.Opportunity) error {
	if !s.gate.BeginExecution() {
		// an execution is already pending; this one was ranked and
		// recorded, it just doesn't get the trigger
		return nil
	}
	defer s.gate.EndExecution()

	return s.exec.RequestExecution(ctx, opp)
}

// LogExecutor is the default collaborator when no execution engine is
// wired: it only logs what would have been executed.
type LogExecutor struct{}

func (LogExecutor) RequestExecution(_ context.Context, opp *detector.Opportunity) error {
	log.Printf("execute: %s buy=%s sell=%s net=%s %s (spread %dbps, lender %s)",
		opp.Pair, opp.BuyVenue, opp.SellVenue, opp.NetProfit, opp.Pair.Base.Symbol,
		opp.SpreadBps, opp.FlashLender)
	return nil
}
