package scanner

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pulkyeet/arbscan/internal/chains"
	"github.com/pulkyeet/arbscan/internal/dedup"
	"github.com/pulkyeet/arbscan/internal/detector"
	"github.com/stretchr/testify/require"
)

type countingExecutor struct {
	calls int
	err   error
}

func (e *countingExecutor) RequestExecution(context.Context, *detector.Opportunity) error {
	e.calls++
	return e.err
}

func testOpp() *detector.Opportunity {
	usdc := chains.Token{Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")}
	weth := chains.Token{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")}
	return &detector.Opportunity{
		Chain:     1,
		Pair:      chains.Pair{Base: usdc, Quote: weth, Notional: big.NewInt(1)},
		BuyVenue:  "alpha",
		SellVenue: "beta",
		NetProfit: big.NewInt(1_692_715),
		SpreadBps: 60,
	}
}

func TestExecutionSinkReleasesGate(t *testing.T) {
	gate := dedup.NewGate(time.Second, false)
	exec := &countingExecutor{}
	sink := NewExecutionSink(gate, exec)

	require.NoError(t, sink.Record(context.Background(), testOpp()))
	require.Equal(t, 1, exec.calls)
	require.False(t, gate.InFlight())
}

func TestExecutionSinkReleasesGateOnError(t *testing.T) {
	gate := dedup.NewGate(time.Second, false)
	exec := &countingExecutor{err: errors.New("nonce too low")}
	sink := NewExecutionSink(gate, exec)

	require.Error(t, sink.Record(context.Background(), testOpp()))
	require.False(t, gate.InFlight())

	// gate released, the next record goes through
	exec.err = nil
	require.NoError(t, sink.Record(context.Background(), testOpp()))
	require.Equal(t, 2, exec.calls)
}

func TestExecutionSinkSkipsWhileBusy(t *testing.T) {
	gate := dedup.NewGate(time.Second, false)
	exec := &countingExecutor{}
	sink := NewExecutionSink(gate, exec)

	require.True(t, gate.BeginExecution())

	// busy gate: recorded without triggering, no error back to the emitter
	require.NoError(t, sink.Record(context.Background(), testOpp()))
	require.Zero(t, exec.calls)

	gate.EndExecution()
	require.NoError(t, sink.Record(context.Background(), testOpp()))
	require.Equal(t, 1, exec.calls)
}

func TestMetricsDegradedTransitions(t *testing.T) {
	m := NewMetrics()

	require.False(t, m.Degraded(1))
	m.SetDegraded(1, true)
	require.True(t, m.Degraded(1))
	m.SetDegraded(1, true) // idempotent
	require.True(t, m.Degraded(1))
	m.SetDegraded(1, false)
	require.False(t, m.Degraded(1))

	require.False(t, m.Degraded(137))
}
