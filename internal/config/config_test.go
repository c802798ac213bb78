package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const minimalYAML = `
chains:
  - name: ethereum
    chain_id: 1
    rpc_endpoints:
      - http://localhost:8545
    tokens:
      - symbol: USDC
        address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
        decimals: 6
    venues:
      - name: uniswap-v2
        kind: constant_product
        factory: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
        fee_bps: 30
      - name: sushiswap
        kind: constant_product
        factory: "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac"
        fee_bps: 30
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Chains, 1)
	c := cfg.Chains[0]
	require.Equal(t, 3*time.Second, c.PollInterval())
	require.Equal(t, 5*time.Second, c.RPCTimeout())
	require.Equal(t, float64(20), c.RPCRatePerSec)
	require.Equal(t, 8, c.MaxConcurrent)
	require.Equal(t, uint64(300000), c.GasUnitEstimate)

	require.Equal(t, int64(50), cfg.Detector.MinSpreadBps)
	require.Equal(t, 6*time.Second, cfg.CacheStaleness())
	require.Equal(t, 10*time.Minute, cfg.CacheTTL())
	require.Equal(t, 10*time.Second, cfg.DedupCooldown())
	require.Equal(t, 64, cfg.Emitter.QueueSize)
	require.Equal(t, "arbscan.db", cfg.Storage.DSN)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ARBSCAN_RPC_ETHEREUM", "http://node-a:8545, http://node-b:8545")
	t.Setenv("ARBSCAN_DB", "/var/lib/arbscan/opps.db")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	require.Equal(t, []string{"http://node-a:8545", "http://node-b:8545"}, cfg.Chains[0].RPCEndpoints)
	require.Equal(t, "/var/lib/arbscan/opps.db", cfg.Storage.DSN)
}

func TestLoadExplicitValuesKept(t *testing.T) {
	body := minimalYAML + `
detector:
  min_spread_bps: 25
  cache_staleness_ms: 2000
dedup:
  cooldown_ms: 30000
emitter:
  queue_size: 128
storage:
  dsn: ":memory:"
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	require.Equal(t, int64(25), cfg.Detector.MinSpreadBps)
	require.Equal(t, 2*time.Second, cfg.CacheStaleness())
	require.Equal(t, 30*time.Second, cfg.DedupCooldown())
	require.Equal(t, 128, cfg.Emitter.QueueSize)
	require.Equal(t, ":memory:", cfg.Storage.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "chains: [unclosed"))
	require.Error(t, err)
}
