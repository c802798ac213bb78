package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full scanner configuration. It is loaded once at startup,
// validated, and passed by value to component constructors; nothing mutates
// it afterwards.
type Config struct {
	Chains    []ChainConfig       `yaml:"chains"`
	FlashLoan []FlashLoanConfig   `yaml:"flashloan_providers"`
	Detector  DetectorConfig      `yaml:"detector"`
	Dedup     DedupConfig         `yaml:"dedup"`
	Emitter   EmitterConfig       `yaml:"emitter"`
	Storage   StorageConfig       `yaml:"storage"`
}

type ChainConfig struct {
	Name            string        `yaml:"name"`
	ChainID         uint64        `yaml:"chain_id"`
	RPCEndpoints    []string      `yaml:"rpc_endpoints"`
	PollIntervalMs  int           `yaml:"poll_interval_ms"`
	RPCTimeoutMs    int           `yaml:"rpc_timeout_ms"`
	RPCRatePerSec   float64       `yaml:"rpc_rate_per_sec"`
	MaxConcurrent   int           `yaml:"max_concurrent_fetches"`
	NativeUSDE8     string        `yaml:"native_usd_e8"`
	GasUnitEstimate uint64        `yaml:"gas_unit_estimate"`
	Tokens          []TokenConfig `yaml:"tokens"`
	Pairs           []PairConfig  `yaml:"pairs"`
	Venues          []VenueConfig `yaml:"venues"`
}

type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals int    `yaml:"decimals"`
	USDE8    string `yaml:"usd_e8"` // optional, defaults to 1.00 (stablecoin)
}

type PairConfig struct {
	Base     string `yaml:"base"`  // notional / profit token symbol
	Quote    string `yaml:"quote"` // traded token symbol
	Notional string `yaml:"notional"`
}

type VenueConfig struct {
	Name         string `yaml:"name"`
	Kind         string `yaml:"kind"` // constant_product | concentrated_liquidity
	Router       string `yaml:"router"`
	Factory      string `yaml:"factory"`
	InitCodeHash string `yaml:"init_code_hash"`
	FeeBps       uint64 `yaml:"fee_bps"`
}

type FlashLoanConfig struct {
	Name        string `yaml:"name"`
	ChainID     uint64 `yaml:"chain_id"`
	Pool        string `yaml:"pool"`
	FeeBps      uint64 `yaml:"fee_bps"`
	MaxNotional string `yaml:"max_notional"`
}

type DetectorConfig struct {
	MinSpreadBps     int64  `yaml:"min_spread_bps"`
	MinNetProfit     string `yaml:"min_net_profit"`
	CacheStalenessMs int    `yaml:"cache_staleness_ms"`
	CacheTTLMs       int    `yaml:"cache_ttl_ms"`
}

type DedupConfig struct {
	CooldownMs        int  `yaml:"cooldown_ms"`
	BetterNetOverride bool `yaml:"better_net_override"`
}

type EmitterConfig struct {
	QueueSize int `yaml:"queue_size"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn"` // sqlite file path, or ":memory:"
}

// Load reads the YAML file, applies .env overrides and fills defaults.
// Structural validation happens in chains.NewRegistry; config errors found
// there or here are fatal at startup.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// RPC endpoint lists can be supplied per chain through the environment so
// that API keys stay out of the YAML file: ARBSCAN_RPC_<NAME>=url1,url2
func applyEnvOverrides(cfg *Config) {
	for i := range cfg.Chains {
		key := "ARBSCAN_RPC_" + strings.ToUpper(cfg.Chains[i].Name)
		if v := os.Getenv(key); v != "" {
			cfg.Chains[i].RPCEndpoints = splitList(v)
		}
	}
	if v := os.Getenv("ARBSCAN_DB"); v != "" {
		cfg.Storage.DSN = v
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	for i := range cfg.Chains {
		c := &cfg.Chains[i]
		if c.PollIntervalMs <= 0 {
			c.PollIntervalMs = 3000
		}
		if c.RPCTimeoutMs <= 0 {
			c.RPCTimeoutMs = 5000
		}
		if c.RPCRatePerSec <= 0 {
			c.RPCRatePerSec = 20
		}
		if c.MaxConcurrent <= 0 {
			c.MaxConcurrent = 8
		}
		if c.GasUnitEstimate == 0 {
			c.GasUnitEstimate = 300000 // two v2 swaps + flash loan overhead
		}
	}
	if cfg.Detector.MinSpreadBps <= 0 {
		cfg.Detector.MinSpreadBps = 50
	}
	if cfg.Detector.CacheStalenessMs <= 0 {
		cfg.Detector.CacheStalenessMs = 6000 // two default poll intervals
	}
	if cfg.Detector.CacheTTLMs <= 0 {
		cfg.Detector.CacheTTLMs = 600000
	}
	if cfg.Dedup.CooldownMs <= 0 {
		cfg.Dedup.CooldownMs = 10000
	}
	if cfg.Emitter.QueueSize <= 0 {
		cfg.Emitter.QueueSize = 64
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "arbscan.db"
	}
}

func (c *ChainConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *ChainConfig) RPCTimeout() time.Duration {
	return time.Duration(c.RPCTimeoutMs) * time.Millisecond
}

func (c *Config) CacheStaleness() time.Duration {
	return time.Duration(c.Detector.CacheStalenessMs) * time.Millisecond
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Detector.CacheTTLMs) * time.Millisecond
}

func (c *Config) DedupCooldown() time.Duration {
	return time.Duration(c.Dedup.CooldownMs) * time.Millisecond
}
