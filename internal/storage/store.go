package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pulkyeet/arbscan/internal/detector"
)

const schema = `
CREATE TABLE IF NOT EXISTS opportunities (
	id            TEXT PRIMARY KEY,
	detected_at   INTEGER NOT NULL,
	chain_id      INTEGER NOT NULL,
	pair          TEXT NOT NULL,
	buy_venue     TEXT NOT NULL,
	sell_venue    TEXT NOT NULL,
	notional      TEXT NOT NULL,
	spread_bps    INTEGER NOT NULL,
	gross_profit  TEXT NOT NULL,
	flashloan_fee TEXT NOT NULL,
	flash_lender  TEXT NOT NULL,
	gas_cost      TEXT NOT NULL,
	net_profit    TEXT NOT NULL,
	source_block  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_opps_detected ON opportunities(detected_at);
CREATE INDEX IF NOT EXISTS idx_opps_chain ON opportunities(chain_id, pair);
`

// Store persists emitted opportunities as flat records. Amounts are stored
// as decimal strings so nothing is ever squeezed through a float or int64.
type Store struct {
	db *sql.DB
}

func NewStore(dsn string) (*Store, error) {
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create store dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Name implements emitter.Sink.
func (s *Store) Name() string { return "sqlite" }

// Record implements emitter.Sink.
func (s *Store) Record(ctx context.Context, opp *detector.Opportunity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO opportunities
		(id, detected_at, chain_id, pair, buy_venue, sell_venue, notional,
		 spread_bps, gross_profit, flashloan_fee, flash_lender, gas_cost, net_profit, source_block)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		opp.ID,
		opp.DetectedAt.UnixMilli(),
		uint64(opp.Chain),
		opp.Pair.String(),
		opp.BuyVenue,
		opp.SellVenue,
		opp.Notional.String(),
		opp.SpreadBps,
		opp.GrossProfit.String(),
		opp.FlashLoanFee.String(),
		opp.FlashLender,
		opp.GasCost.String(),
		opp.NetProfit.String(),
		opp.SourceBlock,
	)
	return err
}

// Row is one persisted opportunity, amounts still as decimal strings.
type Row struct {
	ID           string
	DetectedAt   time.Time
	ChainID      uint64
	Pair         string
	BuyVenue     string
	SellVenue    string
	Notional     string
	SpreadBps    int64
	GrossProfit  string
	FlashLoanFee string
	FlashLender  string
	GasCost      string
	NetProfit    string
	SourceBlock  uint64
}

// Recent returns the latest limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, detected_at, chain_id, pair, buy_venue, sell_venue, notional,
		       spread_bps, gross_profit, flashloan_fee, flash_lender, gas_cost, net_profit, source_block
		FROM opportunities ORDER BY detected_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Row
	for rows.Next() {
		var r Row
		var detectedMs int64
		if err := rows.Scan(&r.ID, &detectedMs, &r.ChainID, &r.Pair, &r.BuyVenue, &r.SellVenue,
			&r.Notional, &r.SpreadBps, &r.GrossProfit, &r.FlashLoanFee, &r.FlashLender,
			&r.GasCost, &r.NetProfit, &r.SourceBlock); err != nil {
			return nil, err
		}
		r.DetectedAt = time.UnixMilli(detectedMs)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Stats returns simple counters for monitoring.
func (s *Store) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM opportunities").Scan(&count); err != nil {
		return nil, err
	}
	stats["opportunities"] = count

	var chains int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT chain_id) FROM opportunities").Scan(&chains); err != nil {
		return nil, err
	}
	stats["chains"] = chains

	return stats, nil
}

// TotalNetProfit sums recorded net profit per pair, exact big integers.
func (s *Store) TotalNetProfit(ctx context.Context, pair string) (*big.Int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT net_profit FROM opportunities WHERE pair = ?", pair)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	total := new(big.Int)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("corrupt net_profit value %q", v)
		}
		total.Add(total, n)
	}
	return total, rows.Err()
}
