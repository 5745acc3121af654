// Package candlestore persists finalized candles in SQLite, keyed by
// (mint, interval, bucket start). Finalize is an upsert: a corrective
// re-finalization of an already-persisted bucket updates everything except
// the open, which is immutable once the bucket first exists.
package candlestore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"candlefeed/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed finalized-candle store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the candle database with WAL mode and the
// schema applied. The driver creates the file but not its directory.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer discipline: the aggregator is the only writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[candlestore] opened database at %s", path)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			mint            TEXT    NOT NULL,
			interval        TEXT    NOT NULL,
			bucket_start_ms INTEGER NOT NULL,
			open            REAL    NOT NULL,
			high            REAL    NOT NULL,
			low             REAL    NOT NULL,
			close           REAL    NOT NULL,
			volume          REAL    NOT NULL,
			tx_count        INTEGER NOT NULL,
			PRIMARY KEY (mint, interval, bucket_start_ms)
		);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Upsert writes a finalized candle. The statement is a single atomic
// conditional write: on conflict the open column is left untouched so the
// bucket's opening print survives corrective re-finalization.
func (s *Store) Upsert(ctx context.Context, c model.Candle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candles (mint, interval, bucket_start_ms, open, high, low, close, volume, tx_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (mint, interval, bucket_start_ms) DO UPDATE SET
			high     = excluded.high,
			low      = excluded.low,
			close    = excluded.close,
			volume   = excluded.volume,
			tx_count = excluded.tx_count
	`, c.Mint, string(c.Interval), c.BucketStartMs, c.Open, c.High, c.Low, c.Close, c.Volume, c.TxCount)
	if err != nil {
		return fmt.Errorf("upsert candle %s@%d: %w", c.Key(), c.BucketStartMs, err)
	}
	return nil
}

// FindRecent returns up to limit finalized candles for (mint, iv) ordered
// newest-first.
func (s *Store) FindRecent(ctx context.Context, mint string, iv model.Interval, limit int) ([]model.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mint, interval, bucket_start_ms, open, high, low, close, volume, tx_count
		FROM candles
		WHERE mint = ? AND interval = ?
		ORDER BY bucket_start_ms DESC
		LIMIT ?
	`, mint, string(iv), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent candles: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

// FindLatest returns the most recent finalized candle for (mint, iv), or
// ok=false when none exists. A non-zero beforeMs restricts the search to
// buckets strictly before that timestamp.
func (s *Store) FindLatest(ctx context.Context, mint string, iv model.Interval, beforeMs int64) (model.Candle, bool, error) {
	q := `
		SELECT mint, interval, bucket_start_ms, open, high, low, close, volume, tx_count
		FROM candles
		WHERE mint = ? AND interval = ?`
	args := []interface{}{mint, string(iv)}
	if beforeMs > 0 {
		q += ` AND bucket_start_ms < ?`
		args = append(args, beforeMs)
	}
	q += ` ORDER BY bucket_start_ms DESC LIMIT 1`

	var c model.Candle
	var ivs string
	err := s.db.QueryRowContext(ctx, q, args...).Scan(
		&c.Mint, &ivs, &c.BucketStartMs, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.TxCount)
	if err == sql.ErrNoRows {
		return model.Candle{}, false, nil
	}
	if err != nil {
		return model.Candle{}, false, fmt.Errorf("query latest candle: %w", err)
	}
	c.Interval = model.Interval(ivs)
	return c, true, nil
}

func scanCandles(rows *sql.Rows) ([]model.Candle, error) {
	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var iv string
		if err := rows.Scan(&c.Mint, &iv, &c.BucketStartMs, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.TxCount); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Interval = model.Interval(iv)
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
