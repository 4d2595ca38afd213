package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"BarFlow/internal/domain/models"
	domrepo "BarFlow/internal/domain/repository"
	pkgch "BarFlow/pkg/clickhouse"
	applogger "BarFlow/pkg/logger"
)

// CHBarStore implements BarStore on ClickHouse. One table holds every
// series keyed by series_key; ReplacingMergeTree over (series_key, ts)
// provides the merge-by-timestamp dedup guarantee — re-appending an
// existing timestamp replaces it at merge time instead of duplicating.
// Reads use FINAL so not-yet-merged parts still dedup.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// Schema returns the idempotent DDL for the bars table, for InitSchema.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars (
            series_key String,
            ts DateTime('UTC'),
            provider String,
            symbol String,
            open Float64,
            high Float64,
            low Float64,
            close Float64,
            volume Float64,
            inserted_at DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(inserted_at)
        ORDER BY (series_key, ts)`, database),
	}
}

func NewCHBarStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHBarStore {
	return &CHBarStore{db: ch.DB(), table: database + ".bars", l: l}
}

func (s *CHBarStore) Read(ctx context.Context, key models.StorageKey, w models.Window) ([]models.Bar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT ts, provider, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE series_key = ?`, s.table)
	args := []interface{}{string(key)}
	if !w.IsZero() {
		q += " AND ts >= ? AND ts < ?"
		args = append(args, w.Start, w.End)
	}
	q += " ORDER BY ts ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse read query error",
			applogger.String("key", key.String()),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("read bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		var ts time.Time
		if err := rows.Scan(&ts, &b.Provider, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = ts.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse read ok",
		applogger.String("key", key.String()),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func (s *CHBarStore) Append(ctx context.Context, key models.StorageKey, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	// Multi-row VALUES insert, chunked to bound statement size.
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, b := range bars[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				string(key),
				b.Timestamp.UTC(),
				b.Provider,
				b.Symbol,
				b.Open,
				b.High,
				b.Low,
				b.Close,
				b.Volume,
			)
		}
		q := fmt.Sprintf(
			"INSERT INTO %s (series_key, ts, provider, symbol, open, high, low, close, volume) VALUES %s",
			s.table, strings.Join(values, ","),
		)
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse append error",
				applogger.String("key", key.String()),
				applogger.Int("bars", end-start),
				applogger.Error(err),
			)
			return fmt.Errorf("append bars: %w", err)
		}
	}
	return nil
}

func (s *CHBarStore) Exists(ctx context.Context, key models.StorageKey) (bool, error) {
	q := fmt.Sprintf("SELECT 1 FROM %s WHERE series_key = ? LIMIT 1", s.table)
	var one uint8
	err := s.db.QueryRowContext(ctx, q, string(key)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return true, nil
}

func (s *CHBarStore) ListKeys(ctx context.Context, prefix string) ([]models.StorageKey, error) {
	q := fmt.Sprintf("SELECT DISTINCT series_key FROM %s WHERE startsWith(series_key, ?) ORDER BY series_key", s.table)
	rows, err := s.db.QueryContext(ctx, q, prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []models.StorageKey
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, models.StorageKey(k))
	}
	return keys, rows.Err()
}

func (s *CHBarStore) DateRange(ctx context.Context, key models.StorageKey) (time.Time, time.Time, error) {
	q := fmt.Sprintf("SELECT min(ts), max(ts), count() FROM %s WHERE series_key = ?", s.table)
	var first, last time.Time
	var count uint64
	if err := s.db.QueryRowContext(ctx, q, string(key)).Scan(&first, &last, &count); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("date range: %w", err)
	}
	if count == 0 {
		return time.Time{}, time.Time{}, nil
	}
	return first.UTC(), last.UTC(), nil
}

func (s *CHBarStore) Delete(ctx context.Context, key models.StorageKey) error {
	q := fmt.Sprintf("ALTER TABLE %s DELETE WHERE series_key = ?", s.table)
	if _, err := s.db.ExecContext(ctx, q, string(key)); err != nil {
		return fmt.Errorf("delete series: %w", err)
	}
	return nil
}

var _ domrepo.BarStore = (*CHBarStore)(nil)
