package repository

import (
	"context"
	"time"

	"BarFlow/internal/domain/models"
)

// BarStore is the append-only columnar store the engine relies on. Append
// merges by timestamp: concurrent appends to the same key are linearizable
// and re-appending an already-present timestamp is a no-op, never a
// duplicate. Read returns an empty ordered series for an absent key; only
// structural I/O failure returns an error (wrapping ErrStoreUnavailable).
type BarStore interface {
	Read(ctx context.Context, key models.StorageKey, w models.Window) ([]models.Bar, error)
	Append(ctx context.Context, key models.StorageKey, bars []models.Bar) error
	Exists(ctx context.Context, key models.StorageKey) (bool, error)
	ListKeys(ctx context.Context, prefix string) ([]models.StorageKey, error)
	DateRange(ctx context.Context, key models.StorageKey) (first, last time.Time, err error)
	Delete(ctx context.Context, key models.StorageKey) error
}

// BarProvider fetches canonical 1m bars for [w.Start, w.End). Fetch errors
// carry a retryable flag via models.ProviderError; rate limiting and
// backoff live inside the client, not in the engine.
type BarProvider interface {
	Name() string
	FetchBars(ctx context.Context, symbol string, w models.Window) ([]models.Bar, error)
	ValidateCredentials(ctx context.Context) error
}

// TickStream is a live trade feed feeding the minute resampler. Read
// returns buffered channels; a closed error channel means the connection
// is gone and the runtime should Reconnect.
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
}

// Metrics records engine-level counters and latencies.
type Metrics interface {
	RecordGapsDetected(provider, symbol string, n int)
	RecordGapFilled(provider, symbol string)
	RecordGapFailed(provider, symbol string)
	RecordBarsAppended(timeframe string, n int)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}
