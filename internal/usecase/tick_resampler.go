package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"BarFlow/internal/domain/models"
	domrepo "BarFlow/internal/domain/repository"
	"BarFlow/internal/timeframe"
	pkgkafka "BarFlow/pkg/kafka"
	applogger "BarFlow/pkg/logger"
)

// TickResampler folds a live tick stream into canonical 1m bars and
// appends each bar once its minute closes. Ticks are the one input finer
// than the canonical resolution; everything downstream only ever sees 1m.
// Implements pkgkafka.MessageHandler so it can sit behind the consumer.
type TickResampler struct {
	topic    string
	provider string
	store    domrepo.BarStore
	metrics  domrepo.Metrics
	log      *applogger.Logger

	mu   sync.Mutex
	open map[string]*models.Bar // symbol -> bar for the minute in progress
}

func NewTickResampler(topic, provider string, store domrepo.BarStore, metrics domrepo.Metrics, log *applogger.Logger) *TickResampler {
	return &TickResampler{
		topic:    topic,
		provider: provider,
		store:    store,
		metrics:  metrics,
		log:      log,
		open:     make(map[string]*models.Bar),
	}
}

func (r *TickResampler) Topic() string { return r.topic }

// incoming message schema: {symbol, t, p, v}, t in unix seconds or ms
func (r *TickResampler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		P      float64 `json:"p"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		r.metrics.RecordError("tick_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	return r.Ingest(ctx, m.Symbol, time.Unix(m.T, 0).UTC(), m.P, m.V)
}

// Ingest folds one tick into the open minute bar for its symbol, flushing
// the previous minute when the tick crosses a boundary. Ticks older than
// an already-flushed minute are dropped; the backfill path repairs those.
func (r *TickResampler) Ingest(ctx context.Context, symbol string, ts time.Time, price, volume float64) error {
	minute := timeframe.Minute.Align(ts)

	r.mu.Lock()
	cur := r.open[symbol]
	var closed *models.Bar
	switch {
	case cur == nil:
		r.open[symbol] = r.newBar(symbol, minute, price, volume)
	case minute.After(cur.Timestamp):
		closed = cur
		r.open[symbol] = r.newBar(symbol, minute, price, volume)
	case minute.Equal(cur.Timestamp):
		if price > cur.High {
			cur.High = price
		}
		if price < cur.Low {
			cur.Low = price
		}
		cur.Close = price
		cur.Volume += volume
	default:
		r.metrics.RecordError("tick_late")
	}
	r.mu.Unlock()

	if closed == nil {
		return nil
	}
	return r.append(ctx, *closed)
}

// Flush appends all still-open bars; called on shutdown so the partial
// current minute is not lost.
func (r *TickResampler) Flush(ctx context.Context) error {
	r.mu.Lock()
	bars := make([]models.Bar, 0, len(r.open))
	for _, b := range r.open {
		bars = append(bars, *b)
	}
	r.open = make(map[string]*models.Bar)
	r.mu.Unlock()

	for _, b := range bars {
		if err := r.append(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (r *TickResampler) newBar(symbol string, minute time.Time, price, volume float64) *models.Bar {
	return &models.Bar{
		Provider:  r.provider,
		Symbol:    symbol,
		Timestamp: minute,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    volume,
	}
}

func (r *TickResampler) append(ctx context.Context, bar models.Bar) error {
	key := models.BarsKey(r.provider, bar.Symbol, timeframe.Minute)
	if err := r.store.Append(ctx, key, []models.Bar{bar}); err != nil {
		r.metrics.RecordError("tick_append")
		return err
	}
	r.metrics.RecordBarsAppended(timeframe.Minute.String(), 1)
	r.log.Debug("tick resampler: minute closed",
		applogger.String("key", key.String()),
		applogger.Time("minute", bar.Timestamp),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*TickResampler)(nil)
