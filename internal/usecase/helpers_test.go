package usecase

import (
	"context"
	"time"

	"BarFlow/internal/domain/models"
)

// fakeProvider serves minute bars out of a fixed map, optionally failing
// the first calls with queued errors.
type fakeProvider struct {
	name  string
	bars  map[int64]models.Bar
	errs  []error
	calls []models.Window
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, bars: make(map[int64]models.Bar)}
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) FetchBars(_ context.Context, _ string, w models.Window) ([]models.Bar, error) {
	p.calls = append(p.calls, w)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	var out []models.Bar
	for ts := w.Start; ts.Before(w.End); ts = ts.Add(time.Minute) {
		if b, ok := p.bars[ts.Unix()]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (p *fakeProvider) ValidateCredentials(context.Context) error { return nil }

// seed loads n consecutive minute bars starting at start into the
// provider's universe.
func (p *fakeProvider) seed(symbol string, start time.Time, n int) {
	for _, b := range minuteBars(p.name, symbol, start, n) {
		p.bars[b.Timestamp.Unix()] = b
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordGapsDetected(string, string, int) {}
func (nopMetrics) RecordGapFilled(string, string)         {}
func (nopMetrics) RecordGapFailed(string, string)         {}
func (nopMetrics) RecordBarsAppended(string, int)         {}
func (nopMetrics) RecordLatency(string, float64)          {}
func (nopMetrics) RecordError(string)                     {}

// minuteBars builds n consecutive flat minute bars with close = 100+i and
// volume 5, deterministic enough to assert aggregates against.
func minuteBars(provider, symbol string, start time.Time, n int) []models.Bar {
	out := make([]models.Bar, 0, n)
	for i := 0; i < n; i++ {
		px := 100 + float64(i)
		out = append(out, models.Bar{
			Provider:  provider,
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      px,
			High:      px + 0.5,
			Low:       px - 0.5,
			Close:     px,
			Volume:    5,
		})
	}
	return out
}

func mustUTC(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}
