package usecase

import (
	"BarFlow/internal/domain/models"
	"BarFlow/internal/timeframe"
)

// Aggregate derives aligned higher-timeframe bars from an ordered 1m
// series: open = first, close = last, high = max, low = min, volume = sum,
// timestamp = the wall-clock boundary of the group. A group backed by
// fewer minutes than the frame holds still emits a bar from what is
// present; completeness is the gap detector's concern at the 1m level.
func Aggregate(series []models.Bar, spec timeframe.Spec) ([]models.Bar, error) {
	if len(series) == 0 {
		return nil, models.ErrEmptyInput
	}
	if spec.IsMinute() {
		return series, nil
	}

	out := make([]models.Bar, 0, len(series)/spec.Minutes+1)
	var cur *models.Bar
	for _, b := range series {
		boundary := spec.Align(b.Timestamp)
		if cur == nil || !cur.Timestamp.Equal(boundary) {
			out = append(out, models.Bar{
				Provider:  b.Provider,
				Symbol:    b.Symbol,
				Timestamp: boundary,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			})
			cur = &out[len(out)-1]
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	return out, nil
}
