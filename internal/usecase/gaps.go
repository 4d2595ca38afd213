package usecase

import (
	"time"

	"BarFlow/internal/domain/models"
	"BarFlow/internal/timeframe"
)

// DetectGaps walks the expected boundaries at step from step.Align(w.Start)
// up to w.End and reports every boundary with no bar at that exact
// timestamp. Runs of consecutive missing boundaries collapse into one
// half-open Gap. Boundaries outside the span of the series itself still
// count as gaps; the result is empty only when the series covers the whole
// window at the expected step.
func DetectGaps(series []models.Bar, step timeframe.Spec, w models.Window) []models.Gap {
	present := make(map[int64]struct{}, len(series))
	for _, b := range series {
		present[b.Timestamp.Unix()] = struct{}{}
	}

	var gaps []models.Gap
	var open *models.Gap
	for b := step.Align(w.Start); b.Before(w.End); b = nextBoundary(step, b) {
		if _, ok := present[b.Unix()]; ok {
			open = nil
			continue
		}
		end := nextBoundary(step, b)
		if open != nil {
			open.End = end
			continue
		}
		gaps = append(gaps, models.Gap{Start: b, End: end})
		open = &gaps[len(gaps)-1]
	}
	return gaps
}

// nextBoundary advances one period and re-aligns, so frames that do not
// divide the day evenly still re-anchor at every UTC midnight.
func nextBoundary(step timeframe.Spec, b time.Time) time.Time {
	next := step.Align(step.PeriodEnd(b))
	if !next.After(b) {
		next = step.PeriodEnd(b) // loop safety; never hit for valid specs
	}
	return next
}
