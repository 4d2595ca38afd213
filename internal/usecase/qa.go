package usecase

import (
	"fmt"
	"math"

	"BarFlow/internal/domain/models"
)

// Extreme single-bar close-to-close move treated as suspicious.
const extremeMoveThreshold = 0.10

// QAResult summarizes bar-level quality checks over one stored series.
type QAResult struct {
	RowCount            int      `json:"row_count"`
	OHLCInconsistencies int      `json:"ohlc_inconsistencies"`
	NegativeVolume      int      `json:"negative_volume"`
	DuplicateTimestamps int      `json:"duplicate_timestamps"`
	NonMonotonic        int      `json:"non_monotonic_timestamps"`
	ExtremeMoves        int      `json:"extreme_moves"`
	ZeroVolumeRatio     float64  `json:"zero_volume_ratio"`
	Errors              []string `json:"errors"`
	Warnings            []string `json:"warnings"`
	Valid               bool     `json:"valid"`
}

// RunBarQA checks OHLC consistency, volume sanity, and timestamp ordering.
// Consistency and ordering violations are errors; extreme moves and heavy
// zero-volume ratios are warnings only.
func RunBarQA(series []models.Bar) *QAResult {
	res := &QAResult{RowCount: len(series), Valid: true}
	if len(series) == 0 {
		return res
	}

	seen := make(map[int64]struct{}, len(series))
	zeroVolume := 0
	for i, b := range series {
		if b.High < b.Low || b.High < b.Open || b.High < b.Close || b.Low > b.Open || b.Low > b.Close {
			res.OHLCInconsistencies++
		}
		if b.Volume < 0 {
			res.NegativeVolume++
		}
		if b.Volume == 0 {
			zeroVolume++
		}
		if _, ok := seen[b.Timestamp.UnixNano()]; ok {
			res.DuplicateTimestamps++
		}
		seen[b.Timestamp.UnixNano()] = struct{}{}
		if i > 0 {
			prev := series[i-1]
			if b.Timestamp.Before(prev.Timestamp) {
				res.NonMonotonic++
			}
			if prev.Close != 0 && math.Abs(b.Close/prev.Close-1) > extremeMoveThreshold {
				res.ExtremeMoves++
			}
		}
	}
	res.ZeroVolumeRatio = float64(zeroVolume) / float64(len(series))

	if res.OHLCInconsistencies > 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("%d rows violate low <= open,close <= high", res.OHLCInconsistencies))
	}
	if res.NegativeVolume > 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("%d rows with negative volume", res.NegativeVolume))
	}
	if res.DuplicateTimestamps > 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("%d duplicate timestamps", res.DuplicateTimestamps))
	}
	if res.NonMonotonic > 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("%d non-monotonic timestamps", res.NonMonotonic))
	}
	if res.ExtremeMoves > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d moves beyond %.0f%%", res.ExtremeMoves, extremeMoveThreshold*100))
	}
	if res.ZeroVolumeRatio > 0.5 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%.0f%% of bars have zero volume", res.ZeroVolumeRatio*100))
	}
	res.Valid = len(res.Errors) == 0
	return res
}
