package models

import (
	"sort"
	"time"
)

// Bar is one OHLCV record for a symbol over one fixed period. Timestamp is
// the start of the period, UTC, aligned to the bar's own timeframe boundary.
type Bar struct {
	Provider  string    `json:"provider"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// SortBars orders bars by ascending timestamp in place.
func SortBars(bars []Bar) {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
}

// MergeBars merges incoming into existing with per-timestamp dedup: a
// timestamp already present in existing wins, mirroring the store's
// append-merge guarantee. The result is sorted ascending.
func MergeBars(existing, incoming []Bar) []Bar {
	if len(incoming) == 0 {
		out := make([]Bar, len(existing))
		copy(out, existing)
		return out
	}

	seen := make(map[int64]struct{}, len(existing))
	out := make([]Bar, 0, len(existing)+len(incoming))
	for _, b := range existing {
		seen[b.Timestamp.UnixNano()] = struct{}{}
		out = append(out, b)
	}
	for _, b := range incoming {
		if _, ok := seen[b.Timestamp.UnixNano()]; ok {
			continue
		}
		seen[b.Timestamp.UnixNano()] = struct{}{}
		out = append(out, b)
	}
	SortBars(out)
	return out
}

// TrimBars returns the sub-slice of a sorted series inside [w.Start, w.End).
func TrimBars(bars []Bar, w Window) []Bar {
	if w.IsZero() {
		return bars
	}
	lo := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Timestamp.Before(w.Start)
	})
	hi := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Timestamp.Before(w.End)
	})
	return bars[lo:hi]
}
