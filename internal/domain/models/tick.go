package models

import "time"

// Tick is one trade print from a live stream, the only input finer than
// the canonical minute. The wire shape matches the resampler's topic
// payload, with T in unix milliseconds.
type Tick struct {
	Symbol string  `json:"symbol"`
	T      int64   `json:"t"`
	Price  float64 `json:"p"`
	Volume float64 `json:"v"`
}

// Time returns the tick timestamp in UTC.
func (t Tick) Time() time.Time { return time.UnixMilli(t.T).UTC() }
