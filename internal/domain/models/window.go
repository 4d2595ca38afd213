package models

import (
	"fmt"
	"time"
)

// Window is a half-open time range [Start, End). The zero Window means
// "the whole series" when passed to a store read.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow builds a validated UTC window.
func NewWindow(start, end time.Time) (Window, error) {
	if !start.Before(end) {
		return Window{}, fmt.Errorf("window start %s must precede end %s", start, end)
	}
	return Window{Start: start.UTC(), End: end.UTC()}, nil
}

// IsZero reports whether the window is unbounded.
func (w Window) IsZero() bool { return w.Start.IsZero() && w.End.IsZero() }

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// Gap is a half-open sub-range of a requested window where no bar exists
// at the expected step. Gaps are computed per invocation, never persisted.
type Gap struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (g Gap) String() string {
	return fmt.Sprintf("[%s, %s)", g.Start.Format(time.RFC3339), g.End.Format(time.RFC3339))
}

// Window converts the gap to a fetch window.
func (g Gap) Window() Window { return Window{Start: g.Start, End: g.End} }
