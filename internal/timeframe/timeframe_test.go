package timeframe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		spec    string
		minutes int
	}{
		{"1m", 1},
		{"5m", 5},
		{"15m", 15},
		{"30m", 30},
		{"90m", 90},
		{"1h", 60},
		{"2h", 120},
		{"4h", 240},
		{"8h", 480},
		{"12h", 720},
		{"1d", 1440},
		{"2d", 2880},
		{"7m", 7},
	}
	for _, c := range cases {
		t.Run(c.spec, func(t *testing.T) {
			s, err := Parse(c.spec)
			require.NoError(t, err)
			assert.Equal(t, c.minutes, s.Minutes)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, spec := range []string{"", "m", "1", "0m", "-5m", "1.5h", "5s", "1w", "h1", "5 m"} {
		t.Run(spec, func(t *testing.T) {
			_, err := Parse(spec)
			assert.ErrorIs(t, err, ErrInvalidTimeframe)
		})
	}
}

func TestStringCanonical(t *testing.T) {
	// "60m" and "1h" are the same logical series and must render identically.
	a := MustParse("60m")
	b := MustParse("1h")
	assert.Equal(t, a, b)
	assert.Equal(t, "1h", a.String())

	assert.Equal(t, "5m", MustParse("5m").String())
	assert.Equal(t, "90m", MustParse("90m").String())
	assert.Equal(t, "1d", MustParse("1440m").String())
	assert.Equal(t, "2d", MustParse("2d").String())
}

func TestAlignWallClock(t *testing.T) {
	ts := time.Date(2024, 3, 15, 13, 47, 12, 0, time.UTC)

	cases := []struct {
		spec string
		want time.Time
	}{
		{"1m", time.Date(2024, 3, 15, 13, 47, 0, 0, time.UTC)},
		{"5m", time.Date(2024, 3, 15, 13, 45, 0, 0, time.UTC)},
		{"15m", time.Date(2024, 3, 15, 13, 45, 0, 0, time.UTC)},
		{"1h", time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)},
		// 4h boundaries sit at 00:00, 04:00, 08:00, 12:00... UTC.
		{"4h", time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)},
		{"1d", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		t.Run(c.spec, func(t *testing.T) {
			got := MustParse(c.spec).Align(ts)
			assert.True(t, c.want.Equal(got), "got %v", got)
		})
	}
}

func TestAlignAnchorsToUTCDay(t *testing.T) {
	// A 7m frame does not divide the day evenly; boundaries still restart
	// at every UTC midnight so alignment is independent of data start.
	s := MustParse("7m")
	got := s.Align(time.Date(2024, 3, 15, 0, 13, 0, 0, time.UTC))
	assert.True(t, time.Date(2024, 3, 15, 0, 7, 0, 0, time.UTC).Equal(got))

	midnight := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, midnight.Equal(s.Align(midnight)))
}

func TestAlignIdempotent(t *testing.T) {
	ts := time.Date(2024, 7, 2, 9, 31, 59, 0, time.UTC)
	for _, spec := range []string{"1m", "5m", "7m", "90m", "1h", "4h", "1d", "2d"} {
		s := MustParse(spec)
		once := s.Align(ts)
		assert.True(t, once.Equal(s.Align(once)), "align not idempotent for %s", spec)
	}
}

func TestAlignNonUTCInput(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	local := time.Date(2024, 3, 15, 20, 47, 0, 0, loc) // 13:47 UTC
	got := MustParse("4h").Align(local)
	assert.True(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC).Equal(got))
}

func TestPeriodEnd(t *testing.T) {
	b := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	assert.True(t, b.Add(4*time.Hour).Equal(MustParse("4h").PeriodEnd(b)))
	assert.True(t, b.Add(time.Minute).Equal(Minute.PeriodEnd(b)))
}
