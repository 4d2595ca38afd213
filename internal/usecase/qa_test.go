package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunBarQACleanSeries(t *testing.T) {
	res := RunBarQA(minuteBars("fake", "AAPL", mustUTC(2024, 5, 6, 9, 0), 30))
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 30, res.RowCount)
}

func TestRunBarQAEmptySeries(t *testing.T) {
	res := RunBarQA(nil)
	assert.True(t, res.Valid)
	assert.Zero(t, res.RowCount)
}

func TestRunBarQAOHLCViolation(t *testing.T) {
	start := mustUTC(2024, 5, 6, 9, 0)
	series := minuteBars("fake", "AAPL", start, 5)
	series[2].High = series[2].Low - 1

	res := RunBarQA(series)
	assert.False(t, res.Valid)
	assert.Equal(t, 1, res.OHLCInconsistencies)
}

func TestRunBarQANegativeVolume(t *testing.T) {
	series := minuteBars("fake", "AAPL", mustUTC(2024, 5, 6, 9, 0), 5)
	series[0].Volume = -1

	res := RunBarQA(series)
	assert.False(t, res.Valid)
	assert.Equal(t, 1, res.NegativeVolume)
}

func TestRunBarQADuplicateAndUnorderedTimestamps(t *testing.T) {
	start := mustUTC(2024, 5, 6, 9, 0)
	series := minuteBars("fake", "AAPL", start, 5)
	series[3].Timestamp = series[1].Timestamp

	res := RunBarQA(series)
	assert.False(t, res.Valid)
	assert.Equal(t, 1, res.DuplicateTimestamps)
	assert.Equal(t, 1, res.NonMonotonic)
}

func TestRunBarQAExtremeMoveIsWarningOnly(t *testing.T) {
	start := mustUTC(2024, 5, 6, 9, 0)
	series := minuteBars("fake", "AAPL", start, 3)
	series[1].Close = series[0].Close * 1.5
	series[1].High = series[1].Close
	series[2].Open = series[1].Close
	series[2].Close = series[1].Close
	series[2].High = series[1].Close
	series[2].Low = series[1].Close

	res := RunBarQA(series)
	assert.True(t, res.Valid, "extreme moves warn, they do not invalidate")
	assert.NotEmpty(t, res.Warnings)
	assert.Equal(t, 1, res.ExtremeMoves)
}

func TestRunBarQAZeroVolumeRatioWarning(t *testing.T) {
	start := mustUTC(2024, 5, 6, 9, 0)
	series := minuteBars("fake", "AAPL", start, 10)
	for i := 0; i < 8; i++ {
		series[i].Volume = 0
	}

	res := RunBarQA(series)
	assert.True(t, res.Valid)
	assert.InDelta(t, 0.8, res.ZeroVolumeRatio, 1e-9)
	assert.NotEmpty(t, res.Warnings)
}
