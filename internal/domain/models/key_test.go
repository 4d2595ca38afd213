package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BarFlow/internal/timeframe"
)

func TestBuildKeyShapes(t *testing.T) {
	tf := timeframe.MustParse("5m")
	assert.Equal(t, StorageKey("binance/BTCUSDT/bars/5m"), BarsKey("binance", "BTCUSDT", tf))
	assert.Equal(t, StorageKey("polygon/AAPL/quotes"), QuotesKey("polygon", "AAPL"))
	assert.Equal(t, StorageKey("polygon/AAPL/fundamentals"), FundamentalsKey("polygon", "AAPL"))
	assert.Equal(t, StorageKey("polygon/AAPL/corp_actions"), CorpActionsKey("polygon", "AAPL"))
}

func TestBuildKeyCanonicalTimeframe(t *testing.T) {
	// Equivalent spellings land on the same series.
	a := BarsKey("binance", "BTCUSDT", timeframe.MustParse("60m"))
	b := BarsKey("binance", "BTCUSDT", timeframe.MustParse("1h"))
	assert.Equal(t, a, b)

	c := BarsKey("binance", "BTCUSDT", timeframe.MustParse("1440m"))
	d := BarsKey("binance", "BTCUSDT", timeframe.MustParse("24h"))
	assert.Equal(t, c, d)
	assert.Equal(t, StorageKey("binance/BTCUSDT/bars/1d"), c)
}

func TestBuildKeyDeterministic(t *testing.T) {
	tf := timeframe.Minute
	assert.Equal(t,
		BarsKey("binance", "BTCUSDT", tf),
		BarsKey("binance", "BTCUSDT", tf),
	)
	assert.NotEqual(t,
		BarsKey("binance", "BTCUSDT", tf),
		BarsKey("polygon", "BTCUSDT", tf),
	)
}

func TestParseBarsKeyRoundTrip(t *testing.T) {
	key := BarsKey("binance", "BTCUSDT", timeframe.MustParse("4h"))
	ref, ok := ParseBarsKey(key)
	require.True(t, ok)
	assert.Equal(t, SeriesRef{Provider: "binance", Symbol: "BTCUSDT", Timeframe: "4h"}, ref)
}

func TestParseBarsKeyRejectsOtherKinds(t *testing.T) {
	_, ok := ParseBarsKey(QuotesKey("polygon", "AAPL"))
	assert.False(t, ok)

	_, ok = ParseBarsKey(StorageKey("garbage"))
	assert.False(t, ok)
}
