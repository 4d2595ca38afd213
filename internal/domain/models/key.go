package models

import (
	"fmt"
	"strings"

	"BarFlow/internal/timeframe"
)

// StorageKey identifies one logical series in the store. Construction goes
// through BuildKey (or the kind helpers) only; the same (provider, symbol,
// kind, timeframe) tuple always maps to the same key.
type StorageKey string

func (k StorageKey) String() string { return string(k) }

// DatasetKind enumerates the dataset families a provider can produce.
type DatasetKind string

const (
	KindBars         DatasetKind = "bars"
	KindQuotes       DatasetKind = "quotes"
	KindFundamentals DatasetKind = "fundamentals"
	KindCorpActions  DatasetKind = "corp_actions"
)

// BuildKey assembles the storage key for a series. The timeframe segment is
// present only for bars and uses the canonical Spec rendering, so "60m" and
// "1h" requests land on the same key.
func BuildKey(provider, symbol string, kind DatasetKind, tf timeframe.Spec) StorageKey {
	if kind == KindBars {
		return StorageKey(fmt.Sprintf("%s/%s/%s/%s", provider, symbol, kind, tf))
	}
	return StorageKey(fmt.Sprintf("%s/%s/%s", provider, symbol, kind))
}

// BarsKey is the common-case helper for bar series.
func BarsKey(provider, symbol string, tf timeframe.Spec) StorageKey {
	return BuildKey(provider, symbol, KindBars, tf)
}

// QuotesKey builds the key for a quote series.
func QuotesKey(provider, symbol string) StorageKey {
	return BuildKey(provider, symbol, KindQuotes, timeframe.Spec{})
}

// FundamentalsKey builds the key for fundamentals snapshots.
func FundamentalsKey(provider, symbol string) StorageKey {
	return BuildKey(provider, symbol, KindFundamentals, timeframe.Spec{})
}

// CorpActionsKey builds the key for corporate actions.
func CorpActionsKey(provider, symbol string) StorageKey {
	return BuildKey(provider, symbol, KindCorpActions, timeframe.Spec{})
}

// SeriesRef is a parsed bar-series key, used when listing stored series.
type SeriesRef struct {
	Provider  string `json:"provider"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// ParseBarsKey inverts BarsKey. Keys for other dataset kinds return ok=false.
func ParseBarsKey(key StorageKey) (SeriesRef, bool) {
	parts := strings.Split(string(key), "/")
	if len(parts) != 4 || parts[2] != string(KindBars) {
		return SeriesRef{}, false
	}
	return SeriesRef{Provider: parts[0], Symbol: parts[1], Timeframe: parts[3]}, true
}
