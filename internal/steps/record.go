// Package steps turns raw step documents into an ordered time series and
// derives the views the dashboard renders from it.
package steps

import (
	"math"
	"time"
)

const (
	CollectionName     = "steps"
	UserIDField        = "userId"
	StepsField         = "steps"
	LegacyStepsField   = "stepCount"
	TimestampField     = "timestamp"
	DefaultRecentLimit = 5
	ChartLabelLayout   = "15:04"
)

// Source names the timestamp shape that produced a record's instant.
type Source string

const (
	SourceCalendar    Source = "calendar"
	SourceSeconds     Source = "seconds"
	SourceEpochMillis Source = "epoch_millis"
	SourceString      Source = "string"
	SourceFallback    Source = "fallback"
)

// RawDocument is a step document as returned by the store. Nothing about
// its fields is trusted.
type RawDocument struct {
	ID     string
	Fields map[string]any
}

// Record is one normalized document. RawTimestamp keeps the untrusted
// stored value and is never serialized.
type Record struct {
	ID              string    `json:"id"`
	Steps           int       `json:"steps"`
	ObservedAt      time.Time `json:"observed_at"`
	RawTimestamp    any       `json:"-"`
	TimestampSource Source    `json:"timestamp_source"`
	// TimestampValid is false when no shape matched and ObservedAt holds
	// the normalization time instead.
	TimestampValid bool `json:"timestamp_valid"`
}

type Statistics struct {
	Count             int     `json:"count"`
	Total             int     `json:"total"`
	Average           float64 `json:"average"`
	InvalidTimestamps int     `json:"invalid_timestamps"`
}

func (stats Statistics) RoundedAverage() int {
	return int(math.Round(stats.Average))
}

type ChartSeries struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// Dashboard bundles every view derived from one fetch.
type Dashboard struct {
	Records []Record    `json:"records"`
	Stats   Statistics  `json:"stats"`
	Chart   ChartSeries `json:"chart"`
	Recent  []Record    `json:"recent"`
}

func (dashboard Dashboard) Empty() bool {
	return dashboard.Stats.Count == 0
}
