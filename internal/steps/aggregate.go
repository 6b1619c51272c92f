package steps

import (
	"sort"
	"time"
)

// SortChronological returns a copy ordered by ObservedAt ascending. Equal
// instants keep their input order.
func SortChronological(records []Record) []Record {
	ordered := make([]Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ObservedAt.Before(ordered[j].ObservedAt)
	})
	return ordered
}

// Summarize reports count, total and mean steps. The mean of an empty set
// is 0.
func Summarize(records []Record) Statistics {
	stats := Statistics{Count: len(records)}
	for _, record := range records {
		stats.Total += record.Steps
		if !record.TimestampValid {
			stats.InvalidTimestamps++
		}
	}
	if stats.Count > 0 {
		stats.Average = float64(stats.Total) / float64(stats.Count)
	}
	return stats
}

// RecentActivity returns the last limit records, most recent first.
func RecentActivity(records []Record, limit int) []Record {
	if limit <= 0 {
		return []Record{}
	}
	start := len(records) - limit
	if start < 0 {
		start = 0
	}

	recent := make([]Record, 0, len(records)-start)
	for index := len(records) - 1; index >= start; index-- {
		recent = append(recent, records[index])
	}
	return recent
}

func ToChartSeries(records []Record, location *time.Location) ChartSeries {
	if location == nil {
		location = time.UTC
	}
	series := ChartSeries{
		Labels: make([]string, len(records)),
		Values: make([]int, len(records)),
	}
	for index, record := range records {
		series.Labels[index] = record.ObservedAt.In(location).Format(ChartLabelLayout)
		series.Values[index] = record.Steps
	}
	return series
}
