package steps

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"time"
)

// TimeConverter is implemented by store-native timestamp values that can
// report their own instant.
type TimeConverter interface {
	ToTime() time.Time
}

// TimestampMatcher recognizes one timestamp shape. Match reports false
// when the value does not have that shape.
type TimestampMatcher struct {
	Source Source
	Match  func(value any) (time.Time, bool)
}

// DefaultMatchers returns the shapes in resolution order. Zone-less
// date-time strings are read in location.
func DefaultMatchers(location *time.Location) []TimestampMatcher {
	if location == nil {
		location = time.UTC
	}
	return []TimestampMatcher{
		{Source: SourceCalendar, Match: matchCalendar},
		{Source: SourceSeconds, Match: matchSecondsAttribute},
		{Source: SourceEpochMillis, Match: matchEpochMillis},
		{Source: SourceString, Match: func(value any) (time.Time, bool) {
			return matchDateString(value, location)
		}},
	}
}

func matchCalendar(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		return typed, true
	case *time.Time:
		if typed == nil {
			return time.Time{}, false
		}
		return *typed, true
	case TimeConverter:
		if isNilPointer(typed) {
			return time.Time{}, false
		}
		return typed.ToTime(), true
	}
	return time.Time{}, false
}

var (
	earliestInstant = time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC)
	latestInstant   = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)
)

// inRange reports whether instant has a four-digit year. Instants outside
// it cannot be encoded as JSON.
func inRange(instant time.Time) bool {
	year := instant.Year()
	return year >= 0 && year <= 9999
}

func matchSecondsAttribute(value any) (time.Time, bool) {
	seconds, ok := secondsAttribute(value)
	if !ok || seconds < earliestInstant.Unix() || seconds > latestInstant.Unix() {
		return time.Time{}, false
	}
	instant := time.Unix(seconds, 0)
	return instant, inRange(instant)
}

func secondsAttribute(value any) (int64, bool) {
	switch typed := value.(type) {
	case nil:
		return 0, false
	case map[string]any:
		raw, ok := typed["seconds"]
		if !ok {
			return 0, false
		}
		return integerValue(raw)
	case interface{ GetSeconds() int64 }:
		if isNilPointer(typed) {
			return 0, false
		}
		return typed.GetSeconds(), true
	}

	reflected := reflect.ValueOf(value)
	for reflected.Kind() == reflect.Pointer {
		if reflected.IsNil() {
			return 0, false
		}
		reflected = reflected.Elem()
	}
	if reflected.Kind() != reflect.Struct {
		return 0, false
	}
	field := reflected.FieldByName("Seconds")
	if !field.IsValid() || !field.CanInterface() {
		return 0, false
	}
	return integerValue(field.Interface())
}

func matchEpochMillis(value any) (time.Time, bool) {
	if millis, ok := integerValue(value); ok {
		if millis < earliestInstant.UnixMilli() || millis > latestInstant.UnixMilli() {
			return time.Time{}, false
		}
		instant := time.UnixMilli(millis)
		return instant, inRange(instant)
	}
	number, ok := numericValue(value)
	if !ok || number < float64(earliestInstant.UnixMilli()) || number > float64(latestInstant.UnixMilli()) {
		return time.Time{}, false
	}
	whole := math.Floor(number)
	fraction := time.Duration(math.Round((number - whole) * float64(time.Millisecond)))
	instant := time.UnixMilli(int64(whole)).Add(fraction)
	return instant, inRange(instant)
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func matchDateString(value any, location *time.Location) (time.Time, bool) {
	raw, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return time.Time{}, false
	}

	for _, layout := range zonedLayouts {
		if parsed, err := time.Parse(layout, candidate); err == nil {
			return parsed, true
		}
	}
	if parsed, err := time.ParseInLocation(time.DateOnly, candidate, time.UTC); err == nil {
		return parsed, true
	}
	for _, layout := range zonelessLayouts {
		if parsed, err := time.ParseInLocation(layout, candidate, location); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// integerValue reports values that hold a whole number, including
// integral floats and json.Number.
func integerValue(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int8:
		return int64(typed), true
	case int16:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	case uint:
		return int64(typed), true
	case uint8:
		return int64(typed), true
	case uint16:
		return int64(typed), true
	case uint32:
		return int64(typed), true
	case uint64:
		if typed > math.MaxInt64 {
			return 0, false
		}
		return int64(typed), true
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed, true
		}
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return integralFloat(parsed)
	case float32:
		return integralFloat(float64(typed))
	case float64:
		return integralFloat(typed)
	}
	return 0, false
}

func integralFloat(value float64) (int64, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value != math.Trunc(value) {
		return 0, false
	}
	if value > math.MaxInt64 || value < math.MinInt64 {
		return 0, false
	}
	return int64(value), true
}

func numericValue(value any) (float64, bool) {
	if integer, ok := integerValue(value); ok {
		return float64(integer), true
	}

	var number float64
	switch typed := value.(type) {
	case float32:
		number = float64(typed)
	case float64:
		number = typed
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		number = parsed
	default:
		return 0, false
	}
	if math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, false
	}
	return number, true
}

func isNilPointer(value any) bool {
	reflected := reflect.ValueOf(value)
	return reflected.Kind() == reflect.Pointer && reflected.IsNil()
}
