package steps

import (
	"math"
	"time"

	"go.uber.org/zap"
)

type Normalizer struct {
	location   *time.Location
	matchers   []TimestampMatcher
	now        func() time.Time
	logger     *zap.Logger
	onFallback func(Record)
}

type Option func(*Normalizer)

// WithMatchers replaces the timestamp matchers. Order is priority order.
func WithMatchers(matchers ...TimestampMatcher) Option {
	return func(normalizer *Normalizer) {
		normalizer.matchers = append([]TimestampMatcher(nil), matchers...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(normalizer *Normalizer) {
		if now != nil {
			normalizer.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(normalizer *Normalizer) {
		if logger != nil {
			normalizer.logger = logger
		}
	}
}

// WithFallbackHook registers a callback invoked for every record whose
// timestamp matched no shape.
func WithFallbackHook(hook func(Record)) Option {
	return func(normalizer *Normalizer) {
		normalizer.onFallback = hook
	}
}

func NewNormalizer(location *time.Location, options ...Option) *Normalizer {
	if location == nil {
		location = time.UTC
	}
	normalizer := &Normalizer{
		location: location,
		matchers: DefaultMatchers(location),
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		option(normalizer)
	}
	return normalizer
}

func (normalizer *Normalizer) Location() *time.Location {
	return normalizer.location
}

// Normalize converts every document into a Record. The result has the
// same length and order as documents.
func (normalizer *Normalizer) Normalize(documents []RawDocument) []Record {
	records := make([]Record, 0, len(documents))
	for _, document := range documents {
		records = append(records, normalizer.normalizeDocument(document))
	}
	return records
}

func (normalizer *Normalizer) normalizeDocument(document RawDocument) Record {
	rawTimestamp := document.Fields[TimestampField]
	record := Record{
		ID:           document.ID,
		Steps:        resolveSteps(document.Fields),
		RawTimestamp: rawTimestamp,
	}

	for _, matcher := range normalizer.matchers {
		observedAt, ok := matcher.Match(rawTimestamp)
		if !ok || !inRange(observedAt) {
			continue
		}
		record.ObservedAt = observedAt
		record.TimestampSource = matcher.Source
		record.TimestampValid = true
		normalizer.logger.Debug("timestamp resolved",
			zap.String("document_id", document.ID),
			zap.String("source", string(matcher.Source)),
			zap.Time("observed_at", observedAt),
		)
		return record
	}

	record.ObservedAt = normalizer.now()
	record.TimestampSource = SourceFallback
	normalizer.logger.Warn("unrecognized timestamp, substituting current time",
		zap.String("document_id", document.ID),
		zap.Any("raw_timestamp", rawTimestamp),
	)
	if normalizer.onFallback != nil {
		normalizer.onFallback(record)
	}
	return record
}

func resolveSteps(fields map[string]any) int {
	for _, key := range []string{StepsField, LegacyStepsField} {
		if count, ok := truthyCount(fields[key]); ok {
			return count
		}
	}
	return 0
}

// maxStepCount bounds a single document's count so that summing any
// realistic number of documents cannot overflow.
const maxStepCount = math.MaxInt32

// truthyCount accepts any non-zero number within ±maxStepCount. Fractions
// truncate toward zero.
func truthyCount(value any) (int, bool) {
	if integer, ok := integerValue(value); ok {
		if integer == 0 || integer > maxStepCount || integer < -maxStepCount {
			return 0, false
		}
		return int(integer), true
	}
	number, ok := numericValue(value)
	if !ok || number > maxStepCount || number < -maxStepCount {
		return 0, false
	}
	count := int(number)
	return count, count != 0
}

// Build runs normalize, sort and every derived view over one document set.
func (normalizer *Normalizer) Build(documents []RawDocument, recentLimit int) Dashboard {
	ordered := SortChronological(normalizer.Normalize(documents))
	return Dashboard{
		Records: ordered,
		Stats:   Summarize(ordered),
		Chart:   ToChartSeries(ordered, normalizer.location),
		Recent:  RecentActivity(ordered, recentLimit),
	}
}
