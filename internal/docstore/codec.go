package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const dateKey = "$date"

// Timestamp is the store's native time value. Fields written as time.Time
// come back as Timestamp.
type Timestamp struct {
	instant time.Time
}

func NewTimestamp(instant time.Time) Timestamp {
	return Timestamp{instant: instant}
}

func (timestamp Timestamp) ToTime() time.Time {
	return timestamp.instant
}

func (timestamp Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{dateKey: timestamp.instant.UTC().Format(time.RFC3339Nano)})
}

// EncodeFields serializes document fields. Time values become
// {"$date": RFC3339Nano} objects so they survive the round trip.
func EncodeFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	encoded, err := json.Marshal(encodeValue(fields))
	if err != nil {
		return nil, fmt.Errorf("encode document fields: %w", err)
	}
	return encoded, nil
}

// DecodeFields reverses EncodeFields. Numbers decode as json.Number.
func DecodeFields(raw []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	fields := map[string]any{}
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode document fields: %w", err)
	}
	for key, value := range fields {
		fields[key] = decodeValue(value)
	}
	return fields, nil
}

func encodeValue(value any) any {
	switch typed := value.(type) {
	case time.Time:
		return Timestamp{instant: typed}
	case *time.Time:
		if typed == nil {
			return nil
		}
		return Timestamp{instant: *typed}
	case map[string]any:
		encoded := make(map[string]any, len(typed))
		for key, nested := range typed {
			encoded[key] = encodeValue(nested)
		}
		return encoded
	case []any:
		encoded := make([]any, len(typed))
		for index, nested := range typed {
			encoded[index] = encodeValue(nested)
		}
		return encoded
	default:
		return value
	}
}

func decodeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		if timestamp, ok := decodeTimestamp(typed); ok {
			return timestamp
		}
		for key, nested := range typed {
			typed[key] = decodeValue(nested)
		}
		return typed
	case []any:
		for index, nested := range typed {
			typed[index] = decodeValue(nested)
		}
		return typed
	default:
		return value
	}
}

func decodeTimestamp(object map[string]any) (Timestamp, bool) {
	if len(object) != 1 {
		return Timestamp{}, false
	}
	raw, ok := object[dateKey].(string)
	if !ok {
		return Timestamp{}, false
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return Timestamp{}, false
	}
	return Timestamp{instant: parsed}, true
}
