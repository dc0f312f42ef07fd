package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// timestampLayouts are tried in order. Zone-less layouts are read as UTC; the
// second and third match what a browser datetime-local input submits.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var (
	// ErrInvalidTimestamp is wrapped by every timestamp parse failure.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrTimestampOutOfRange is wrapped, together with ErrInvalidTimestamp,
	// when a well-formed value falls outside [MinTimestamp, MaxTimestamp].
	ErrTimestampOutOfRange = errors.New("timestamp out of range")
)

// MinTimestamp and MaxTimestamp bound the instants that fit in int64 unix
// nanoseconds, which is how storage keeps date_caught.
//
// TIMESTAMP RANGE:
// time.Time.UnixNano is undefined outside roughly 1677-09-21 .. 2262-04-11.
// Past those edges the value silently wraps to an unrelated instant, so we
// refuse it at the door instead of storing garbage.
var (
	MinTimestamp = time.Unix(0, math.MinInt64).UTC()
	MaxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// CheckTimestampRange reports whether t can be stored without overflow.
func CheckTimestampRange(t time.Time) error {
	if t.Before(MinTimestamp) || t.After(MaxTimestamp) {
		return fmt.Errorf("%w: %w: %s is outside %s .. %s", ErrInvalidTimestamp, ErrTimestampOutOfRange,
			t.UTC().Format(time.RFC3339), MinTimestamp.Format(time.RFC3339), MaxTimestamp.Format(time.RFC3339))
	}
	return nil
}

// Timestamp is a time.Time that accepts the loose date formats clients send
// for date_caught. It always holds a UTC instant.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses s with the first matching layout and returns it in
// UTC. Values that parse but cannot be stored are rejected with
// ErrTimestampOutOfRange.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if err := CheckTimestampRange(t); err != nil {
				return time.Time{}, err
			}
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised value %q", ErrInvalidTimestamp, s)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: expected a string", ErrInvalidTimestamp)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}
