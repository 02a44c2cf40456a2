package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Layouts accepted for client timestamps. Values without an offset are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Stored times are kept as Unix nanoseconds, which overflow outside
// 1678..2262; clients are held to a narrower window.
var (
	minTimestamp = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxTimestamp = time.Date(2200, time.January, 1, 0, 0, 0, 0, time.UTC)
)

func checkTimestampRange(t time.Time) error {
	if t.Before(minTimestamp) || !t.Before(maxTimestamp) {
		return fmt.Errorf("%s outside %d..%d: %w",
			t.Format(time.RFC3339), minTimestamp.Year(), maxTimestamp.Year()-1, ErrInvalidTimestamp)
	}
	return nil
}

// ParseTimestamp parses an RFC3339 timestamp or a date-time without offset,
// which is read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if err := checkTimestampRange(t); err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%q is not a timestamp: %w", s, ErrInvalidTimestamp)
}

// Date is a calendar date. It decodes from "2006-01-02" or any
// ParseTimestamp layout and encodes as "2006-01-02".
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day at UTC midnight.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		if err := checkTimestampRange(t); err != nil {
			return Date{}, err
		}
		return NewDate(t), nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return Date{}, err
	}
	return NewDate(t), nil
}

// String returns the date as "2006-01-02".
func (d Date) String() string { return d.Format(DateLayout) }

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", ErrInvalidTimestamp)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// wireTime decodes a JSON timestamp with ParseTimestamp.
type wireTime time.Time

func (w *wireTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", ErrInvalidTimestamp)
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*w = wireTime(t)
	return nil
}

func (w *wireTime) ptr() *time.Time {
	if w == nil {
		return nil
	}
	t := time.Time(*w)
	return &t
}
