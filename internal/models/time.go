package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// UnixTime is a time.Time carried on the wire as Unix seconds.
type UnixTime struct {
	time.Time
}

// NewUnixTime truncates t to whole seconds.
func NewUnixTime(t time.Time) UnixTime {
	return UnixTime{Time: time.Unix(t.Unix(), 0)}
}

// MarshalJSON writes the number of seconds since the epoch; the zero time is 0.
func (t UnixTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("0"), nil
	}
	return []byte(fmt.Sprintf("%d", t.Unix())), nil
}

// UnmarshalJSON accepts integer or fractional seconds, and null.
func (t *UnixTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid unix time %s: %w", b, err)
	}
	if i, err := n.Int64(); err == nil {
		t.set(i, 0)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("invalid unix time %s: %w", b, err)
	}
	sec, frac := math.Modf(f)
	t.set(int64(sec), int64(frac*1e9))
	return nil
}

func (t *UnixTime) set(sec, nsec int64) {
	if sec == 0 && nsec == 0 {
		t.Time = time.Time{}
		return
	}
	t.Time = time.Unix(sec, nsec)
}

// String renders the time in local time, or an empty string for the zero value.
func (t UnixTime) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
