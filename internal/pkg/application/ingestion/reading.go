package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

//Reading is a single measurement pushed by a device or by a flow acting on its behalf
type Reading struct {
	DeviceID    Number    `json:"device_id"`
	DeviceEUI   string    `json:"device_eui"`
	Consumption Number    `json:"consumption"`
	Temperature Number    `json:"temperature"`
	Humidity    Number    `json:"humidity"`
	Timestamp   Timestamp `json:"timestamp"`
	DeviceName  string    `json:"device_name,omitempty"`
	DeviceType  string    `json:"device_type,omitempty"`
}

//Number is an optional numeric field that accepts JSON numbers as well as numeric
//strings. Null, an empty string or a missing field leaves it invalid.
type Number struct {
	Value float64
	Valid bool
}

//NewNumber returns a valid Number holding f
func NewNumber(f float64) Number {
	return Number{Value: f, Valid: true}
}

//UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", s)
		}
		*n = NewNumber(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = NewNumber(f)
	return nil
}

//MarshalJSON implements json.Marshaler
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

//Ptr returns nil for an absent value
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

//Timestamp accepts RFC 3339 strings, zone less date times and unix epoch milliseconds
type Timestamp struct {
	raw    string
	millis *int64
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

//UnmarshalJSON implements json.Unmarshaler
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = Timestamp{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		return json.Unmarshal(data, &ts.raw)
	}

	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	if math.Abs(ms) >= 1<<63 {
		return fmt.Errorf("timestamp %s is out of range", data)
	}
	i := int64(ms)
	ts.millis = &i
	return nil
}

//MarshalJSON implements json.Marshaler
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.millis != nil {
		return json.Marshal(*ts.millis)
	}
	if ts.raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(ts.raw)
}

//IsZero reports whether no timestamp was given
func (ts Timestamp) IsZero() bool {
	return ts.millis == nil && strings.TrimSpace(ts.raw) == ""
}

//NewTimestamp returns a Timestamp for t
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{raw: t.Format(time.RFC3339Nano)}
}

//Time resolves the timestamp. Values without a zone are read in loc. Times outside
//the years 1 to 9999 are rejected since they have no YYYY-MM-DD date.
func (ts Timestamp) Time(loc *time.Location) (time.Time, error) {
	t, err := ts.resolve(loc)
	if err != nil {
		return t, err
	}

	if y := t.Year(); y < 1 || y > 9999 {
		return time.Time{}, fmt.Errorf("timestamp is out of range")
	}

	return t, nil
}

func (ts Timestamp) resolve(loc *time.Location) (time.Time, error) {
	if ts.millis != nil {
		return time.UnixMilli(*ts.millis).In(loc), nil
	}

	raw := strings.TrimSpace(ts.raw)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).In(loc), nil
	}

	return time.Time{}, fmt.Errorf("invalid timestamp %q", ts.raw)
}
