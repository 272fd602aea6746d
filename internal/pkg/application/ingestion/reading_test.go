package ingestion

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberAcceptsNumbersStringsAndNull(t *testing.T) {
	r := Reading{}
	err := json.Unmarshal([]byte(`{"consumption":"1.5","temperature":21,"humidity":null,"device_id":""}`), &r)
	require.NoError(t, err)

	assert.Equal(t, NewNumber(1.5), r.Consumption)
	assert.Equal(t, NewNumber(21), r.Temperature)
	assert.False(t, r.Humidity.Valid)
	assert.Nil(t, r.Humidity.Ptr())
	assert.False(t, r.DeviceID.Valid)
}

func TestNumberRejectsNonNumericStrings(t *testing.T) {
	r := Reading{}
	err := json.Unmarshal([]byte(`{"consumption":"lots"}`), &r)
	assert.Error(t, err)
}

func TestTimestampFormats(t *testing.T) {
	loc := time.FixedZone("UTC+1", 60*60)

	is := func(raw string, expected time.Time) {
		r := Reading{}
		require.NoError(t, json.Unmarshal([]byte(`{"timestamp":`+raw+`}`), &r))
		ts, err := r.Timestamp.Time(loc)
		require.NoError(t, err)
		assert.True(t, expected.Equal(ts), "%s parsed as %s", raw, ts)
	}

	is(`"2024-03-05T10:15:00Z"`, time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC))
	is(`"2024-03-05 10:15:00"`, time.Date(2024, 3, 5, 10, 15, 0, 0, loc))
	is(`1709633700000`, time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC))
	is(`"1709633700000"`, time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC))

	r := Reading{}
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":null}`), &r))
	assert.True(t, r.Timestamp.IsZero())

	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"yesterday"}`), &r))
	_, err := r.Timestamp.Time(loc)
	assert.Error(t, err)
}

func TestThatEpochsBeyondInt64AreRejected(t *testing.T) {
	for _, raw := range []string{`1e30`, `-1e30`, `9223372036854775808`} {
		r := Reading{}
		if err := json.Unmarshal([]byte(`{"timestamp":`+raw+`}`), &r); err == nil {
			t.Errorf("expected timestamp %s to be rejected", raw)
		}
	}
}

func TestThatTimestampsWithoutACalendarDateAreRejected(t *testing.T) {
	r := Reading{}
	if err := json.Unmarshal([]byte(`{"timestamp":1e18}`), &r); err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	if _, err := r.Timestamp.Time(time.UTC); err == nil {
		t.Error("expected a timestamp millions of years away to be rejected")
	}

	if err := json.Unmarshal([]byte(`{"timestamp":"-62135596800001"}`), &r); err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	if _, err := r.Timestamp.Time(time.UTC); err == nil {
		t.Error("expected a timestamp before year 1 to be rejected")
	}
}
