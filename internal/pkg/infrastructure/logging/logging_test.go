package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThatEntriesAreWrittenAsJSONWithFields(t *testing.T) {
	out := &bytes.Buffer{}
	log := NewLoggerTo(out, "info").WithField("device", "E1")

	log.Infof("recorded %d readings", 2)

	entry := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "recorded 2 readings", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "E1", entry["device"])
	assert.Equal(t, "energy-dashboard", entry["service"])
}

func TestThatEntriesBelowTheLevelAreDropped(t *testing.T) {
	out := &bytes.Buffer{}
	log := NewLoggerTo(out, "warn")

	log.Infof("not written")
	assert.Zero(t, out.Len())

	log.Warnf("written")
	assert.NotZero(t, out.Len())
}

func TestThatAnUnknownLevelFallsBackToInfo(t *testing.T) {
	out := &bytes.Buffer{}
	log := NewLoggerTo(out, "chatty")

	log.Debugf("not written")
	log.Print("written")

	assert.Contains(t, out.String(), `"msg":"written"`)
	assert.NotContains(t, out.String(), "not written")
}
