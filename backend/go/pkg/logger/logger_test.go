package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"minerva/backend/go/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONFields(t *testing.T) {
	var buf bytes.Buffer
	Init(logrus.DebugLevel)
	SetOutput(&buf)

	New("router", "conv-1", "").
		WithPayload(map[string]interface{}{"agent": "web"}).
		Info("turn finished")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "turn finished", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "router", line["service_name"])
	assert.Equal(t, "conv-1", line["trace_id"])
	assert.Contains(t, line, "timestamp")
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	Init(logrus.InfoLevel)
	SetOutput(&buf)

	base := New("memory", "", "")
	_ = base.WithError(models.ErrorInfo{Message: "boom"})
	base.Warn("plain")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "error")
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
}
