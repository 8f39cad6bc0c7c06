package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("debug", "json", &buf)
	require.NoError(t, err)

	Component(logger, "patient").WithField("case_number", "7").Debug("case set")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "case set", entry["msg"])
	assert.Equal(t, "patient", entry["component"])
	assert.Equal(t, "7", entry["case_number"])
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", "text", &buf)
	require.NoError(t, err)

	logger.Info("hidden")

	assert.Empty(t, buf.String())
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("loud", "text", nil)
	assert.Error(t, err)

	_, err = New("info", "xml", nil)
	assert.Error(t, err)
}
