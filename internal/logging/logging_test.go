package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelsearcy/charrnn-go/pkg/contract"
)

func TestJSONRecordsCarryRunID(t *testing.T) {
	var buf bytes.Buffer
	id := NewRunID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	log, err := New(&buf, "", "", id)
	require.NoError(t, err)
	log.Info("step", "loss", 1.5)
	log.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, id, rec["run_id"])
	assert.Equal(t, "step", rec["msg"])
	assert.Equal(t, 1.5, rec["loss"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestTextAndLevels(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "DEBUG", "text", "r1")
	require.NoError(t, err)
	log.Debug("shown")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "run_id=r1")

	buf.Reset()
	log, err = New(&buf, "warn", "json", "r1")
	require.NoError(t, err)
	log.Info("dropped")
	assert.Empty(t, buf.String())
}

func TestInvalid(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "json", "r")
	require.ErrorIs(t, err, contract.ErrInvalidConfiguration)
	_, err = New(&bytes.Buffer{}, "info", "xml", "r")
	require.ErrorIs(t, err, contract.ErrInvalidConfiguration)
}

func TestRunIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
}
