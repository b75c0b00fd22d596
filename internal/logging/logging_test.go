package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLoggerKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", "service")
	l.Debug("hidden", "op", "add_flight")
	l.Info("flight shifted", "flight", "MH-101", "shift_minutes", 30)
	l.Error("operation failed", "error", errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "flight shifted", entries[0]["message"])
	assert.Equal(t, "service", entries[0]["component"])
	assert.Equal(t, "MH-101", entries[0]["flight"])
	assert.EqualValues(t, 30, entries[0]["shift_minutes"])
	assert.Equal(t, "boom", entries[1]["error"])
	assert.NoError(t, l.Close())
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	require.NoError(t, cfg.Validate())

	assert.Error(t, Config{Level: "loud", Format: "json"}.Validate())
	assert.Error(t, Config{Level: "info", Format: "xml"}.Validate())

	withFile := Config{File: "logs/flightcore.log"}
	withFile.SetDefaults()
	assert.Equal(t, 10, withFile.MaxSizeMB)
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "flightcore.log")
	l, err := New(Config{Level: "debug", Format: "json", File: path}, "cli")
	require.NoError(t, err)
	l.Debug("operation completed", "operation", "list_flights")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operation":"list_flights"`)

	_, err = New(Config{Level: "verbose"}, "cli")
	assert.Error(t, err)
}
