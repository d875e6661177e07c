package logging_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devopsapp/devops-app/internal/config"
	"github.com/devopsapp/devops-app/internal/logging"
)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.App.Debug = false
	cfg.Logging.File = "/runtime/logs/app.log"
	return cfg
}

func readLines(t *testing.T, fs afero.Fs, path string) []map[string]interface{} {
	t.Helper()
	raw, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_FileTargetFiltersLevels(t *testing.T) {
	fs := afero.NewMemMapFs()
	var out bytes.Buffer

	log, err := logging.New(testConfig(), fs, &out)
	require.NoError(t, err)

	log.Info().Msg("info message")
	log.Warn().Msg("warn message")
	log.Error().Msg("error message")
	require.NoError(t, log.Close())

	entries := readLines(t, fs, "/runtime/logs/app.log")
	require.Len(t, entries, 2)
	assert.Equal(t, "warn message", entries[0]["message"])
	assert.Equal(t, "error message", entries[1]["message"])

	// console receives everything at or above the configured level
	assert.Equal(t, 3, bytes.Count(out.Bytes(), []byte("\n")))
}

func TestNew_CommonFields(t *testing.T) {
	var out bytes.Buffer
	cfg := testConfig()
	cfg.Logging.File = ""

	log, err := logging.New(cfg, afero.NewMemMapFs(), &out)
	require.NoError(t, err)

	log.Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "devops-app", entry["app"])
	assert.Equal(t, "dev", entry["env"])
	assert.NotEmpty(t, entry["time"])
	assert.Nil(t, entry["caller"])
}

func TestNew_DebugEnablesCallerAndDebugLevel(t *testing.T) {
	var out bytes.Buffer
	cfg := testConfig()
	cfg.App.Debug = true
	cfg.Logging.File = ""

	log, err := logging.New(cfg, afero.NewMemMapFs(), &out)
	require.NoError(t, err)

	log.Debug().Msg("debugging")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.NotEmpty(t, entry["caller"])
}

func TestNew_ExplicitLevelWinsOverDebug(t *testing.T) {
	var out bytes.Buffer
	cfg := testConfig()
	cfg.App.Debug = true
	cfg.Logging.Level = "warn"
	cfg.Logging.File = ""

	log, err := logging.New(cfg, afero.NewMemMapFs(), &out)
	require.NoError(t, err)

	log.Debug().Msg("debugging")
	log.Info().Msg("informing")
	log.Warn().Msg("warning")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "warning", entry["message"])
}

func TestNew_InvalidLevel(t *testing.T) {
	cfg := testConfig()
	cfg.Logging.Level = "chatty"

	_, err := logging.New(cfg, afero.NewMemMapFs(), &bytes.Buffer{})
	require.Error(t, err)
}
