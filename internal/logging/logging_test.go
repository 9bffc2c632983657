package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "default config", cfg: Config{Level: "info"}},
		{name: "debug level", cfg: Config{Level: "debug"}},
		{name: "trace collapses to debug", cfg: Config{Level: "trace"}},
		{name: "stdout explicit", cfg: Config{Level: "info", Out: "stdout"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := Configure(tt.cfg)
			require.NotNil(t, logger)
		})
	}
}

func TestConfigureFileOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexa.log")

	logger := Configure(Config{Level: "info", Out: path})
	require.NotNil(t, logger)
	logger.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestConfigureUnwritableFileFallsBackToStdout(t *testing.T) {
	logger := Configure(Config{Level: "info", Out: "/nonexistent-dir/lexa.log"})
	require.NotNil(t, logger)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
	}{
		{"debug"}, {"DEBUG"}, {"trace"}, {"info"}, {"INFO"}, {""},
		{"warn"}, {"WARN"}, {"warning"}, {"error"}, {"ERROR"}, {"invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level := parseLevel(tt.input)
			assert.NotNil(t, level)
		})
	}
}
