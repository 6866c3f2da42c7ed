package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mediaquotes/docsport/analyzer"
	"github.com/Mediaquotes/docsport/config"
	"github.com/Mediaquotes/docsport/logger"
	"github.com/Mediaquotes/docsport/sandbox"
	"github.com/Mediaquotes/docsport/store"
)

// TestIntegrationConfigLoggerRunner tests the integration between config, logger, and sandbox packages
func TestIntegrationConfigLoggerRunner(t *testing.T) {
	t.Run("ConfigAndLoggerIntegration", func(t *testing.T) {
		cfg := &config.Config{
			Server: config.ServerConfig{
				Host:      "127.0.0.1",
				PortStart: 8500,
				PortEnd:   9500,
			},
			Execution: config.ExecutionConfig{
				Interpreter:       "sh",
				DefaultTimeoutSec: 5,
				MinTimeoutSec:     1,
				MaxTimeoutSec:     10,
			},
			Storage: config.StorageConfig{DBPath: ":memory:"},
			Logging: config.LoggingConfig{
				Mode:  "development",
				Level: "debug",
			},
		}

		testLogger, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
		require.NoError(t, err)
		require.NotNil(t, testLogger)

		testLogger.Info("Integration test started")
		_ = testLogger.Sync()
	})

	t.Run("RunnerStoreIntegration", func(t *testing.T) {
		testLogger, err := logger.New("development", "info")
		require.NoError(t, err)

		st, err := store.Open(":memory:")
		require.NoError(t, err)
		defer st.Close()

		runner := sandbox.NewRunner(testLogger, filepath.Join(t.TempDir(), "scratch"),
			sandbox.WithInterpreter("sh"),
			sandbox.WithHistory(st),
		)

		res := runner.Run(context.Background(), sandbox.Request{
			Code:    "echo integration",
			Kind:    sandbox.KindPython,
			Timeout: 5 * time.Second,
		})
		assert.Equal(t, "integration\n", res.Stdout)
		assert.True(t, res.Success())

		records, err := st.ListExecutions(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, res.ID, records[0].ExecutionID)
	})

	t.Run("AnalyzerStoreIntegration", func(t *testing.T) {
		testLogger, err := logger.New("development", "info")
		require.NoError(t, err)

		st, err := store.Open(":memory:")
		require.NoError(t, err)
		defer st.Close()

		an := analyzer.New(testLogger, st)

		dir := t.TempDir()
		path := filepath.Join(dir, "thing.go")
		src := "package thing\n\ntype Thing struct{}\n\nfunc (t Thing) Do() {}\n"
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

		fa, err := an.AnalyzeFile(context.Background(), path, false)
		require.NoError(t, err)
		assert.Equal(t, 1, fa.Stats.Types)
		assert.Equal(t, 1, fa.Stats.Methods)
		assert.False(t, fa.Cached)

		// Second analysis is served from the store-backed cache.
		fa, err = an.AnalyzeFile(context.Background(), path, false)
		require.NoError(t, err)
		assert.True(t, fa.Cached)
	})
}
