package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Mediaquotes/docsport/analyzer"
	"github.com/Mediaquotes/docsport/config"
	"github.com/Mediaquotes/docsport/sandbox"
	"github.com/Mediaquotes/docsport/store"
)

// MockExecutor implements sandbox.Executor for testing
type MockExecutor struct {
	result sandbox.Result
}

func (m *MockExecutor) Run(_ context.Context, _ sandbox.Request) sandbox.Result {
	return m.result
}

func testConfig() *config.Config {
	return &config.Config{
		Execution: config.ExecutionConfig{
			Interpreter:       "python3",
			DefaultTimeoutSec: 30,
			MinTimeoutSec:     1,
			MaxTimeoutSec:     60,
		},
		Project: config.ProjectConfig{Root: "."},
		MCP:     config.MCPConfig{Enabled: true, Transport: "stdio", HTTPPort: 8081},
		Logging: config.LoggingConfig{Mode: "production", Level: "info"},
	}
}

func TestNewMCPServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testConfig()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	executor := &MockExecutor{result: sandbox.Result{Stdout: "output", ExitCode: 0}}
	an := analyzer.New(logger, st)

	server, err := New(cfg, logger, executor, st, an)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Equal(t, cfg, server.config)
	assert.Equal(t, logger, server.logger)
	assert.Equal(t, executor, server.executor)
	assert.NotNil(t, server.mcpServer)
	assert.NotNil(t, server.GetMCPServer())
}

func TestJSONResult(t *testing.T) {
	res, err := jsonResult(map[string]int{"exit_code": 0})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	assert.False(t, res.IsError)
}

func TestErrorResult(t *testing.T) {
	res := errorResult("analysis failed: no such file")
	require.Len(t, res.Content, 1)
	assert.True(t, res.IsError)
}
