package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/Mediaquotes/docsport/analyzer"
	"github.com/Mediaquotes/docsport/config"
	"github.com/Mediaquotes/docsport/sandbox"
	"github.com/Mediaquotes/docsport/store"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  sandbox.Executor
	store     *store.Store
	analyzer  *analyzer.Analyzer
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.Executor, st *store.Store, an *analyzer.Analyzer) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		executor: executor,
		store:    st,
		analyzer: an,
	}

	logger.Info("configuration loaded",
		zap.String("mcp.transport", s.config.MCP.Transport),
		zap.Int("mcp.http_port", s.config.MCP.HTTPPort),
		zap.String("execution.interpreter", s.config.Execution.Interpreter),
		zap.Int("execution.default_timeout_sec", s.config.Execution.DefaultTimeoutSec),
		zap.String("project.root", s.config.Project.Root),
	)

	s.mcpServer = server.NewMCPServer("docsport", "A local code execution and documentation server")

	s.registerExecuteSnippetTool()
	s.registerExecutionHistoryTool()
	s.registerAnalyzeFileTool()

	return s, nil
}

// registerExecuteSnippetTool registers the execute_snippet tool
func (s *MCPServer) registerExecuteSnippetTool() {
	tool := mcp.Tool{
		Name:        "execute_snippet",
		Description: "Execute an untrusted Python snippet in an isolated sandbox",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Snippet source code",
				},
				"timeout": map[string]any{
					"type":        "number",
					"description": "Wall-clock timeout in seconds (optional)",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteSnippet)
}

// handleExecuteSnippet handles the execute_snippet tool
func (s *MCPServer) handleExecuteSnippet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.Info("snippet execution requested")

	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	timeout := request.GetInt("timeout", s.config.Execution.DefaultTimeoutSec)
	if !s.config.TimeoutInRange(timeout) {
		return nil, fmt.Errorf("timeout %d outside allowed range [%d, %d]",
			timeout, s.config.Execution.MinTimeoutSec, s.config.Execution.MaxTimeoutSec)
	}

	res := s.executor.Run(ctx, sandbox.Request{
		Code:    code,
		Kind:    sandbox.KindPython,
		Timeout: time.Duration(timeout) * time.Second,
	})

	s.logger.Info("snippet execution completed",
		zap.String("execution_id", res.ID),
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("timed_out", res.TimedOut))

	return jsonResult(res)
}

// registerExecutionHistoryTool registers the execution_history tool
func (s *MCPServer) registerExecutionHistoryTool() {
	tool := mcp.Tool{
		Name:        "execution_history",
		Description: "List recent snippet executions, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"limit": map[string]any{
					"type":        "number",
					"description": "Maximum number of records to return (optional)",
				},
			},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecutionHistory)
}

// handleExecutionHistory handles the execution_history tool
func (s *MCPServer) handleExecutionHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 0)

	records, err := s.store.ListExecutions(ctx, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("listing executions failed: %v", err)), nil
	}
	if records == nil {
		records = []store.ExecutionRecord{}
	}
	return jsonResult(records)
}

// registerAnalyzeFileTool registers the analyze_file tool
func (s *MCPServer) registerAnalyzeFileTool() {
	tool := mcp.Tool{
		Name:        "analyze_file",
		Description: "Extract the structural model (types, functions, methods) of a Go source file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the Go source file",
				},
				"force_refresh": map[string]any{
					"type":        "boolean",
					"description": "Bypass the analysis cache (optional)",
				},
			},
			Required: []string{"path"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleAnalyzeFile)
}

// handleAnalyzeFile handles the analyze_file tool
func (s *MCPServer) handleAnalyzeFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return nil, fmt.Errorf("path parameter is required: %w", err)
	}

	forceRefresh := request.GetBool("force_refresh", false)

	fa, err := s.analyzer.AnalyzeFile(ctx, path, forceRefresh)
	if err != nil {
		s.logger.Error("file analysis failed", zap.Error(err), zap.String("path", path))
		return errorResult(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	return jsonResult(fa)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
	}, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: msg,
			},
		},
		IsError: true,
	}
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.MCP.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
