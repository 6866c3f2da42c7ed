package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Mediaquotes/docsport/analyzer"
	"github.com/Mediaquotes/docsport/config"
	"github.com/Mediaquotes/docsport/httpserver"
	"github.com/Mediaquotes/docsport/logger"
	"github.com/Mediaquotes/docsport/mcpserver"
	"github.com/Mediaquotes/docsport/sandbox"
	"github.com/Mediaquotes/docsport/store"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// SQLite store (execution history, analysis cache, comments,
			// snippets, settings)
			newStore,

			// Sandbox executor
			newExecutor,

			// Code analyzer backed by the store's analysis cache
			newAnalyzer,

			// HTTP API server
			httpserver.New,

			// MCP Server
			mcpserver.New,
		),

		fx.Invoke(registerHTTPServer),
		fx.Invoke(registerMCPServer),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}

func newStore(lc fx.Lifecycle, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return st.Close()
		},
	})
	return st, nil
}

func newExecutor(cfg *config.Config, log *zap.Logger, st *store.Store) sandbox.Executor {
	return sandbox.NewRunner(log, cfg.ScratchDir(),
		sandbox.WithInterpreter(cfg.Execution.Interpreter),
		sandbox.WithHistory(st),
	)
}

func newAnalyzer(log *zap.Logger, st *store.Store) *analyzer.Analyzer {
	return analyzer.New(log, st)
}

func registerHTTPServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, srv *httpserver.Server) error {
	port, err := cfg.ResolvePort()
	if err != nil {
		return err
	}

	// Record the instance so repeated launches can find a running server.
	// Losing the file only degrades discovery, so failures are logged and
	// ignored.
	if err := config.WriteInstanceFile(config.InstanceFileName, config.NewInstance(cfg.Server.Host, port)); err != nil {
		log.Warn("failed to write instance file", zap.Error(err))
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(port); err != nil {
					log.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
	return nil
}

func registerMCPServer(cfg *config.Config, srv *mcpserver.MCPServer) error {
	if !cfg.MCP.Enabled {
		return nil
	}

	switch cfg.MCP.Transport {
	case "stdio":
		go func() {
			if err := srv.ServeStdio(); err != nil {
				panic(err)
			}
		}()
	case "http":
		go func() {
			if err := srv.ServeHTTP(); err != nil {
				panic(err)
			}
		}()
	}
	return nil
}
