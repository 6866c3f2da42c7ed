// Package main is the entry point for the DocsPort server.
//
// DocsPort is a local development tool that executes untrusted Python
// snippets in isolated interpreter subprocesses, analyzes the structure of
// Go source files, renders Mermaid diagrams and keeps comments, snippets
// and execution history in a local SQLite database. It serves a
// localhost-only HTTP API and, optionally, a Model Context Protocol (MCP)
// interface over stdio or HTTP.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
