// Package store provides SQLite persistence for DocsPort.
//
// The store holds the execution history log, the cached structural analyses,
// and the user-facing tables for comments and code snippets. It implements
// sandbox.History and analyzer.Cache so the execution and analysis cores can
// stay free of database concerns.
package store
