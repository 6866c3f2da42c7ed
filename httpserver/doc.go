// Package httpserver exposes the DocsPort functionality over a local HTTP
// API.
//
// The server binds to localhost only and serves JSON endpoints for snippet
// execution, execution history, code analysis, Mermaid visualization,
// comments, snippets and project file access. User-facing messages are
// localized from the Accept-Language request header.
package httpserver
