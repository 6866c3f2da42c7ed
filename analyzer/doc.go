// Package analyzer builds a structural model of Go source files.
//
// The analyzer parses files with go/parser and extracts types, functions,
// and methods together with their line spans, source content, embedded-type
// dependencies, and outgoing calls. Results are cached through a Cache
// collaborator keyed by file path and invalidated by file modification time.
package analyzer
