// Package diagram renders structural models as Mermaid diagrams and as a
// node/link graph for the frontend.
//
// Flowcharts group methods under their parent type; class diagrams list
// method sets and draw edges for embedded-type dependencies. Node
// identifiers follow the kind_name_line convention so the frontend can
// address elements stably across re-analyses.
package diagram
