package diagram

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Mediaquotes/docsport/analyzer"
)

// Node is one vertex of the visualization graph.
type Node struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Line       int    `json:"line"`
	Parent     string `json:"parent,omitempty"`
	Complexity int    `json:"complexity"`
}

// Link is one edge of the visualization graph.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Graph is the node/link model consumed by the frontend renderer.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// NodeID builds the stable identifier for an element.
func NodeID(elem analyzer.Element) string {
	return fmt.Sprintf("%s_%s_%d", elem.Kind, elem.Name, elem.LineStart)
}

// BuildGraph converts a file analysis into nodes and links. Containment
// links connect types to their methods; dependency links connect elements to
// the named types they depend on, when those types live in the same file.
func BuildGraph(fa *analyzer.FileAnalysis) *Graph {
	graph := &Graph{}

	typeIDs := map[string]string{}
	for _, elem := range fa.Elements {
		if elem.Kind == analyzer.KindType {
			typeIDs[elem.Name] = NodeID(elem)
		}
	}

	for _, elem := range fa.Elements {
		graph.Nodes = append(graph.Nodes, Node{
			ID:         NodeID(elem),
			Name:       elem.Name,
			Kind:       elem.Kind,
			Line:       elem.LineStart,
			Parent:     elem.Parent,
			Complexity: Complexity(elem.Content),
		})

		if elem.Parent != "" {
			if parentID, ok := typeIDs[elem.Parent]; ok {
				graph.Links = append(graph.Links, Link{
					Source: parentID,
					Target: NodeID(elem),
					Type:   "contains",
				})
			}
		}

		for _, dep := range elem.Dependencies {
			if depID, ok := typeIDs[dep]; ok && depID != NodeID(elem) {
				graph.Links = append(graph.Links, Link{
					Source: NodeID(elem),
					Target: depID,
					Type:   "depends_on",
				})
			}
		}
	}

	return graph
}

// FileFlowchart renders a Mermaid flowchart of one file: a subgraph per type
// containing its methods, with free functions at the top level.
func FileFlowchart(fa *analyzer.FileAnalysis) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	title := sanitize(filepath.Base(fa.FilePath))
	fmt.Fprintf(&b, "    %s[\"%s\"]\n", title, filepath.Base(fa.FilePath))

	methodsByType := map[string][]analyzer.Element{}
	for _, elem := range fa.Elements {
		if elem.Kind == analyzer.KindMethod && elem.Parent != "" {
			methodsByType[elem.Parent] = append(methodsByType[elem.Parent], elem)
		}
	}

	for _, elem := range fa.Elements {
		switch elem.Kind {
		case analyzer.KindType:
			sub := sanitize(NodeID(elem))
			fmt.Fprintf(&b, "    subgraph %s[\"%s\"]\n", sub, elem.Name)
			for _, method := range methodsByType[elem.Name] {
				fmt.Fprintf(&b, "        %s[\"%s()\"]\n", sanitize(NodeID(method)), method.Name)
			}
			b.WriteString("    end\n")
			fmt.Fprintf(&b, "    %s --> %s\n", title, sub)
		case analyzer.KindFunction:
			id := sanitize(NodeID(elem))
			fmt.Fprintf(&b, "    %s([\"%s()\"])\n", id, elem.Name)
			fmt.Fprintf(&b, "    %s --> %s\n", title, id)
		}
	}

	return b.String()
}

// ProjectFlowchart renders a Mermaid flowchart of a project: one subgraph
// per file, linking each file to its top-level elements.
func ProjectFlowchart(pa *analyzer.ProjectAnalysis) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	for i := range pa.Files {
		fa := &pa.Files[i]
		fileID := fmt.Sprintf("file%d", i)
		fmt.Fprintf(&b, "    subgraph %s[\"%s\"]\n", fileID, filepath.Base(fa.FilePath))
		for _, elem := range fa.Elements {
			if elem.Kind == analyzer.KindMethod {
				continue
			}
			label := elem.Name
			if elem.Kind == analyzer.KindFunction {
				label += "()"
			}
			fmt.Fprintf(&b, "        %s[\"%s\"]\n", sanitize(fileID+"_"+NodeID(elem)), label)
		}
		b.WriteString("    end\n")
	}

	return b.String()
}

// ClassDiagram renders a Mermaid class diagram from type and method
// elements. Embedded-type dependencies are drawn as inheritance-style edges,
// which is the closest Mermaid construct to Go embedding.
func ClassDiagram(elements []analyzer.Element) string {
	var b strings.Builder
	b.WriteString("classDiagram\n")

	types := map[string]bool{}
	for _, elem := range elements {
		if elem.Kind == analyzer.KindType {
			types[elem.Name] = true
		}
	}

	for _, elem := range elements {
		switch elem.Kind {
		case analyzer.KindType:
			fmt.Fprintf(&b, "    class %s {\n", sanitize(elem.Name))
			for _, method := range elements {
				if method.Kind == analyzer.KindMethod && method.Parent == elem.Name {
					fmt.Fprintf(&b, "        +%s()\n", method.Name)
				}
			}
			b.WriteString("    }\n")
		}
	}

	for _, elem := range elements {
		if elem.Kind != analyzer.KindType {
			continue
		}
		for _, dep := range elem.Dependencies {
			if types[dep] && dep != elem.Name {
				fmt.Fprintf(&b, "    %s <|-- %s\n", sanitize(dep), sanitize(elem.Name))
			}
		}
	}

	return b.String()
}

var branchKeyword = regexp.MustCompile(`\b(if|for|switch|case|select|go|defer)\b|&&|\|\|`)

// Complexity is a rough cyclomatic estimate: one plus the number of branch
// points in the element's source.
func Complexity(content string) int {
	return 1 + len(branchKeyword.FindAllString(content, -1))
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitize makes an identifier safe for Mermaid node syntax.
func sanitize(id string) string {
	return unsafeChars.ReplaceAllString(id, "_")
}
