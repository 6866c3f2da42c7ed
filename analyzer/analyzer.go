package analyzer

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Element kinds
const (
	KindType     = "type"
	KindFunction = "function"
	KindMethod   = "method"
)

// Element represents one structural element of a source file.
type Element struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	LineStart    int      `json:"line_start"`
	LineEnd      int      `json:"line_end"`
	Content      string   `json:"content"`
	Parent       string   `json:"parent,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Calls        []string `json:"calls,omitempty"`
}

// Stats summarizes one file's structural model.
type Stats struct {
	Types     int `json:"types"`
	Functions int `json:"functions"`
	Methods   int `json:"methods"`
	Lines     int `json:"lines"`
}

// FileAnalysis is the structural model of a single file.
type FileAnalysis struct {
	FilePath   string    `json:"file_path"`
	Elements   []Element `json:"elements"`
	Stats      Stats     `json:"stats"`
	AnalyzedAt time.Time `json:"analyzed_at"`
	Cached     bool      `json:"cached,omitempty"`
}

// ProjectStats aggregates statistics across a project tree.
type ProjectStats struct {
	Files     int `json:"files"`
	Types     int `json:"types"`
	Functions int `json:"functions"`
	Methods   int `json:"methods"`
	Lines     int `json:"lines"`
}

// ProjectAnalysis is the structural model of a whole project tree.
type ProjectAnalysis struct {
	ProjectPath string         `json:"project_path"`
	Files       []FileAnalysis `json:"files"`
	Totals      ProjectStats   `json:"totals"`
	AnalyzedAt  time.Time      `json:"analyzed_at"`
}

// Cache persists per-file analyses between runs. AnalyzedAt returns the zero
// time when no analysis is stored for the file.
type Cache interface {
	SaveAnalysis(ctx context.Context, filePath string, elements []Element) error
	LoadAnalysis(ctx context.Context, filePath string) ([]Element, error)
	AnalyzedAt(ctx context.Context, filePath string) (time.Time, error)
}

// Analyzer extracts structural models from Go source files.
type Analyzer struct {
	logger *zap.Logger
	cache  Cache
}

// New creates an Analyzer. cache may be nil, in which case every call
// re-parses the file.
func New(logger *zap.Logger, cache Cache) *Analyzer {
	return &Analyzer{logger: logger, cache: cache}
}

// AnalyzeFile parses one Go file and returns its structural model. A cached
// analysis is served when it is newer than the file's modification time,
// unless forceRefresh is set. Cache failures are logged and treated as
// misses.
func (a *Analyzer) AnalyzeFile(ctx context.Context, filePath string, forceRefresh bool) (*FileAnalysis, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}

	if !forceRefresh && a.cache != nil {
		if cached := a.loadCached(ctx, filePath, info.ModTime()); cached != nil {
			return cached, nil
		}
	}

	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	elements, err := Parse(filePath, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	if a.cache != nil {
		if saveErr := a.cache.SaveAnalysis(ctx, filePath, elements); saveErr != nil {
			a.logger.Warn("failed to cache analysis",
				zap.String("file", filePath),
				zap.Error(saveErr))
		}
	}

	return &FileAnalysis{
		FilePath:   filePath,
		Elements:   elements,
		Stats:      calculateStats(elements),
		AnalyzedAt: time.Now(),
	}, nil
}

// AnalyzeProject walks root and analyzes every Go file, skipping hidden
// directories, vendor trees, and testdata. Per-file parse errors are
// recorded on the file entry rather than aborting the walk.
func (a *Analyzer) AnalyzeProject(ctx context.Context, root string) (*ProjectAnalysis, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	result := &ProjectAnalysis{
		ProjectPath: absRoot,
		AnalyzedAt:  time.Now(),
	}

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDir(d.Name()) && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".go") {
			return nil
		}

		analysis, analyzeErr := a.AnalyzeFile(ctx, path, false)
		if analyzeErr != nil {
			a.logger.Warn("skipping unparseable file",
				zap.String("file", path),
				zap.Error(analyzeErr))
			return nil
		}

		result.Files = append(result.Files, *analysis)
		result.Totals.Files++
		result.Totals.Types += analysis.Stats.Types
		result.Totals.Functions += analysis.Stats.Functions
		result.Totals.Methods += analysis.Stats.Methods
		result.Totals.Lines += analysis.Stats.Lines
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return result, nil
}

func (a *Analyzer) loadCached(ctx context.Context, filePath string, modTime time.Time) *FileAnalysis {
	analyzedAt, err := a.cache.AnalyzedAt(ctx, filePath)
	if err != nil {
		a.logger.Debug("analysis cache lookup failed", zap.String("file", filePath), zap.Error(err))
		return nil
	}
	if analyzedAt.IsZero() || !analyzedAt.After(modTime) {
		return nil
	}

	elements, err := a.cache.LoadAnalysis(ctx, filePath)
	if err != nil {
		a.logger.Debug("analysis cache load failed", zap.String("file", filePath), zap.Error(err))
		return nil
	}

	return &FileAnalysis{
		FilePath:   filePath,
		Elements:   elements,
		Stats:      calculateStats(elements),
		AnalyzedAt: analyzedAt,
		Cached:     true,
	}
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "vendor" || name == "testdata" || name == "node_modules"
}

// Parse extracts the structural elements of one Go source file. It is a pure
// function of the file contents.
func Parse(filename string, src []byte) ([]Element, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, 0)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(src), "\n")
	var elements []Element

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				elements = append(elements, typeElement(fset, ts, lines))
			}
		case *ast.FuncDecl:
			elements = append(elements, funcElement(fset, d, lines))
		}
	}

	return elements, nil
}

func typeElement(fset *token.FileSet, ts *ast.TypeSpec, lines []string) Element {
	start := fset.Position(ts.Pos()).Line
	end := fset.Position(ts.End()).Line

	return Element{
		Name:         ts.Name.Name,
		Kind:         KindType,
		LineStart:    start,
		LineEnd:      end,
		Content:      extractContent(lines, start, end),
		Dependencies: typeDependencies(ts.Type),
	}
}

func funcElement(fset *token.FileSet, fd *ast.FuncDecl, lines []string) Element {
	start := fset.Position(fd.Pos()).Line
	end := fset.Position(fd.End()).Line

	elem := Element{
		Name:      fd.Name.Name,
		Kind:      KindFunction,
		LineStart: start,
		LineEnd:   end,
		Content:   extractContent(lines, start, end),
		Calls:     collectCalls(fd),
	}

	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		elem.Kind = KindMethod
		elem.Parent = receiverTypeName(fd.Recv.List[0].Type)
	}

	return elem
}

// typeDependencies lists the named types a type declaration refers to:
// embedded struct fields, embedded interfaces, and the underlying type of an
// alias-like declaration.
func typeDependencies(expr ast.Expr) []string {
	var deps []string
	seen := map[string]bool{}

	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			deps = append(deps, name)
		}
	}

	switch t := expr.(type) {
	case *ast.StructType:
		for _, field := range t.Fields.List {
			if len(field.Names) == 0 { // embedded
				add(namedType(field.Type))
			}
		}
	case *ast.InterfaceType:
		for _, method := range t.Methods.List {
			if len(method.Names) == 0 { // embedded interface
				add(namedType(method.Type))
			}
		}
	case *ast.Ident:
		add(t.Name)
	case *ast.SelectorExpr:
		add(namedType(t))
	}

	return deps
}

// namedType resolves the identifier behind pointers and qualified names.
func namedType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return namedType(t.X)
	case *ast.SelectorExpr:
		if pkg, ok := t.X.(*ast.Ident); ok {
			return pkg.Name + "." + t.Sel.Name
		}
		return t.Sel.Name
	case *ast.IndexExpr:
		return namedType(t.X)
	case *ast.IndexListExpr:
		return namedType(t.X)
	}
	return ""
}

func receiverTypeName(expr ast.Expr) string {
	return namedType(expr)
}

// collectCalls gathers the callee names inside a function body.
func collectCalls(fd *ast.FuncDecl) []string {
	var calls []string
	seen := map[string]bool{}

	ast.Inspect(fd, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		name := callName(call.Fun)
		if name != "" && !seen[name] {
			seen[name] = true
			calls = append(calls, name)
		}
		return true
	})

	return calls
}

func callName(expr ast.Expr) string {
	switch f := expr.(type) {
	case *ast.Ident:
		return f.Name
	case *ast.SelectorExpr:
		if x, ok := f.X.(*ast.Ident); ok {
			return x.Name + "." + f.Sel.Name
		}
		return f.Sel.Name
	}
	return ""
}

func extractContent(lines []string, start, end int) string {
	if start < 1 || start > len(lines) {
		return ""
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}

func calculateStats(elements []Element) Stats {
	var stats Stats
	for _, elem := range elements {
		switch elem.Kind {
		case KindType:
			stats.Types++
		case KindFunction:
			stats.Functions++
		case KindMethod:
			stats.Methods++
		}
		stats.Lines += elem.LineEnd - elem.LineStart + 1
	}
	return stats
}
