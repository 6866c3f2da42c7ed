package sandbox

import (
	"regexp"
	"strings"
)

// forbiddenModules lists module names that must not be imported by a
// snippet. Matching is word-boundary aware: "import os" and "from os import
// path" are rejected, "import osprey" is not. The list covers process and OS
// control, subprocess spawning, filesystem manipulation, networking,
// serialization formats that reconstruct arbitrary objects, dynamic import
// machinery, globbing, FFI, multiprocessing, signals, pseudo-terminals, and
// interactive-console helpers.
var forbiddenModules = map[string]bool{
	"os":              true,
	"sys":             true,
	"subprocess":      true,
	"multiprocessing": true,
	"shutil":          true,
	"pathlib":         true,
	"tempfile":        true,
	"socket":          true,
	"socketserver":    true,
	"http":            true,
	"urllib":          true,
	"requests":        true,
	"pickle":          true,
	"cpickle":         true,
	"marshal":         true,
	"importlib":       true,
	"glob":            true,
	"fnmatch":         true,
	"ctypes":          true,
	"signal":          true,
	"pty":             true,
	"code":            true,
	"codeop":          true,
}

// forbiddenCalls lists call-like tokens matched as literal substrings of the
// normalized snippet: dynamic code execution and compilation, dynamic
// import, raw file access, interactive input, process exit, live-namespace
// introspection, generic attribute primitives, and the debugger trigger.
var forbiddenCalls = []string{
	"exec(",
	"eval(",
	"compile(",
	"__import__(",
	"open(",
	"input(",
	"raw_input(",
	"exit(",
	"quit(",
	"globals(",
	"locals(",
	"vars(",
	"getattr(",
	"setattr(",
	"delattr(",
	"hasattr(",
	"breakpoint(",
}

// forbiddenAttributes lists dunder attributes that enable sandbox escape by
// walking the live object graph.
var forbiddenAttributes = []string{
	"__builtins__",
	"__subclasses__",
	"__bases__",
	"__class__",
	"__mro__",
	"__globals__",
	"__code__",
}

var (
	horizontalWS = regexp.MustCompile(`[ \t]+`)

	// importTarget captures the module path of an "import X" or
	// "from X import" statement. The leading group stops identifiers that
	// merely end in a keyword ("reimport x") from matching.
	importTarget = regexp.MustCompile(`(^|[^\w.])(?:import|from)\s+([\w.]+)`)
)

// Guard is the static pre-execution filter. It holds no state; Evaluate is a
// pure function of the snippet text.
type Guard struct{}

// NewGuard creates a Guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Evaluate reports whether the snippet is allowed to run. The Guard fails
// closed: any match against the denylists rejects the whole snippet, and the
// verdict carries no detail about which pattern matched.
//
// This is a risk reducer, not a security boundary. Real containment comes
// from the Runner's process isolation and timeout.
func (*Guard) Evaluate(snippet string) bool {
	normalized := normalize(snippet)

	if containsForbiddenImport(normalized) {
		return false
	}
	if containsForbiddenCall(normalized) {
		return false
	}
	if containsForbiddenAttribute(normalized) {
		return false
	}
	return true
}

// normalize lower-cases the snippet and collapses runs of horizontal
// whitespace so spacing tricks cannot dodge the matchers. Newlines and other
// structural characters are preserved.
func normalize(snippet string) string {
	return horizontalWS.ReplaceAllString(strings.ToLower(snippet), " ")
}

func containsForbiddenImport(normalized string) bool {
	for _, m := range importTarget.FindAllStringSubmatch(normalized, -1) {
		// Only the root of a dotted path matters: "import os.path" is still os.
		module, _, _ := strings.Cut(m[2], ".")
		if forbiddenModules[module] {
			return true
		}
	}
	return false
}

func containsForbiddenCall(normalized string) bool {
	for _, token := range forbiddenCalls {
		if strings.Contains(normalized, token) {
			return true
		}
	}
	return false
}

func containsForbiddenAttribute(normalized string) bool {
	for _, attr := range forbiddenAttributes {
		if strings.Contains(normalized, attr) {
			return true
		}
	}
	return false
}
