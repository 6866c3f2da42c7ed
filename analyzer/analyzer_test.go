package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const fixtureSource = `package fixture

import "fmt"

// Greeter greets.
type Greeter struct {
	Prefix string
}

type Farewell Greeter

func (g *Greeter) Greet(name string) string {
	return fmt.Sprintf("%s %s", g.Prefix, name)
}

func Shout(msg string) {
	fmt.Println(msg)
}
`

// MockCache implements Cache for testing
type MockCache struct {
	saved      map[string][]Element
	analyzedAt time.Time
	loadCount  int
	saveCount  int
}

func (m *MockCache) SaveAnalysis(_ context.Context, filePath string, elements []Element) error {
	if m.saved == nil {
		m.saved = make(map[string][]Element)
	}
	m.saved[filePath] = elements
	m.saveCount++
	return nil
}

func (m *MockCache) LoadAnalysis(_ context.Context, filePath string) ([]Element, error) {
	m.loadCount++
	return m.saved[filePath], nil
}

func (m *MockCache) AnalyzedAt(_ context.Context, _ string) (time.Time, error) {
	return m.analyzedAt, nil
}

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.go")
	require.NoError(t, os.WriteFile(path, []byte(fixtureSource), 0o600))
	return path
}

func TestParse(t *testing.T) {
	elements, err := Parse("fixture.go", []byte(fixtureSource))
	require.NoError(t, err)
	require.Len(t, elements, 4)

	byName := map[string]Element{}
	for _, elem := range elements {
		byName[elem.Name] = elem
	}

	t.Run("TypeElement", func(t *testing.T) {
		greeter := byName["Greeter"]
		assert.Equal(t, KindType, greeter.Kind)
		assert.Contains(t, greeter.Content, "Prefix string")
		assert.Positive(t, greeter.LineStart)
		assert.GreaterOrEqual(t, greeter.LineEnd, greeter.LineStart)
	})

	t.Run("TypeDependency", func(t *testing.T) {
		farewell := byName["Farewell"]
		assert.Equal(t, KindType, farewell.Kind)
		assert.Equal(t, []string{"Greeter"}, farewell.Dependencies)
	})

	t.Run("MethodElement", func(t *testing.T) {
		greet := byName["Greet"]
		assert.Equal(t, KindMethod, greet.Kind)
		assert.Equal(t, "Greeter", greet.Parent)
		assert.Contains(t, greet.Calls, "fmt.Sprintf")
	})

	t.Run("FunctionElement", func(t *testing.T) {
		shout := byName["Shout"]
		assert.Equal(t, KindFunction, shout.Kind)
		assert.Empty(t, shout.Parent)
		assert.Contains(t, shout.Calls, "fmt.Println")
	})
}

func TestParseInvalidSource(t *testing.T) {
	_, err := Parse("broken.go", []byte("package broken\nfunc {"))
	assert.Error(t, err)
}

func TestAnalyzeFile(t *testing.T) {
	path := writeFixture(t)
	a := New(zaptest.NewLogger(t), nil)

	analysis, err := a.AnalyzeFile(context.Background(), path, false)
	require.NoError(t, err)

	assert.Equal(t, path, analysis.FilePath)
	assert.Equal(t, 2, analysis.Stats.Types)
	assert.Equal(t, 1, analysis.Stats.Functions)
	assert.Equal(t, 1, analysis.Stats.Methods)
	assert.Positive(t, analysis.Stats.Lines)
	assert.False(t, analysis.Cached)
}

func TestAnalyzeFileNotFound(t *testing.T) {
	a := New(zaptest.NewLogger(t), nil)

	_, err := a.AnalyzeFile(context.Background(), "/nonexistent/missing.go", false)
	assert.Error(t, err)
}

func TestAnalyzeFileCache(t *testing.T) {
	path := writeFixture(t)

	t.Run("FreshCacheIsServed", func(t *testing.T) {
		cache := &MockCache{analyzedAt: time.Now().Add(time.Hour)}
		a := New(zaptest.NewLogger(t), cache)

		// Seed the cache with a first parse, then expect the second call to
		// come from the cache.
		first, err := a.AnalyzeFile(context.Background(), path, true)
		require.NoError(t, err)
		require.False(t, first.Cached)

		second, err := a.AnalyzeFile(context.Background(), path, false)
		require.NoError(t, err)
		assert.True(t, second.Cached)
		assert.Equal(t, first.Stats, second.Stats)
	})

	t.Run("StaleCacheIsIgnored", func(t *testing.T) {
		cache := &MockCache{analyzedAt: time.Now().Add(-time.Hour)}
		a := New(zaptest.NewLogger(t), cache)

		analysis, err := a.AnalyzeFile(context.Background(), path, false)
		require.NoError(t, err)
		assert.False(t, analysis.Cached)
	})

	t.Run("ForceRefreshBypassesCache", func(t *testing.T) {
		cache := &MockCache{analyzedAt: time.Now().Add(time.Hour)}
		a := New(zaptest.NewLogger(t), cache)

		analysis, err := a.AnalyzeFile(context.Background(), path, true)
		require.NoError(t, err)
		assert.False(t, analysis.Cached)
		assert.Equal(t, 0, cache.loadCount)
	})
}

func TestAnalyzeProject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte(fixtureSource), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden", "b.go"), []byte(fixtureSource), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("not go"), 0o600))

	a := New(zaptest.NewLogger(t), nil)
	analysis, err := a.AnalyzeProject(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 1, analysis.Totals.Files)
	assert.Equal(t, 2, analysis.Totals.Types)
	require.Len(t, analysis.Files, 1)
	assert.Equal(t, filepath.Join(analysis.ProjectPath, "a.go"), analysis.Files[0].FilePath)
}
