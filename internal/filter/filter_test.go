package filter

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semindex/internal/config"
	"github.com/dshills/semindex/pkg/types"
)

func testProject(t *testing.T, ignore ...string) *types.Project {
	t.Helper()
	return &types.Project{ID: "p1", Name: "Project", RootPath: t.TempDir(), IgnorePatterns: ignore}
}

func TestNewRuleSet_OrderAndDedup(t *testing.T) {
	rules := NewRuleSet([]string{".git", "node_modules", "dist"}, []string{"build/", "dist", ".git", "*.gen.go"})

	assert.Equal(t, []string{".git", "node_modules", "dist", "build/", "*.gen.go"}, rules.Patterns())
}

func TestRuleSet_PatternsIsCopy(t *testing.T) {
	rules := NewRuleSet([]string{"dist"})
	patterns := rules.Patterns()
	patterns[0] = "changed"

	assert.Equal(t, []string{"dist"}, rules.Patterns())
}

func TestIsEligible_DefaultIgnores(t *testing.T) {
	project := testProject(t)
	rules := ForProject(config.DefaultIgnore, project)

	ignored := []string{
		"node_modules/lib.js",
		".semindex/chroma.db",
		"frontend/node_modules/react.js",
		"a/b/c/node_modules/d/e.ts",
		"venv/bin/activate",
		"src/__pycache__/main.py",
		"dist/bundle.js",
		".git/hooks/pre-commit.py",
	}
	for _, rel := range ignored {
		t.Run(rel, func(t *testing.T) {
			path := filepath.Join(project.RootPath, filepath.FromSlash(rel))
			assert.False(t, IsEligible(path, false, project, rules))
		})
	}
}

func TestIsEligible_ExtensionAllowlist(t *testing.T) {
	project := testProject(t)
	rules := ForProject(config.DefaultIgnore, project)

	tests := []struct {
		rel  string
		want bool
	}{
		{"src/main.py", true},
		{"web/app.tsx", true},
		{"cmd/tool/main.go", true},
		{"README.md", true},
		{"lib/core.rs", true},
		{"docs/notes.txt", false},
		{"assets/logo.png", false},
		{"Makefile", false},
		{"src/main.pyc", false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEligible(tt.rel, false, project, rules))
		})
	}
}

func TestIsEligible_DirectoriesSkipExtensionCheck(t *testing.T) {
	project := testProject(t)
	rules := ForProject(config.DefaultIgnore, project)

	assert.True(t, IsEligible("src", true, project, rules))
	assert.True(t, IsEligible("src/pkg.v2", true, project, rules))
	assert.False(t, IsEligible("src/node_modules", true, project, rules))
}

func TestIsEligible_OutsideRoot(t *testing.T) {
	project := testProject(t)
	rules := ForProject(config.DefaultIgnore, project)

	assert.False(t, IsEligible(filepath.Join(filepath.Dir(project.RootPath), "other.py"), false, project, rules))
	assert.False(t, IsEligible(project.RootPath, true, project, rules))
}

func TestRuleSet_ProjectPatterns(t *testing.T) {
	project := testProject(t, "build/", "./generated", "*_pb2.py", "docs/internal", "  ", "[")
	rules := ForProject(config.DefaultIgnore, project)

	tests := []struct {
		rel  string
		want bool
	}{
		{"build/out.js", false},
		{"pkg/build/out.js", false},
		{"generated/api.go", false},
		{"proto/service_pb2.py", false},
		{"docs/internal/design.md", false},
		{"docs/public/guide.md", true},
		{"builder/main.go", true},
		{"src/app.py", true},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Eligible(tt.rel, false))
		})
	}
}

func TestRuleSet_DotPatternsMatchLiterally(t *testing.T) {
	rules := NewRuleSet([]string{".git"})

	assert.True(t, rules.Ignored(".git/config"))
	assert.False(t, rules.Ignored("git/config.go"))
}

func TestRuleSet_PureAcrossProjects(t *testing.T) {
	first := testProject(t, "vendor")
	second := testProject(t)
	firstRules := ForProject(config.DefaultIgnore, first)
	secondRules := ForProject(config.DefaultIgnore, second)

	for i := 0; i < 3; i++ {
		assert.False(t, IsEligible("vendor/lib.go", false, first, firstRules))
		assert.True(t, IsEligible("vendor/lib.go", false, second, secondRules))
	}
}

func TestRelPath(t *testing.T) {
	root := t.TempDir()

	rel, ok := RelPath(root, filepath.Join(root, "a", "b.go"))
	assert.True(t, ok)
	assert.Equal(t, "a/b.go", rel)

	rel, ok = RelPath(root, "c/d.py")
	assert.True(t, ok)
	assert.Equal(t, "c/d.py", rel)

	_, ok = RelPath(root, filepath.Join(root, "..", "x.go"))
	assert.False(t, ok)
}

func TestRuleSet_WildcardsCrossDirectories(t *testing.T) {
	rules := NewRuleSet([]string{"**/*.test.js", "src/gen/*", "docs/*.md", "lib/?/x.go"})

	tests := []struct {
		rel     string
		ignored bool
	}{
		{"web/src/app.test.js", true},
		{"a/b/c/d.test.js", true},
		{"web/src/app.js", false},
		{"src/gen/api.py", true},
		{"src/gen/a/b.py", true},
		{"src/generated/a.py", false},
		{"docs/guide.md", true},
		{"docs/internal/deep/notes.md", true},
		{"lib/a/x.go", true},
		{"lib/ab/x.go", false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.ignored, rules.Ignored(tt.rel))
		})
	}

	assert.False(t, rules.Eligible("web/src/app.test.js", false))
}

func TestGlobToRegexp(t *testing.T) {
	tests := []struct {
		glob  string
		name  string
		match bool
	}{
		{"*.py", "a/b.py", true},
		{"a?c", "a/c", true},
		{"[abc].go", "b.go", true},
		{"[!abc].go", "b.go", false},
		{"[!abc].go", "d.go", true},
		{"[]x].go", "].go", true},
		{"a+b(c).py", "a+b(c).py", true},
		{"a+b(c).py", "aab(c).py", false},
		{"[unclosed", "[unclosed", true},
		{"ünï*.rs", "ünïcode.rs", true},
	}
	for _, tt := range tests {
		t.Run(tt.glob+"~"+tt.name, func(t *testing.T) {
			m, ok := newMatcher(tt.glob)
			require.True(t, ok)
			assert.Equal(t, tt.match, m.matchPath(tt.name))
		})
	}

	_, ok := newMatcher("  ./ ")
	assert.False(t, ok)
}
