package filter

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/dshills/semindex/pkg/types"
)

// AllowedExtensions is the set of file extensions eligible for indexing
var AllowedExtensions = map[string]bool{
	".py":   true,
	".ts":   true,
	".tsx":  true,
	".js":   true,
	".jsx":  true,
	".go":   true,
	".cpp":  true,
	".md":   true,
	".rs":   true,
	".java": true,
}

// RuleSet is an ordered, de-duplicated list of ignore patterns.
// It is immutable once built so every check in a pass sees the same rules.
type RuleSet struct {
	patterns []string
	matchers []matcher
}

// NewRuleSet merges pattern lists in order, keeping the first occurrence of each entry
func NewRuleSet(lists ...[]string) RuleSet {
	seen := make(map[string]bool)
	patterns := make([]string, 0)
	var matchers []matcher
	for _, list := range lists {
		for _, p := range list {
			if seen[p] {
				continue
			}
			seen[p] = true
			patterns = append(patterns, p)
			if m, ok := newMatcher(p); ok {
				matchers = append(matchers, m)
			}
		}
	}
	return RuleSet{patterns: patterns, matchers: matchers}
}

// ForProject builds the rule set for a project from the process-wide defaults
func ForProject(defaults []string, project *types.Project) RuleSet {
	return NewRuleSet(defaults, project.IgnorePatterns)
}

// Patterns returns a copy of the ordered patterns
func (r RuleSet) Patterns() []string {
	out := make([]string, len(r.patterns))
	copy(out, r.patterns)
	return out
}

// Ignored reports whether a slash-separated relative path matches any ignore pattern.
// A pattern matches the whole path (wildcards cross '/'), any path below it,
// or any single segment.
func (r RuleSet) Ignored(rel string) bool {
	rel = path.Clean(filepath.ToSlash(rel))
	parts := strings.Split(rel, "/")

	for _, m := range r.matchers {
		if m.matchPath(rel) || strings.HasPrefix(rel, m.pattern+"/") {
			return true
		}
		for _, part := range parts {
			if m.matchSegment(part) {
				return true
			}
		}
	}
	return false
}

// Eligible reports whether a relative path may be indexed.
// Directories only have to pass the ignore rules; files also need an allowed extension.
func (r RuleSet) Eligible(rel string, isDir bool) bool {
	if r.Ignored(rel) {
		return false
	}
	if isDir {
		return true
	}
	return AllowedExtensions[path.Ext(filepath.ToSlash(rel))]
}

// IsEligible checks an absolute or root-relative path against a project and rule set.
// Paths that resolve outside the project root are never eligible.
func IsEligible(p string, isDir bool, project *types.Project, rules RuleSet) bool {
	rel, ok := RelPath(project.RootPath, p)
	if !ok {
		return false
	}
	return rules.Eligible(rel, isDir)
}

// RelPath returns the slash-separated path of p relative to root
func RelPath(root, p string) (string, bool) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

func normalizePattern(p string) string {
	p = strings.TrimSpace(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return strings.TrimSuffix(p, "/")
}
