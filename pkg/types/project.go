package types

import (
	"path/filepath"
	"strings"
	"time"
)

// Project represents a registered source workspace
type Project struct {
	ID             string
	Name           string
	RootPath       string   // Absolute
	IgnorePatterns []string // Glob patterns, in priority order
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks that the project can be indexed
func (p *Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyProjectID
	}
	if !filepath.IsAbs(p.RootPath) {
		return ErrRootPathNotAbsolute
	}
	return nil
}

// DisplayName returns the project name, falling back to the ID
func (p *Project) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
