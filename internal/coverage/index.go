package coverage

import (
	"fmt"
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bkyoung/covgate/internal/domain"
)

// Dialect identifies the XML schema of a coverage report.
type Dialect string

const (
	// DialectJacoco is the hierarchical group/package/sourcefile schema
	// produced by aggregated multi-module Jacoco builds.
	DialectJacoco Dialect = "jacoco"
	// DialectCobertura is the flat packages/package/classes/class schema.
	DialectCobertura Dialect = "cobertura"
)

// ParseDialect validates a dialect name from configuration or a flag.
func ParseDialect(name string) (Dialect, error) {
	switch Dialect(name) {
	case DialectJacoco, DialectCobertura:
		return Dialect(name), nil
	default:
		return "", fmt.Errorf("unknown coverage report dialect %q", name)
	}
}

// DisplayName returns the dialect name cased for human-facing output.
func (d Dialect) DisplayName() string {
	return cases.Title(language.English).String(string(d))
}

// Index answers per-file coverage lookups over a parsed report.
//
// Lookup returns (nil, false) when the path cannot be attributed to any
// report coordinate (wrong root, non-source file): such files must not be
// penalized. It returns a non-nil map and true when the path segments into
// a coordinate; the map is empty when the report has no recorded lines for
// that coordinate, which downstream counts as entirely uncovered.
type Index interface {
	Lookup(filePath string) (domain.CoverageMap, bool)
}

// Config carries the path-segmentation knobs for the dialect adapters.
// It is passed at construction, never read from globals.
type Config struct {
	// IgnoredPrefixes are path prefixes whose files are skipped entirely
	// (Cobertura dialect).
	IgnoredPrefixes []string
	// PackageRoots are the leading package segments recognized inside a
	// module source tree (Jacoco dialect).
	PackageRoots []string
}

// DefaultConfig returns the segmentation defaults.
func DefaultConfig() Config {
	return Config{
		IgnoredPrefixes: []string{".venv/", "target/"},
		PackageRoots:    []string{"com", "ca"},
	}
}

// NewIndex parses the report on r with the adapter for the given dialect.
func NewIndex(r io.Reader, dialect Dialect, cfg Config) (Index, error) {
	switch dialect {
	case DialectJacoco:
		return ParseJacoco(r, cfg)
	case DialectCobertura:
		return ParseCobertura(r, cfg)
	default:
		return nil, fmt.Errorf("unknown coverage report dialect %q", dialect)
	}
}
