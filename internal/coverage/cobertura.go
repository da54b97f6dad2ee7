package coverage

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/bkyoung/covgate/internal/domain"
)

// coberturaReport mirrors the subset of the Cobertura XML schema the index
// needs: a flat packages/package/classes/class hierarchy with per-line hit
// counts, plus the aggregate line-rate on the root element.
type coberturaReport struct {
	XMLName  xml.Name           `xml:"coverage"`
	LineRate float64            `xml:"line-rate,attr"`
	Packages []coberturaPackage `xml:"packages>package"`
}

type coberturaPackage struct {
	Name    string           `xml:"name,attr"`
	Classes []coberturaClass `xml:"classes>class"`
}

type coberturaClass struct {
	Name  string          `xml:"name,attr"`
	Lines []coberturaLine `xml:"lines>line"`
}

type coberturaLine struct {
	Number int `xml:"number,attr"`
	Hits   int `xml:"hits,attr"`
}

// CoberturaIndex resolves file paths against a flat single-module
// Cobertura report.
type CoberturaIndex struct {
	cfg Config
	// package (dotted) -> class -> coverage
	files    map[string]map[string]domain.CoverageMap
	lineRate float64
}

// ParseCobertura decodes a Cobertura report into an index.
func ParseCobertura(r io.Reader, cfg Config) (*CoberturaIndex, error) {
	var report coberturaReport
	if err := xml.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode cobertura report: %w", err)
	}

	files := make(map[string]map[string]domain.CoverageMap)
	for _, pkg := range report.Packages {
		classes, ok := files[pkg.Name]
		if !ok {
			classes = make(map[string]domain.CoverageMap)
			files[pkg.Name] = classes
		}
		for _, class := range pkg.Classes {
			cov := make(domain.CoverageMap, len(class.Lines))
			for _, line := range class.Lines {
				cov[line.Number] = line.Hits > 0
			}
			classes[class.Name] = cov
		}
	}

	return &CoberturaIndex{cfg: cfg, files: files, lineRate: report.LineRate}, nil
}

// LineRate returns the aggregate line coverage fraction recorded on the
// report's root element.
func (ix *CoberturaIndex) LineRate() float64 {
	return ix.lineRate
}

// Lookup segments the path into package/class coordinates and returns the
// line coverage recorded for them. Paths under an ignored prefix and paths
// without a separator are skipped entirely.
func (ix *CoberturaIndex) Lookup(filePath string) (domain.CoverageMap, bool) {
	for _, prefix := range ix.cfg.IgnoredPrefixes {
		if strings.HasPrefix(filePath, prefix) {
			return nil, false
		}
	}
	if !strings.Contains(filePath, "/") {
		return nil, false
	}

	dir, file := splitLast(filePath)
	pkg := strings.ReplaceAll(dir, "/", ".")

	cov := ix.files[pkg][file]
	if cov == nil {
		// Coordinate is well-formed but the report has nothing for it.
		return domain.CoverageMap{}, true
	}
	return cov, true
}

// splitLast splits a path at its final separator.
func splitLast(path string) (dir, file string) {
	idx := strings.LastIndex(path, "/")
	return path[:idx], path[idx+1:]
}
