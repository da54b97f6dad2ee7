package coverage

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/bkyoung/covgate/internal/domain"
)

// jacocoReport mirrors the subset of the Jacoco aggregate XML schema the
// index needs: group/package/sourcefile/line with missed-instruction and
// missed-branch counts per line.
type jacocoReport struct {
	XMLName xml.Name      `xml:"report"`
	Groups  []jacocoGroup `xml:"group"`
}

type jacocoGroup struct {
	Name     string          `xml:"name,attr"`
	Packages []jacocoPackage `xml:"package"`
}

type jacocoPackage struct {
	Name        string             `xml:"name,attr"`
	SourceFiles []jacocoSourceFile `xml:"sourcefile"`
}

type jacocoSourceFile struct {
	Name  string       `xml:"name,attr"`
	Lines []jacocoLine `xml:"line"`
}

type jacocoLine struct {
	Nr int    `xml:"nr,attr"`
	MI string `xml:"mi,attr"`
	MB string `xml:"mb,attr"`
}

// JacocoIndex resolves file paths against an aggregated multi-module
// Jacoco report.
type JacocoIndex struct {
	cfg Config
	// group -> package -> sourcefile -> coverage
	files map[string]map[string]map[string]domain.CoverageMap
}

// ParseJacoco decodes a Jacoco aggregate report into an index.
func ParseJacoco(r io.Reader, cfg Config) (*JacocoIndex, error) {
	var report jacocoReport
	if err := xml.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode jacoco report: %w", err)
	}

	files := make(map[string]map[string]map[string]domain.CoverageMap)
	for _, group := range report.Groups {
		packages, ok := files[group.Name]
		if !ok {
			packages = make(map[string]map[string]domain.CoverageMap)
			files[group.Name] = packages
		}
		for _, pkg := range group.Packages {
			sources, ok := packages[pkg.Name]
			if !ok {
				sources = make(map[string]domain.CoverageMap)
				packages[pkg.Name] = sources
			}
			for _, sf := range pkg.SourceFiles {
				cov := make(domain.CoverageMap, len(sf.Lines))
				for _, line := range sf.Lines {
					// Covered means no missed instructions and no
					// missed branches on that line.
					cov[line.Nr] = line.MI == "0" && line.MB == "0"
				}
				sources[sf.Name] = cov
			}
		}
	}

	return &JacocoIndex{cfg: cfg, files: files}, nil
}

// Lookup segments the path into group/package/sourcefile coordinates and
// returns the line coverage recorded for them.
func (ix *JacocoIndex) Lookup(filePath string) (domain.CoverageMap, bool) {
	coord, ok := ix.segment(filePath)
	if !ok {
		return nil, false
	}

	cov := ix.files[coord.group][coord.pkg][coord.file]
	if cov == nil {
		// Coordinate is well-formed but the report has nothing for it:
		// the file exists with zero coverage data.
		return domain.CoverageMap{}, true
	}
	return cov, true
}

type jacocoCoordinate struct {
	group string
	pkg   string
	file  string
}

// segment maps a path of the form <module>/src/.../<pkg root>/.../<Class>.ext
// into report coordinates. The group is the last segment of the module path;
// the package starts at the first recognized package root after src.
func (ix *JacocoIndex) segment(filePath string) (jacocoCoordinate, bool) {
	if !strings.Contains(filePath, "/") {
		return jacocoCoordinate{}, false
	}

	modulePath, rest, ok := strings.Cut(filePath, "/src/")
	if !ok || modulePath == "" {
		return jacocoCoordinate{}, false
	}

	moduleSegments := strings.Split(modulePath, "/")
	group := moduleSegments[len(moduleSegments)-1]

	segments := strings.Split(rest, "/")
	rootIdx := -1
	for i, seg := range segments {
		if ix.isPackageRoot(seg) {
			rootIdx = i
			break
		}
	}
	// The file name must sit below at least one package directory.
	if rootIdx < 0 || rootIdx >= len(segments)-1 {
		return jacocoCoordinate{}, false
	}

	return jacocoCoordinate{
		group: group,
		pkg:   strings.Join(segments[rootIdx:len(segments)-1], "/"),
		file:  segments[len(segments)-1],
	}, true
}

func (ix *JacocoIndex) isPackageRoot(segment string) bool {
	for _, root := range ix.cfg.PackageRoots {
		if segment == root {
			return true
		}
	}
	return false
}
