// Package render produces the annotated uncovered-line report shown to the
// developer when the gate fails. Each uncovered line is displayed with a few
// lines of surrounding context, grouped into consecutive runs, and marked
// according to whether it was part of the change and whether tests exercise
// it.
package render

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/bkyoung/covgate/internal/domain"
)

// markerSet holds the per-line annotations. Two-width strings keep the
// listing aligned across marker kinds.
type markerSet struct {
	fileHeader       string
	changedCovered   string
	changedUncovered string
	contextCovered   string
	contextUncovered string
	noData           string
}

var (
	emojiMarkers = markerSet{
		fileHeader:       "🚗",
		changedCovered:   "✅",
		changedUncovered: "❌",
		contextCovered:   "✔️ ",
		contextUncovered: "✖️ ",
		noData:           "  ",
	}
	asciiMarkers = markerSet{
		fileHeader:       ">>",
		changedCovered:   "+ ",
		changedUncovered: "x ",
		contextCovered:   "o ",
		contextUncovered: "- ",
		noData:           "  ",
	}
)

// FileReader loads a source file's contents. Swappable for tests.
type FileReader func(name string) ([]byte, error)

// Renderer formats file reports into the annotated text listing.
type Renderer struct {
	contextPadding int
	markers        markerSet
	header         *color.Color
	readFile       FileReader
}

// NewRenderer constructs a renderer with the given context padding. Emoji
// markers are used when stdout is a terminal; piped output falls back to
// ASCII so CI logs stay readable.
func NewRenderer(contextPadding int) *Renderer {
	r := &Renderer{
		contextPadding: contextPadding,
		markers:        asciiMarkers,
		header:         color.New(color.FgCyan, color.Bold),
		readFile:       os.ReadFile,
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		r.markers = emojiMarkers
	}
	return r
}

// SetEmoji forces the emoji or ASCII marker set regardless of TTY detection.
func (r *Renderer) SetEmoji(enabled bool) {
	if enabled {
		r.markers = emojiMarkers
	} else {
		r.markers = asciiMarkers
	}
}

// SetFileReader replaces the source file loader (for testing).
func (r *Renderer) SetFileReader(read FileReader) {
	r.readFile = read
}

// Render produces the concatenation of all non-empty per-file blocks. Files
// with no uncovered lines contribute nothing.
func (r *Renderer) Render(reports []domain.FileReport) (string, error) {
	var blocks []string
	for _, report := range reports {
		block, err := r.renderFile(report)
		if err != nil {
			return "", err
		}
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n"), nil
}

func (r *Renderer) renderFile(report domain.FileReport) (string, error) {
	if len(report.UncoveredLines) == 0 {
		return "", nil
	}

	data, err := r.readFile(report.File)
	if err != nil {
		return "", fmt.Errorf("read source %s: %w", report.File, err)
	}
	content := splitLines(string(data))

	display := r.linesToDisplay(report.UncoveredLines, len(content))
	if len(display) == 0 {
		return "", nil
	}

	changed := make(map[int]bool, len(report.LinesChanged))
	for _, line := range report.LinesChanged {
		changed[line] = true
	}

	var b strings.Builder
	b.WriteString(r.header.Sprintf("%s %s", r.markers.fileHeader, report.File))
	b.WriteString("\n")
	for _, group := range groupConsecutive(display) {
		for _, line := range group {
			marker := r.marker(line, report.Coverage, changed)
			fmt.Fprintf(&b, "\t%s %d\t\t%s\n", marker, line, content[line-1])
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// linesToDisplay expands every uncovered line by the context padding, clips
// to file bounds, dedupes, and sorts.
func (r *Renderer) linesToDisplay(uncovered []int, fileLen int) []int {
	seen := make(map[int]struct{})
	for _, line := range uncovered {
		lo := line - r.contextPadding
		if lo < 1 {
			lo = 1
		}
		hi := line + r.contextPadding
		if hi > fileLen {
			hi = fileLen
		}
		for i := lo; i <= hi; i++ {
			seen[i] = struct{}{}
		}
	}

	display := make([]int, 0, len(seen))
	for line := range seen {
		display = append(display, line)
	}
	sort.Ints(display)
	return display
}

func (r *Renderer) marker(line int, cov domain.CoverageMap, changed map[int]bool) string {
	covered, known := cov[line]
	switch {
	case !known:
		return r.markers.noData
	case changed[line] && covered:
		return r.markers.changedCovered
	case changed[line]:
		return r.markers.changedUncovered
	case covered:
		return r.markers.contextCovered
	default:
		return r.markers.contextUncovered
	}
}

// groupConsecutive splits sorted line numbers into maximal consecutive runs.
func groupConsecutive(lines []int) [][]int {
	var groups [][]int
	for _, line := range lines {
		if len(groups) == 0 || line > groups[len(groups)-1][len(groups[len(groups)-1])-1]+1 {
			groups = append(groups, []int{line})
			continue
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], line)
	}
	return groups
}

// splitLines breaks file contents into lines without trailing newlines.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
