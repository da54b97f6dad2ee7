package coverage

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoSummary indicates the artifact contains no recognizable aggregate
// coverage figure.
var ErrNoSummary = errors.New("no aggregate coverage found")

const totalCellMarker = `<td>Total</td><td class="bar">`

// SummaryFromHTML extracts the aggregate coverage percentage from a rendered
// Jacoco index.html. The Total row carries "missed of total" instruction
// counts with thousands separators; coverage is the complement of the missed
// fraction, as a percentage. An empty report counts as fully covered.
func SummaryFromHTML(r io.Reader) (float64, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read coverage summary: %w", err)
	}

	body := string(content)
	idx := strings.Index(body, totalCellMarker)
	if idx < 0 {
		return 0, fmt.Errorf("%w: missing Total row", ErrNoSummary)
	}

	cell := body[idx+len(totalCellMarker):]
	end := strings.Index(cell, "</td>")
	if end < 0 {
		return 0, fmt.Errorf("%w: unterminated Total cell", ErrNoSummary)
	}
	cell = cell[:end]

	missedText, totalText, ok := strings.Cut(cell, " of ")
	if !ok {
		return 0, fmt.Errorf("%w: malformed Total cell %q", ErrNoSummary, cell)
	}

	missed, err := parseGroupedInt(missedText)
	if err != nil {
		return 0, fmt.Errorf("parse missed count: %w", err)
	}
	total, err := parseGroupedInt(totalText)
	if err != nil {
		return 0, fmt.Errorf("parse total count: %w", err)
	}

	if total == 0 {
		return 100, nil
	}
	return (1 - float64(missed)/float64(total)) * 100, nil
}

// SummaryFromXML extracts the aggregate coverage percentage from a
// Cobertura report's root line-rate attribute.
func SummaryFromXML(r io.Reader, cfg Config) (float64, error) {
	index, err := ParseCobertura(r, cfg)
	if err != nil {
		return 0, err
	}
	return index.LineRate() * 100, nil
}

// parseGroupedInt parses an integer that may carry thousands separators.
func parseGroupedInt(s string) (int, error) {
	return strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
}
