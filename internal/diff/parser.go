package diff

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bkyoung/covgate/internal/domain"
)

// ErrMalformedDiff indicates a hunk header that does not match the unified
// diff grammar. The parser never guesses around a bad header; the error
// propagates to the caller and aborts the run.
var ErrMalformedDiff = errors.New("malformed diff")

// Parse turns raw unified diff text into an ordered sequence of change
// records, one per file with a resolvable post-change path. Segments without
// a "+++ b/<path>" header (pure deletions, binary files) are dropped.
func Parse(diffText string) ([]domain.ChangeRecord, error) {
	var records []domain.ChangeRecord

	var current *domain.ChangeRecord
	flush := func() {
		if current != nil && current.File != "" {
			records = append(records, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git"):
			flush()
			current = &domain.ChangeRecord{}

		case strings.HasPrefix(line, "+++ "):
			path, ok := newFilePath(line)
			if !ok {
				// Pure deletion (+++ /dev/null) or unusable header;
				// the segment stays but will never be flushed without a path.
				continue
			}
			if current == nil {
				// Diff text that starts mid-segment, without a
				// "diff --git" marker. Tolerate it.
				current = &domain.ChangeRecord{}
			}
			current.File = path

		case strings.HasPrefix(line, "@@"):
			if current == nil || current.File == "" {
				continue
			}
			start, count, err := parseHunkHeader(line)
			if err != nil {
				return nil, err
			}
			for i := 0; i < count; i++ {
				current.LinesChanged = append(current.LinesChanged, start+i)
			}
		}
	}
	flush()

	return records, nil
}

// newFilePath extracts the post-change path from a "+++ b/<path>" header.
// Returns false for /dev/null (deletions) and headers without the b/ prefix.
func newFilePath(line string) (string, bool) {
	rest := strings.TrimPrefix(line, "+++ ")
	// Trailing tab plus mode or timestamp info may follow the path.
	if idx := strings.IndexAny(rest, "\t"); idx >= 0 {
		rest = rest[:idx]
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "b/") {
		// Covers /dev/null (pure deletions) and non-git headers.
		return "", false
	}
	path := strings.TrimPrefix(rest, "b/")
	if path == "" {
		return "", false
	}
	return path, true
}

// parseHunkHeader parses the new-side range out of a header such as
// "@@ -5,0 +10,3 @@ optional context". A missing count means a single line;
// an explicit count of zero means the hunk only deletes and contributes no
// new-side lines.
func parseHunkHeader(line string) (start, count int, err error) {
	inner := strings.TrimPrefix(line, "@@")
	if idx := strings.Index(inner, "@@"); idx >= 0 {
		inner = inner[:idx]
	}

	var newRange string
	for _, field := range strings.Fields(inner) {
		if strings.HasPrefix(field, "+") {
			newRange = strings.TrimPrefix(field, "+")
			break
		}
	}
	if newRange == "" {
		return 0, 0, fmt.Errorf("%w: hunk header %q has no new-side range", ErrMalformedDiff, line)
	}

	startText, countText, hasCount := strings.Cut(newRange, ",")
	start, err = strconv.Atoi(startText)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: hunk header %q: %v", ErrMalformedDiff, line, err)
	}

	count = 1
	if hasCount {
		count, err = strconv.Atoi(countText)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: hunk header %q: %v", ErrMalformedDiff, line, err)
		}
	}
	return start, count, nil
}
