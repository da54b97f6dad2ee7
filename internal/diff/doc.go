// Package diff parses unified diff output into per-file change records.
//
// The parser is a line-oriented state machine rather than a set of regular
// expressions: file segments begin at a "diff --git" marker, the post-change
// path comes from the "+++ b/<path>" header, and each "@@" hunk header
// contributes the new-side line range it describes. Only the new-side line
// numbers matter here; the records feed coverage reconciliation, which is
// keyed on post-change paths and line numbers.
package diff
