// Package coverage indexes machine-readable test coverage reports and
// answers per-file line coverage lookups.
//
// Two report dialects are supported behind one Index interface: Jacoco
// (hierarchical group/package/sourcefile reports produced by aggregated
// multi-module builds) and Cobertura (flat package/class reports). Each
// dialect carries its own rule for segmenting a source-file path into
// report coordinates; callers only ever see post-change file paths.
package coverage
