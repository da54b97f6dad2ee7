package coverage_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/covgate/internal/coverage"
	"github.com/bkyoung/covgate/internal/domain"
)

const jacocoFixture = `<?xml version="1.0" encoding="UTF-8"?>
<report name="aggregate">
  <group name="api">
    <package name="com/acme/service">
      <sourcefile name="Handler.java">
        <line nr="10" mi="0" mb="0" ci="4" cb="0"/>
        <line nr="11" mi="3" mb="0" ci="0" cb="0"/>
        <line nr="12" mi="0" mb="2" ci="2" cb="0"/>
      </sourcefile>
    </package>
  </group>
  <group name="worker">
    <package name="ca/acme/jobs">
      <sourcefile name="Runner.java">
        <line nr="5" mi="0" mb="0" ci="1" cb="0"/>
      </sourcefile>
    </package>
  </group>
</report>`

func newJacocoIndex(t *testing.T) *coverage.JacocoIndex {
	t.Helper()
	index, err := coverage.ParseJacoco(strings.NewReader(jacocoFixture), coverage.DefaultConfig())
	require.NoError(t, err)
	return index
}

func TestJacocoIndex_Lookup(t *testing.T) {
	index := newJacocoIndex(t)

	cov, ok := index.Lookup("api/src/main/java/com/acme/service/Handler.java")
	require.True(t, ok)

	want := domain.CoverageMap{10: true, 11: false, 12: false}
	assert.Equal(t, want, cov)
}

func TestJacocoIndex_Lookup_SecondGroup(t *testing.T) {
	index := newJacocoIndex(t)

	cov, ok := index.Lookup("services/worker/src/main/java/ca/acme/jobs/Runner.java")
	require.True(t, ok)
	assert.Equal(t, domain.CoverageMap{5: true}, cov)
}

func TestJacocoIndex_Lookup_Misses(t *testing.T) {
	index := newJacocoIndex(t)

	tests := []struct {
		name string
		path string
	}{
		{"root-level file", "README.md"},
		{"no src segment", "api/com/acme/service/Handler.java"},
		{"no recognized package root", "api/src/main/resources/application.yaml"},
		{"package root is the file itself", "api/src/main/java/com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cov, ok := index.Lookup(tt.path)
			assert.False(t, ok)
			assert.Nil(t, cov)
		})
	}
}

func TestJacocoIndex_Lookup_UnknownCoordinateIsEmptyMap(t *testing.T) {
	index := newJacocoIndex(t)

	// Well-formed coordinate the report knows nothing about: the file is
	// attributable but has zero coverage data.
	cov, ok := index.Lookup("api/src/main/java/com/acme/service/Untested.java")
	require.True(t, ok)
	assert.NotNil(t, cov)
	assert.Empty(t, cov)
}

func TestParseJacoco_MalformedXML(t *testing.T) {
	_, err := coverage.ParseJacoco(strings.NewReader("<report><group"), coverage.DefaultConfig())
	assert.Error(t, err)
}

func TestParseDialect(t *testing.T) {
	for _, name := range []string{"jacoco", "cobertura"} {
		dialect, err := coverage.ParseDialect(name)
		require.NoError(t, err)
		assert.Equal(t, name, string(dialect))
	}

	_, err := coverage.ParseDialect("lcov")
	assert.Error(t, err)
}

func TestDialect_DisplayName(t *testing.T) {
	assert.Equal(t, "Jacoco", coverage.DialectJacoco.DisplayName())
	assert.Equal(t, "Cobertura", coverage.DialectCobertura.DisplayName())
}
