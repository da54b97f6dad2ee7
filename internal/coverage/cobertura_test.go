package coverage_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/covgate/internal/coverage"
	"github.com/bkyoung/covgate/internal/domain"
)

const coberturaFixture = `<?xml version="1.0"?>
<coverage line-rate="0.8750" branch-rate="0.5" version="7.3.2" timestamp="1700000000">
  <packages>
    <package name="app.handlers" line-rate="0.9">
      <classes>
        <class name="orders.py" filename="app/handlers/orders.py" line-rate="0.9">
          <lines>
            <line number="3" hits="4"/>
            <line number="4" hits="0"/>
            <line number="7" hits="1"/>
          </lines>
        </class>
      </classes>
    </package>
  </packages>
</coverage>`

func newCoberturaIndex(t *testing.T) *coverage.CoberturaIndex {
	t.Helper()
	index, err := coverage.ParseCobertura(strings.NewReader(coberturaFixture), coverage.DefaultConfig())
	require.NoError(t, err)
	return index
}

func TestCoberturaIndex_Lookup(t *testing.T) {
	index := newCoberturaIndex(t)

	cov, ok := index.Lookup("app/handlers/orders.py")
	require.True(t, ok)

	want := domain.CoverageMap{3: true, 4: false, 7: true}
	assert.Equal(t, want, cov)
}

func TestCoberturaIndex_Lookup_Misses(t *testing.T) {
	index := newCoberturaIndex(t)

	tests := []struct {
		name string
		path string
	}{
		{"ignored prefix venv", ".venv/lib/site.py"},
		{"ignored prefix target", "target/generated/gen.py"},
		{"root-level file", "setup.py"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cov, ok := index.Lookup(tt.path)
			assert.False(t, ok)
			assert.Nil(t, cov)
		})
	}
}

func TestCoberturaIndex_Lookup_UnknownCoordinateIsEmptyMap(t *testing.T) {
	index := newCoberturaIndex(t)

	cov, ok := index.Lookup("app/handlers/shipping.py")
	require.True(t, ok)
	assert.NotNil(t, cov)
	assert.Empty(t, cov)
}

func TestCoberturaIndex_LineRate(t *testing.T) {
	index := newCoberturaIndex(t)
	assert.InDelta(t, 0.875, index.LineRate(), 1e-9)
}

func TestParseCobertura_MalformedXML(t *testing.T) {
	_, err := coverage.ParseCobertura(strings.NewReader("not xml"), coverage.DefaultConfig())
	assert.Error(t, err)
}
