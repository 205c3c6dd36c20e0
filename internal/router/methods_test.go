package router

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogComplete(t *testing.T) {
	require.Len(t, catalog, MethodCount)

	seen := make(map[string]struct{}, len(catalog))
	for _, m := range catalog {
		_, dup := seen[m.name]
		assert.False(t, dup, "duplicate method %s", m.name)
		seen[m.name] = struct{}{}
		assert.NotEmpty(t, m.category, "method %s has no category", m.name)
	}
}

func TestMethodNamesSortedAndNamespaced(t *testing.T) {
	names := MethodNames()
	require.Len(t, names, MethodCount)
	assert.True(t, sort.StringsAreSorted(names))
	for _, n := range names {
		assert.True(t, strings.HasPrefix(n, Namespace), "method %s lacks namespace", n)
	}
}

func TestCategories(t *testing.T) {
	cats := Categories()
	for _, want := range []string{"system", "trading", "social", "coalitions", "x402"} {
		assert.Contains(t, cats, want)
	}

	seen := make(map[string]struct{})
	for _, c := range cats {
		_, dup := seen[c]
		assert.False(t, dup, "duplicate category %s", c)
		seen[c] = struct{}{}
	}
}

func TestUnauthenticatedSurfaceIsMinimal(t *testing.T) {
	var open []string
	for _, m := range catalog {
		if !m.auth {
			open = append(open, m.name)
		}
	}
	sort.Strings(open)
	assert.Equal(t, []string{"authenticate", "getCapabilities", "getServerInfo", "listMethods", "ping"}, open)
}

func TestFeatureGatesCoverWholeCategories(t *testing.T) {
	for _, m := range catalog {
		switch m.category {
		case "x402":
			assert.Equal(t, featureX402, m.feature, "method %s", m.name)
		case "coalitions":
			assert.Equal(t, featureCoalitions, m.feature, "method %s", m.name)
		default:
			assert.Empty(t, m.feature, "method %s", m.name)
		}
	}
}

func TestSchemasCompile(t *testing.T) {
	table, err := newMethodTable((&Router{}).registerHandlers())
	require.NoError(t, err)

	schemas, err := compileSchemas(table)
	require.NoError(t, err)

	for method := range paramSchemas {
		assert.Contains(t, schemas, method)
	}
	for method := range schemas {
		_, ok := table[method]
		assert.True(t, ok, "schema for unknown method %s", method)
	}
}
