package yaml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogV1 = `
version: "1.0"
functions:
  double:
    image: ghcr.io/chaoschain/double:latest
    command: ["/bin/double"]
    env: ["LOG_LEVEL=info"]
    wasm:
      module: arith
  analyze_customer_data:
    image: ghcr.io/chaoschain/analyze:1.2
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(catalogV1))
	require.NoError(t, err)

	assert.Equal(t, []string{"analyze_customer_data", "double"}, catalog.Names())

	double, ok := catalog.Lookup("double")
	require.True(t, ok)
	assert.Equal(t, "ghcr.io/chaoschain/double:latest", double.Image)
	assert.Equal(t, []string{"/bin/double"}, double.Command)
	assert.Equal(t, "arith", double.Wasm.Module)
	assert.Equal(t, "double", double.Wasm.Export)

	_, ok = catalog.Lookup("missing")
	assert.False(t, ok)
}

func TestParseCatalogErrors(t *testing.T) {
	_, err := ParseCatalog([]byte("version: \"9.9\"\nfunctions: {}\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("version: \"1.0\"\nfunctions: {}\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("version: \"1.0\"\nfunctions:\n  nothing: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function nothing defines neither an image nor a wasm module")

	_, err = ParseCatalog([]byte("version: \"1.0\"\nfunctions:\n  sum:\n    image: sum:1\n    env: [\"NOEQUALS\"]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `function sum: env "NOEQUALS" is not KEY=VALUE`)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "functions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogV1), 0644))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, catalog.Names(), 2)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNilCatalog(t *testing.T) {
	var catalog *Catalog
	_, ok := catalog.Lookup("double")
	assert.False(t, ok)
	assert.Nil(t, catalog.Names())
}
