package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[API]
Port = 9090
RedisUrl = "redis://127.0.0.1:6379"

[Storage]
Primary = "0g"
Fallbacks = ["mcs", "ipfs", "memory"]

[ZeroG]
IndexerUrl = "http://127.0.0.1:5678"

[Compute]
Primary = "local"
VerificationMethod = "tee-ml"
AttestationRoots = ["0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"]

[[Policy]]
Method = "tee-ml"
Multiplier = 2.0
BonusEligible = true
`

func writeConfig(t *testing.T, body string) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0644))
	return dir
}

func TestInitConfig(t *testing.T) {
	dir := writeConfig(t, sampleConfig)
	require.NoError(t, InitConfig(dir))

	cfg := GetConfig()
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "0g", cfg.Storage.Primary)
	assert.Equal(t, []string{"mcs", "ipfs", "memory"}, cfg.Storage.Fallbacks)
	assert.Equal(t, 30, cfg.Storage.AttemptTimeoutSeconds)
	assert.Equal(t, 180, cfg.Compute.TimeoutSeconds)
	assert.Equal(t, "default", cfg.Compute.K8sNamespace)
	require.Len(t, cfg.Policy, 1)
	assert.Equal(t, 2.0, cfg.Policy[0].Multiplier)
}

func TestInitConfigMissingRequired(t *testing.T) {
	dir := writeConfig(t, `
[API]
RedisUrl = "redis://127.0.0.1:6379"

[Compute]
Primary = "local"
`)
	err := InitConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Storage")
}

func TestInitConfigMissingFile(t *testing.T) {
	assert.Error(t, InitConfig(t.TempDir()))
}
