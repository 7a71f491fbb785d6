package conf

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

var config *ProviderNode

// ProviderNode is an evidence provider node config
type ProviderNode struct {
	API     API
	LOG     LOG
	Storage Storage
	ZeroG   ZeroG
	MCS     MCS
	IPFS    IPFS
	Compute Compute
	Policy  []Policy
}

type API struct {
	Port          int
	RedisUrl      string
	RedisPassword string
	NodeName      string
}

type LOG struct {
	CrtFile string
	KeyFile string
}

type Storage struct {
	Primary               string
	Fallbacks             []string
	AttemptTimeoutSeconds int
}

type ZeroG struct {
	IndexerUrl       string
	ComputeBrokerUrl string
	ApiKey           string
}

type MCS struct {
	ApiKey        string
	AccessToken   string
	BucketName    string
	Network       string
	FileCachePath string
	GatewayUrl    string
}

type IPFS struct {
	ApiUrl string
}

type Compute struct {
	Primary            string
	VerificationMethod string
	TimeoutSeconds     int
	AttestationRoots   []string
	ReferenceProvider  string
	FunctionCatalog    string
	WasmModuleDir      string
	K8sNamespace       string
}

// Policy overrides one row of the reputation policy table.
type Policy struct {
	Method        string
	Multiplier    float64
	BonusEligible bool
}

func InitConfig(cpRepoPath string) error {
	configFile := filepath.Join(cpRepoPath, "config.toml")

	var node ProviderNode
	metaData, err := toml.DecodeFile(configFile, &node)
	if err != nil {
		return fmt.Errorf("failed load config file, path: %s, error: %w", configFile, err)
	}
	if err = requiredFieldsAreGiven(metaData); err != nil {
		return fmt.Errorf("config file %s: %w", configFile, err)
	}
	node.applyDefaults()
	config = &node
	return nil
}

func GetConfig() *ProviderNode {
	return config
}

// SetConfig replaces the loaded configuration. Used by tests and embedders
// that build the config in code.
func SetConfig(node *ProviderNode) {
	node.applyDefaults()
	config = node
}

func (c *ProviderNode) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8085
	}
	if c.Storage.AttemptTimeoutSeconds <= 0 {
		c.Storage.AttemptTimeoutSeconds = 30
	}
	if c.Compute.TimeoutSeconds <= 0 {
		c.Compute.TimeoutSeconds = 180
	}
	if c.Compute.VerificationMethod == "" {
		c.Compute.VerificationMethod = "none"
	}
	if c.Compute.K8sNamespace == "" {
		c.Compute.K8sNamespace = "default"
	}
}

func requiredFieldsAreGiven(metaData toml.MetaData) error {
	requiredFields := [][]string{
		{"API"},
		{"Storage"},
		{"Compute"},

		{"API", "RedisUrl"},

		{"Storage", "Primary"},

		{"Compute", "Primary"},
	}

	for _, v := range requiredFields {
		if !metaData.IsDefined(v...) {
			return fmt.Errorf("required field %v not given", v)
		}
	}

	return nil
}
