package yaml

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Parser interface {
	Parse(yamlFile []byte) error
	GetConfig() interface{}
}

type ParserCatalogV1 struct {
	config CatalogYamlV1
}

func (p *ParserCatalogV1) Parse(yamlFile []byte) error {
	var catalog CatalogYamlV1
	if err := yaml.Unmarshal(yamlFile, &catalog); err != nil {
		return err
	}
	p.config = catalog
	return nil
}

func (p *ParserCatalogV1) GetConfig() interface{} {
	return p.config
}

type Version struct {
	Version string `yaml:"version"`
}

func getYAMLFileVersion(yamlFile []byte) (string, error) {
	var version Version
	err := yaml.Unmarshal(yamlFile, &version)
	if err != nil {
		return "", err
	}
	return version.Version, nil
}

// LoadCatalog reads a function catalog file.
func LoadCatalog(yamlFilePath string) (*Catalog, error) {
	yamlFile, err := os.ReadFile(yamlFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed unable to read file, %w", err)
	}
	return ParseCatalog(yamlFile)
}

func ParseCatalog(yamlFile []byte) (*Catalog, error) {
	version, err := getYAMLFileVersion(yamlFile)
	if err != nil {
		return nil, fmt.Errorf("failed unable to parse YAML file, %w", err)
	}
	switch version {
	case "1.0":
		parser := &ParserCatalogV1{}
		if err = parser.Parse(yamlFile); err != nil {
			return nil, fmt.Errorf("failed unable to parse YAML file, %w", err)
		}
		return parser.config.toCatalog()
	default:
		return nil, fmt.Errorf("not support catalog version: %q", version)
	}
}
