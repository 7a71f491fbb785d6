package yaml

import (
	"sort"
	"strings"

	"gopkg.in/errgo.v2/fmt/errors"
)

type CatalogYamlV1 struct {
	Version   string                  `yaml:"version"`
	Functions map[string]FunctionSpec `yaml:"functions"`
}

// FunctionSpec says how a named function runs on the container and wasm
// backends. A function may define either or both.
type FunctionSpec struct {
	Image   string   `yaml:"image"`
	Command []string `yaml:"command"`
	Env     []string `yaml:"env"`
	Wasm    WasmSpec `yaml:"wasm"`
}

type WasmSpec struct {
	Module string `yaml:"module"`
	Export string `yaml:"export"`
}

func (cy *CatalogYamlV1) checkRequired() error {
	if len(cy.Functions) <= 0 {
		return errors.New("at least one function must be defined")
	}
	for name, fn := range cy.Functions {
		if strings.TrimSpace(name) == "" {
			return errors.New("function name must not be empty")
		}
		if fn.Image == "" && fn.Wasm.Module == "" {
			return errors.Newf("function %s defines neither an image nor a wasm module", name)
		}
		for _, env := range fn.Env {
			if !strings.Contains(env, "=") {
				return errors.Newf("function %s: env %q is not KEY=VALUE", name, env)
			}
		}
	}
	return nil
}

func (cy *CatalogYamlV1) toCatalog() (*Catalog, error) {
	if err := cy.checkRequired(); err != nil {
		return nil, err
	}
	functions := make(map[string]FunctionSpec, len(cy.Functions))
	for name, fn := range cy.Functions {
		if fn.Wasm.Module != "" && fn.Wasm.Export == "" {
			fn.Wasm.Export = name
		}
		functions[name] = fn
	}
	return &Catalog{functions: functions}, nil
}

// Catalog is read-only after parsing.
type Catalog struct {
	functions map[string]FunctionSpec
}

func (c *Catalog) Lookup(name string) (FunctionSpec, bool) {
	if c == nil {
		return FunctionSpec{}, false
	}
	fn, ok := c.functions[name]
	return fn, ok
}

func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.functions))
	for name := range c.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
