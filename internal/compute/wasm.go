package compute

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/internal/yaml"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// WasmBackend runs catalog functions exported by wasm modules under
// moduleDir. A fresh runtime is used for every execution.
type WasmBackend struct {
	moduleDir string
	catalog   *yaml.Catalog
}

func NewWasmBackend(moduleDir string, catalog *yaml.Catalog) (*WasmBackend, error) {
	if catalog == nil {
		return nil, fmt.Errorf("wasm backend needs a function catalog")
	}
	info, err := os.Stat(moduleDir)
	if err != nil {
		return nil, fmt.Errorf("wasm module dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("wasm module dir %s is not a directory", moduleDir)
	}
	return &WasmBackend{moduleDir: moduleDir, catalog: catalog}, nil
}

func (w *WasmBackend) Provider() models.ComputeProvider {
	return models.ComputeWasm
}

func (w *WasmBackend) Submit(ctx context.Context, req *Request) (*Submission, error) {
	spec, ok := w.catalog.Lookup(req.FunctionName)
	if !ok || spec.Wasm.Module == "" {
		return nil, fmt.Errorf("%w: %s has no wasm module", ErrUnknownFunction, req.FunctionName)
	}
	module := spec.Wasm.Module
	if !strings.HasSuffix(module, ".wasm") {
		module += ".wasm"
	}
	wasmBin, err := os.ReadFile(filepath.Join(w.moduleDir, filepath.Base(module)))
	if err != nil {
		return nil, fmt.Errorf("read wasm module: %w", err)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	defer rt.Close(context.Background())
	if _, err = wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}
	mod, err := rt.InstantiateWithConfig(ctx, wasmBin, wazero.NewModuleConfig().WithStartFunctions("_initialize"))
	if err != nil {
		return nil, fmt.Errorf("instantiate module %s: %w", module, err)
	}

	fn := mod.ExportedFunction(spec.Wasm.Export)
	if fn == nil {
		return nil, fmt.Errorf("module %s does not export %s", module, spec.Wasm.Export)
	}
	args, err := wasmArgs(req.Input, fn.Definition().ParamTypes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.FunctionName, err)
	}
	results, err := fn.Call(ctx, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("call %s: %w", spec.Wasm.Export, err)
	}

	raw, err := json.Marshal(wasmResults(results, fn.Definition().ResultTypes()))
	if err != nil {
		return nil, err
	}
	return &Submission{RawOutput: raw, Timestamp: time.Now().UTC()}, nil
}

// wasmArgs maps a number or an array of numbers onto the export's params.
func wasmArgs(input json.RawMessage, params []api.ValueType) ([]uint64, error) {
	var values []json.Number
	var single json.Number
	if err := json.Unmarshal(input, &single); err == nil {
		values = []json.Number{single}
	} else if err = json.Unmarshal(input, &values); err != nil {
		return nil, fmt.Errorf("wasm input must be a number or an array of numbers")
	}
	if len(values) != len(params) {
		return nil, fmt.Errorf("export takes %d params, got %d", len(params), len(values))
	}

	args := make([]uint64, len(values))
	for i, v := range values {
		switch params[i] {
		case api.ValueTypeI32, api.ValueTypeI64:
			n, err := v.Int64()
			if err != nil {
				return nil, fmt.Errorf("param %d: %w", i, err)
			}
			if params[i] == api.ValueTypeI32 {
				if n < math.MinInt32 || n > math.MaxInt32 {
					return nil, fmt.Errorf("param %d: %d overflows i32", i, n)
				}
				args[i] = api.EncodeI32(int32(n))
			} else {
				args[i] = api.EncodeI64(n)
			}
		case api.ValueTypeF32, api.ValueTypeF64:
			f, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("param %d: %w", i, err)
			}
			if params[i] == api.ValueTypeF32 {
				if math.Abs(f) > math.MaxFloat32 {
					return nil, fmt.Errorf("param %d: %v overflows f32", i, f)
				}
				args[i] = api.EncodeF32(float32(f))
			} else {
				args[i] = api.EncodeF64(f)
			}
		default:
			return nil, fmt.Errorf("param %d has unsupported type %s", i, api.ValueTypeName(params[i]))
		}
	}
	return args, nil
}

// wasmResults decodes results by type. A single result is returned bare.
func wasmResults(results []uint64, types []api.ValueType) interface{} {
	out := make([]interface{}, len(results))
	for i, r := range results {
		switch types[i] {
		case api.ValueTypeI32:
			out[i] = api.DecodeI32(r)
		case api.ValueTypeI64:
			out[i] = int64(r)
		case api.ValueTypeF32:
			out[i] = api.DecodeF32(r)
		case api.ValueTypeF64:
			out[i] = api.DecodeF64(r)
		default:
			out[i] = r
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
