package compute

import (
	"context"
	"fmt"
	"time"

	"github.com/chaoschain/go-evidence-provider/internal/models"
)

// LocalBackend runs functions in-process. With an enclave it attests each
// execution, which stands in for a TEE on a single node.
type LocalBackend struct {
	registry *Registry
	enclave  *Enclave
}

func NewLocalBackend(registry *Registry, enclave *Enclave) *LocalBackend {
	return &LocalBackend{registry: registry, enclave: enclave}
}

func (l *LocalBackend) Provider() models.ComputeProvider {
	return models.ComputeLocal
}

func (l *LocalBackend) Submit(ctx context.Context, req *Request) (*Submission, error) {
	fn := req.Fn
	if fn == nil {
		var ok bool
		if fn, ok = l.registry.Lookup(req.FunctionName); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, req.FunctionName)
		}
	}
	raw, err := RunFunction(ctx, fn, req.Input)
	if err != nil {
		return nil, err
	}

	sub := &Submission{RawOutput: raw, Timestamp: time.Now().UTC()}
	if l.enclave != nil {
		if sub.Attestation, err = l.enclave.Attest(req.FunctionName, req.Input, raw); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// Envelope runs a request and packs it as a worker reply.
func (l *LocalBackend) Envelope(ctx context.Context, req *Request) *TaskEnvelope {
	sub, err := l.Submit(ctx, req)
	if err != nil {
		return &TaskEnvelope{Error: err.Error()}
	}
	return &TaskEnvelope{
		Output:      sub.RawOutput,
		Attestation: sub.Attestation,
		Timestamp:   sub.Timestamp.Unix(),
	}
}
