package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/chaoschain/go-evidence-provider/constants"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/google/uuid"
)

var (
	ErrUnknownVerificationMethod = errors.New("unknown verification method")
	ErrMalformedRequest          = errors.New("malformed execution request")
	ErrUnknownFunction           = errors.New("unknown function")
)

type Config struct {
	Method  models.VerificationMethod
	Timeout time.Duration
	// Policy defaults to DefaultPolicy when nil.
	Policy PolicyTable
}

// Manager dispatches executions to one backend and settles verification and
// reputation. It is not mutated after construction.
type Manager struct {
	timeout  time.Duration
	method   models.VerificationMethod
	backend  Backend
	verifier Verifier
	policy   PolicyEntry
}

func NewManager(cfg Config, backend Backend, verifiers map[models.VerificationMethod]Verifier) (*Manager, error) {
	if backend == nil {
		return nil, fmt.Errorf("compute backend is nil")
	}
	if cfg.Method == "" {
		cfg.Method = models.VerificationNone
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DEFAULT_COMPUTE_TIMEOUT_SECONDS * time.Second
	}
	table := cfg.Policy
	if table == nil {
		table = DefaultPolicy()
	}

	entry, ok := table[cfg.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no policy entry", ErrUnknownVerificationMethod, cfg.Method)
	}
	if err := entry.validate(); err != nil {
		return nil, fmt.Errorf("policy for %s: %w", cfg.Method, err)
	}
	verifier, ok := verifiers[cfg.Method]
	if !ok || verifier == nil {
		return nil, fmt.Errorf("%w: %q has no verifier", ErrUnknownVerificationMethod, cfg.Method)
	}

	return &Manager{
		timeout:  cfg.Timeout,
		method:   cfg.Method,
		backend:  backend,
		verifier: verifier,
		policy:   entry,
	}, nil
}

func (m *Manager) Provider() models.ComputeProvider {
	return m.backend.Provider()
}

func (m *Manager) Method() models.VerificationMethod {
	return m.method
}

// ExecuteWithIntegrityProof runs functionName on the configured backend and
// verifies the outcome. An unverified execution is still returned as a
// result; only a malformed request or a failed submission is an error.
func (m *Manager) ExecuteWithIntegrityProof(ctx context.Context, fn Function, functionName string, data interface{}) (*models.ComputeResult, error) {
	functionName = strings.TrimSpace(functionName)
	if functionName == "" {
		return nil, fmt.Errorf("%w: empty function name", ErrMalformedRequest)
	}
	input, err := CanonicalInput(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	req := &Request{
		ID:           uuid.NewString(),
		FunctionName: functionName,
		Input:        input,
		Fn:           fn,
	}

	submitCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	sub, err := m.backend.Submit(submitCtx, req)
	if err != nil {
		logs.GetLogger().Errorf("execute %s on %s failed, request: %s, error: %v", functionName, m.backend.Provider(), req.ID, err)
		return nil, fmt.Errorf("submit %s to %s: %w", functionName, m.backend.Provider(), err)
	}
	if sub == nil {
		return nil, fmt.Errorf("submit %s to %s: backend returned no submission", functionName, m.backend.Provider())
	}

	timestamp := sub.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	receipt := models.ExecutionReceipt{
		Provider:      m.backend.Provider(),
		FunctionName:  functionName,
		Input:         input,
		RawOutput:     sub.RawOutput,
		Attestation:   sub.Attestation,
		ExecutionHash: util.ExecutionHash(functionName, input, sub.RawOutput),
		Timestamp:     timestamp,
	}

	verifyCtx, cancelVerify := context.WithTimeout(ctx, m.timeout)
	defer cancelVerify()
	verified, proof := m.verify(verifyCtx, &receipt)
	bonus, multiplier := m.policy.apply(verified)

	recordExecution(string(receipt.Provider), string(m.method), verified)
	logs.GetLogger().Infof("executed %s on %s, hash: %s, method: %s, verified: %t, multiplier: %.2f",
		functionName, receipt.Provider, receipt.ExecutionHash, m.method, verified, multiplier)

	return &models.ComputeResult{
		ExecutionReceipt: receipt,
		VerificationOutcome: models.VerificationOutcome{
			Method:               m.method,
			Verified:             verified,
			Proof:                proof,
			ReputationBonus:      bonus,
			ReputationMultiplier: multiplier,
		},
		Output: decodeOutput(sub.RawOutput),
	}, nil
}

func (m *Manager) verify(ctx context.Context, receipt *models.ExecutionReceipt) (verified bool, proof []byte) {
	defer func() {
		if r := recover(); r != nil {
			logs.GetLogger().Errorf("verifier %s panicked: %v\n%s", m.method, r, debug.Stack())
			verified, proof = false, nil
		}
	}()
	return m.verifier.Verify(ctx, receipt)
}

// CanonicalInput is the byte form of data that the execution hash binds. The
// value is re-encoded from its decoded form, so object keys come out sorted
// and a json.RawMessage hashes the same as the equivalent Go value.
func CanonicalInput(data interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("input is not JSON encodable: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err = dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("input is not valid JSON: %w", err)
	}
	canonical, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("input is not JSON encodable: %w", err)
	}
	return canonical, nil
}
