package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chaoschain/go-evidence-provider/constants"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
)

var (
	ErrNoBackends         = errors.New("storage provider list is empty")
	ErrDuplicateProvider  = errors.New("storage provider configured more than once")
	ErrProvidersExhausted = errors.New("all providers exhausted")
	ErrHashMismatch       = errors.New("backend returned a hash that does not match the payload")
)

const defaultAttemptTimeout = constants.DEFAULT_ATTEMPT_TIMEOUT_SECONDS * time.Second

type Config struct {
	// AttemptTimeout bounds every single backend call.
	AttemptTimeout time.Duration
}

// Manager stores payloads over an ordered chain of backends. The chain and the
// config are fixed at construction, so one Manager is safe for concurrent use.
type Manager struct {
	cfg      Config
	backends []Backend
}

func NewManager(cfg Config, backends ...Backend) (*Manager, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	seen := make(map[models.StorageProvider]bool, len(backends))
	for i, b := range backends {
		if b == nil {
			return nil, fmt.Errorf("storage backend at position %d is nil", i)
		}
		if seen[b.Provider()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, b.Provider())
		}
		seen[b.Provider()] = true
	}
	return &Manager{
		cfg:      cfg,
		backends: append([]Backend(nil), backends...),
	}, nil
}

// OrderChain puts primary first and appends the remaining providers in their
// given order, dropping duplicates.
func OrderChain(primary models.StorageProvider, fallbacks []models.StorageProvider) []models.StorageProvider {
	chain := []models.StorageProvider{primary}
	for _, p := range fallbacks {
		dup := false
		for _, c := range chain {
			if c == p {
				dup = true
				break
			}
		}
		if !dup {
			chain = append(chain, p)
		}
	}
	return chain
}

func (m *Manager) Providers() []models.StorageProvider {
	out := make([]models.StorageProvider, 0, len(m.backends))
	for _, b := range m.backends {
		out = append(out, b.Provider())
	}
	return out
}

// Store persists data. With an explicit provider only that backend is tried;
// otherwise backends are tried in order and the first success wins.
func (m *Manager) Store(ctx context.Context, data []byte, metadata map[string]interface{}, provider ...models.StorageProvider) *models.StorageResult {
	if data == nil {
		data = []byte{}
	}

	if len(provider) > 0 && provider[0] != "" {
		b := m.backend(provider[0])
		if b == nil {
			return models.NewStorageFailure(provider[0], fmt.Sprintf("storage provider %s is not configured", provider[0]), metadata)
		}
		uri, hash, err := m.attempt(ctx, b, data, metadata)
		if err != nil {
			logs.GetLogger().Errorf("store on %s failed, error: %v", b.Provider(), err)
			return models.NewStorageFailure(b.Provider(), fmt.Sprintf("%s: %v", b.Provider(), err), metadata)
		}
		return models.NewStorageSuccess(b.Provider(), uri, hash, len(data), metadata)
	}

	var failures []string
	for i, b := range m.backends {
		if err := ctx.Err(); err != nil {
			for _, rest := range m.backends[i:] {
				failures = append(failures, fmt.Sprintf("%s: %v", rest.Provider(), err))
			}
			break
		}
		uri, hash, err := m.attempt(ctx, b, data, metadata)
		if err != nil {
			logs.GetLogger().Warnf("store on %s failed, trying next provider, error: %v", b.Provider(), err)
			failures = append(failures, fmt.Sprintf("%s: %v", b.Provider(), err))
			continue
		}
		if i > 0 {
			logs.GetLogger().Infof("payload stored on fallback provider %s after %d failed attempts", b.Provider(), i)
		}
		return models.NewStorageSuccess(b.Provider(), uri, hash, len(data), metadata)
	}

	errMsg := ErrProvidersExhausted.Error()
	if len(failures) > 0 {
		errMsg += ": " + strings.Join(failures, "; ")
	}
	logs.GetLogger().Errorf("store failed, %s", errMsg)
	return models.NewStorageFailure("", errMsg, metadata)
}

// attempt runs a single Put under its own deadline and enforces the content
// hash contract on the backend's answer.
func (m *Manager) attempt(ctx context.Context, b Backend, data []byte, metadata map[string]interface{}) (uri string, hash string, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.AttemptTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			uri, hash, err = "", "", fmt.Errorf("backend panic: %v", r)
		}
		storageAttempts.WithLabelValues(string(b.Provider()), outcome(err)).Inc()
	}()

	uri, hash, err = b.Put(attemptCtx, data, metadata)
	if err != nil {
		return "", "", err
	}
	if uri == "" || !b.Owns(uri) {
		return "", "", fmt.Errorf("backend returned an unroutable uri %q", uri)
	}
	if !util.HashMatches(data, hash) {
		return "", "", fmt.Errorf("%w: got %s", ErrHashMismatch, hash)
	}
	return uri, util.ContentHash(data), nil
}

// Verify fetches uri from the backend that owns it and compares the recomputed
// content hash with expectedHash. It never fails loudly: any problem is false.
func (m *Manager) Verify(ctx context.Context, uri, expectedHash string) (ok bool) {
	var b Backend
	for _, candidate := range m.backends {
		if candidate.Owns(uri) {
			b = candidate
			break
		}
	}
	if b == nil {
		logs.GetLogger().Warnf("no storage provider owns uri %q", uri)
		storageVerifications.WithLabelValues("unknown", "unresolved").Inc()
		return false
	}

	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.AttemptTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			logs.GetLogger().Errorf("verify on %s panicked: %v", b.Provider(), r)
			ok = false
		}
		storageVerifications.WithLabelValues(string(b.Provider()), verifyResult(ok)).Inc()
	}()

	return b.GetAndVerify(attemptCtx, uri, expectedHash)
}

func (m *Manager) backend(p models.StorageProvider) Backend {
	for _, b := range m.backends {
		if b.Provider() == p {
			return b
		}
	}
	return nil
}
