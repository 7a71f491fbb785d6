package storage

import (
	"context"
	"fmt"

	"github.com/chaoschain/go-evidence-provider/constants"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/syndtr/goleveldb/leveldb"
	lvstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// MemoryBackend keeps payloads in an in-memory leveldb. It is the last resort
// of the chain: nothing survives a restart.
type MemoryBackend struct {
	db *leveldb.DB
}

func NewMemoryBackend() (*MemoryBackend, error) {
	db, err := leveldb.Open(lvstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	return &MemoryBackend{db: db}, nil
}

func (m *MemoryBackend) Provider() models.StorageProvider {
	return models.StorageMemory
}

func (m *MemoryBackend) Owns(uri string) bool {
	return hasScheme(uri, constants.URI_SCHEME_MEMORY)
}

func (m *MemoryBackend) Put(ctx context.Context, data []byte, metadata map[string]interface{}) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	hash := util.ContentHash(data)
	if err := m.db.Put([]byte(hash), data, nil); err != nil {
		return "", "", fmt.Errorf("writing key '%s': %w", hash, err)
	}
	logs.GetLogger().Debugf("stored %d bytes in memory, hash: %s", len(data), hash)
	return constants.URI_SCHEME_MEMORY + hash, hash, nil
}

func (m *MemoryBackend) GetAndVerify(ctx context.Context, uri, expectedHash string) bool {
	if ctx.Err() != nil {
		return false
	}
	key, err := trimScheme(uri, constants.URI_SCHEME_MEMORY)
	if err != nil {
		return false
	}
	data, err := m.db.Get([]byte(key), nil)
	if err != nil {
		logs.GetLogger().Warnf("memory backend: read %s failed, error: %v", key, err)
		return false
	}
	return util.HashMatches(data, expectedHash)
}

func (m *MemoryBackend) Close() error {
	return m.db.Close()
}
