package models

import "time"

// StorageResult is produced exactly once per store call. A failed result never
// carries a uri or hash.
type StorageResult struct {
	Success  bool                   `json:"success"`
	URI      string                 `json:"uri"`
	Hash     string                 `json:"hash"`
	Provider StorageProvider        `json:"provider"`
	Metadata map[string]interface{} `json:"metadata"`
	Error    string                 `json:"error,omitempty"`
}

func NewStorageSuccess(provider StorageProvider, uri, hash string, size int, metadata map[string]interface{}) *StorageResult {
	meta := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["size"] = size
	meta["stored_at"] = time.Now().UTC().Format(time.RFC3339)
	return &StorageResult{
		Success:  true,
		URI:      uri,
		Hash:     hash,
		Provider: provider,
		Metadata: meta,
	}
}

func NewStorageFailure(provider StorageProvider, errMsg string, metadata map[string]interface{}) *StorageResult {
	meta := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	if errMsg == "" {
		errMsg = "unknown storage error"
	}
	return &StorageResult{
		Provider: provider,
		Metadata: meta,
		Error:    errMsg,
	}
}
