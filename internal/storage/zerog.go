package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/chaoschain/go-evidence-provider/constants"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
)

const maxPayloadBytes = 256 << 20

// ZeroGBackend talks to a 0G storage indexer over its HTTP upload/download API.
type ZeroGBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type zeroGUploadResp struct {
	Root   string `json:"root"`
	TxHash string `json:"tx_hash"`
}

func NewZeroGBackend(indexerURL, apiKey string) (*ZeroGBackend, error) {
	trimmed := strings.TrimSpace(indexerURL)
	if trimmed == "" {
		return nil, fmt.Errorf("0g indexer url is empty")
	}
	return &ZeroGBackend{
		baseURL: strings.TrimRight(trimmed, "/"),
		apiKey:  apiKey,
		client:  &http.Client{},
	}, nil
}

func (z *ZeroGBackend) Provider() models.StorageProvider {
	return models.StorageZeroG
}

func (z *ZeroGBackend) Owns(uri string) bool {
	return hasScheme(uri, constants.URI_SCHEME_ZEROG)
}

func (z *ZeroGBackend) Put(ctx context.Context, data []byte, metadata map[string]interface{}) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.baseURL+"/v1/files", bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if tag, ok := metadata["type"].(string); ok {
		req.Header.Set("X-Evidence-Type", tag)
	}
	z.authorize(req)

	resp, err := z.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("upload to 0g: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("0g indexer status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var upload zeroGUploadResp
	if err = json.Unmarshal(body, &upload); err != nil {
		return "", "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if upload.Root == "" {
		return "", "", fmt.Errorf("0g indexer returned an empty root")
	}
	logs.GetLogger().Infof("stored %d bytes on 0g, root: %s, tx: %s", len(data), upload.Root, upload.TxHash)
	return constants.URI_SCHEME_ZEROG + upload.Root, util.ContentHash(data), nil
}

func (z *ZeroGBackend) GetAndVerify(ctx context.Context, uri, expectedHash string) bool {
	root, err := trimScheme(uri, constants.URI_SCHEME_ZEROG)
	if err != nil {
		return false
	}
	data, err := z.download(ctx, root)
	if err != nil {
		logs.GetLogger().Warnf("0g backend: download %s failed, error: %v", root, err)
		return false
	}
	return util.HashMatches(data, expectedHash)
}

func (z *ZeroGBackend) download(ctx context.Context, root string) ([]byte, error) {
	target := fmt.Sprintf("%s/v1/files/%s", z.baseURL, url.PathEscape(root))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	z.authorize(req)

	resp, err := z.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("0g indexer %s status %s: %s", target, resp.Status, strings.TrimSpace(string(payload)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if len(data) > maxPayloadBytes {
		return nil, fmt.Errorf("payload larger than %d bytes", maxPayloadBytes)
	}
	return data, nil
}

func (z *ZeroGBackend) authorize(req *http.Request) {
	if z.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+z.apiKey)
	}
}
