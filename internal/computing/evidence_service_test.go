package computing

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/chaoschain/go-evidence-provider/internal/compute"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/internal/storage"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryReceiptLog struct {
	mu       sync.Mutex
	receipts map[string]models.ReceiptSummary
}

func (m *memoryReceiptLog) Save(summary models.ReceiptSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[summary.ExecutionHash] = summary
	return nil
}

func (m *memoryReceiptLog) Get(executionHash string) (*models.ReceiptSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary, ok := m.receipts[executionHash]
	if !ok {
		return nil, ErrReceiptNotFound
	}
	return &summary, nil
}

func (m *memoryReceiptLog) List() ([]models.ReceiptSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReceiptSummary
	for _, s := range m.receipts {
		out = append(out, s)
	}
	return out, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *memoryReceiptLog) {
	gin.SetMode(gin.TestMode)

	memory, err := storage.NewMemoryBackend()
	require.NoError(t, err)
	t.Cleanup(func() { memory.Close() })
	storageManager, err := storage.NewManager(storage.Config{}, memory)
	require.NoError(t, err)

	computeManager, err := compute.NewManager(compute.Config{Method: models.VerificationNone},
		compute.NewLocalBackend(compute.BuiltinRegistry(), nil), compute.DefaultVerifiers(nil, nil))
	require.NoError(t, err)

	receipts := &memoryReceiptLog{receipts: make(map[string]models.ReceiptSummary)}
	svc := NewEvidenceService(storageManager, computeManager, receipts, "evidence-node-test", "0xnode")
	r := gin.New()
	svc.RegisterRoutes(r.Group("/api/v1"))
	return r, receipts
}

func doRequest(r http.Handler, method, target string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp envelope
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHostInfo(t *testing.T) {
	r, _ := newTestRouter(t)
	w, resp := doRequest(r, http.MethodGet, "/api/v1/host/info", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info models.HostInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.Equal(t, "evidence-node-test", info.NodeName)
	assert.Equal(t, "0xnode", info.NodeAddress)
	assert.Equal(t, []models.StorageProvider{models.StorageMemory}, info.StorageChain)
	assert.Equal(t, models.ComputeLocal, info.ComputeProvider)
	assert.Equal(t, models.VerificationNone, info.Verification)
}

func TestStoreAndVerifyEvidence(t *testing.T) {
	r, _ := newTestRouter(t)
	payload := []byte{0x01, 0x02, 0xff}

	w, resp := doRequest(r, http.MethodPost, "/api/v1/storage", StoreReq{
		Data:     strPtr(base64.StdEncoding.EncodeToString(payload)),
		Metadata: map[string]interface{}{"agent_id": "agent-1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result models.StorageResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.True(t, result.Success)
	assert.Equal(t, util.ContentHash(payload), result.Hash)
	assert.Equal(t, "agent-1", result.Metadata["agent_id"])

	w, resp = doRequest(r, http.MethodGet, "/api/v1/storage/verify?uri="+result.URI+"&hash="+result.Hash, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var verify VerifyResp
	require.NoError(t, json.Unmarshal(resp.Data, &verify))
	assert.True(t, verify.Valid)

	_, resp = doRequest(r, http.MethodGet, "/api/v1/storage/verify?uri="+result.URI+"&hash="+util.ContentHash([]byte("x")), nil)
	require.NoError(t, json.Unmarshal(resp.Data, &verify))
	assert.False(t, verify.Valid)
}

func TestStoreEvidenceRejectsBadRequests(t *testing.T) {
	r, _ := newTestRouter(t)

	w, resp := doRequest(r, http.MethodPost, "/api/v1/storage", StoreReq{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, util.StorageParamError, resp.Code)

	w, _ = doRequest(r, http.MethodPost, "/api/v1/storage", StoreReq{Data: strPtr("%%%")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doRequest(r, http.MethodPost, "/api/v1/storage", StoreReq{Text: strPtr("x"), Provider: "s3"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// explicit provider that is valid but not configured
	w, resp = doRequest(r, http.MethodPost, "/api/v1/storage", StoreReq{Text: strPtr("x"), Provider: "0g"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, util.StorageError, resp.Code)

	w, _ = doRequest(r, http.MethodPost, "/api/v1/storage", StoreReq{Data: strPtr(""), Text: strPtr("x")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doRequest(r, http.MethodGet, "/api/v1/storage/verify?uri=mem://abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoreEmptyPayload(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, body := range []map[string]interface{}{{"data": ""}, {"text": ""}} {
		w, resp := doRequest(r, http.MethodPost, "/api/v1/storage", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result models.StorageResult
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.True(t, result.Success)
		assert.Equal(t, util.ContentHash([]byte{}), result.Hash)
		assert.EqualValues(t, 0, result.Metadata["size"])

		_, resp = doRequest(r, http.MethodGet, "/api/v1/storage/verify?uri="+result.URI+"&hash="+result.Hash, nil)
		var verify VerifyResp
		require.NoError(t, json.Unmarshal(resp.Data, &verify))
		assert.True(t, verify.Valid)
	}
}

func strPtr(s string) *string {
	return &s
}

func TestExecuteFunctionAndReceipt(t *testing.T) {
	r, receipts := newTestRouter(t)

	w, resp := doRequest(r, http.MethodPost, "/api/v1/compute/execute", map[string]interface{}{
		"function_name": "double",
		"data":          21,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		ExecutionHash string      `json:"execution_hash"`
		Verified      bool        `json:"verified"`
		Output        json.Number `json:"output"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, json.Number("42"), result.Output)
	assert.Equal(t, util.ExecutionHash("double", []byte("21"), []byte("42")), result.ExecutionHash)
	assert.True(t, result.Verified)
	assert.Len(t, receipts.receipts, 1)

	w, resp = doRequest(r, http.MethodGet, "/api/v1/receipts/"+result.ExecutionHash, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary models.ReceiptSummary
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.Equal(t, "42", summary.Output)
	assert.Equal(t, "double", summary.FunctionName)

	w, resp = doRequest(r, http.MethodGet, "/api/v1/receipts/0xunknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, util.ReceiptNotFound, resp.Code)
}

func TestExecuteFunctionErrors(t *testing.T) {
	r, receipts := newTestRouter(t)

	w, _ := doRequest(r, http.MethodPost, "/api/v1/compute/execute", map[string]interface{}{"data": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := doRequest(r, http.MethodPost, "/api/v1/compute/execute", map[string]interface{}{
		"function_name": "not_registered",
		"data":          1,
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, util.ComputeError, resp.Code)
	assert.True(t, strings.Contains(resp.Message, "unknown function"))
	assert.Empty(t, receipts.receipts)
}
