package computing

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"

	"github.com/chaoschain/go-evidence-provider/build"
	"github.com/chaoschain/go-evidence-provider/internal/compute"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/internal/storage"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/gin-gonic/gin"
)

// StoreReq carries the payload in data (base64) or text. A present but empty
// field stores a zero-length payload.
type StoreReq struct {
	Data     *string                `json:"data,omitempty"`
	Text     *string                `json:"text,omitempty"`
	Metadata map[string]interface{} `json:"metadata"`
	Provider string                 `json:"provider"`
}

type ExecuteReq struct {
	FunctionName string          `json:"function_name" binding:"required"`
	Data         json.RawMessage `json:"data"`
}

type VerifyResp struct {
	URI   string `json:"uri"`
	Hash  string `json:"hash"`
	Valid bool   `json:"valid"`
}

type EvidenceService struct {
	storage     *storage.Manager
	compute     *compute.Manager
	receipts    ReceiptLog
	nodeName    string
	nodeAddress string
}

// NewEvidenceService wires the HTTP surface. receipts may be nil, in which
// case results are not logged.
func NewEvidenceService(storageManager *storage.Manager, computeManager *compute.Manager, receipts ReceiptLog, nodeName, nodeAddress string) *EvidenceService {
	return &EvidenceService{
		storage:     storageManager,
		compute:     computeManager,
		receipts:    receipts,
		nodeName:    nodeName,
		nodeAddress: nodeAddress,
	}
}

func (s *EvidenceService) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/host/info", s.GetServiceProviderInfo)
	router.POST("/storage", s.StoreEvidence)
	router.GET("/storage/verify", s.VerifyEvidence)
	router.POST("/compute/execute", s.ExecuteFunction)
	router.GET("/receipts/:hash", s.GetReceipt)
}

func (s *EvidenceService) GetServiceProviderInfo(c *gin.Context) {
	info := new(models.HostInfo)
	info.ProviderVersion = build.UserVersion()
	info.NodeName = s.nodeName
	info.NodeAddress = s.nodeAddress
	info.OperatingSystem = runtime.GOOS
	info.Architecture = runtime.GOARCH
	info.CPUCores = runtime.NumCPU()
	info.StorageChain = s.storage.Providers()
	info.ComputeProvider = s.compute.Provider()
	info.Verification = s.compute.Method()
	c.JSON(http.StatusOK, util.CreateSuccessResponse(info))
}

func (s *EvidenceService) StoreEvidence(c *gin.Context) {
	var req StoreReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.JsonError, err.Error()))
		return
	}

	var payload []byte
	switch {
	case req.Data != nil && req.Text != nil:
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.StorageParamError, "data and text are mutually exclusive"))
		return
	case req.Data != nil:
		data, err := base64.StdEncoding.DecodeString(*req.Data)
		if err != nil {
			c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.StorageParamError, "data must be base64: "+err.Error()))
			return
		}
		payload = data
	case req.Text != nil:
		payload = []byte(*req.Text)
	default:
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.StorageParamError, "one of data or text is required"))
		return
	}

	var providers []models.StorageProvider
	if req.Provider != "" {
		provider, err := models.ParseStorageProvider(req.Provider)
		if err != nil {
			c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.StorageParamError, err.Error()))
			return
		}
		providers = append(providers, provider)
	}

	result := s.storage.Store(c.Request.Context(), payload, req.Metadata, providers...)
	if !result.Success {
		logs.GetLogger().Errorf("store evidence failed, error: %s", result.Error)
		c.JSON(http.StatusInternalServerError, util.CreateErrorResponse(util.StorageError, result.Error))
		return
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(result))
}

func (s *EvidenceService) VerifyEvidence(c *gin.Context) {
	uri := c.Query("uri")
	hash := c.Query("hash")
	if uri == "" || hash == "" {
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.VerifyParamError))
		return
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(VerifyResp{
		URI:   uri,
		Hash:  hash,
		Valid: s.storage.Verify(c.Request.Context(), uri, hash),
	}))
}

func (s *EvidenceService) ExecuteFunction(c *gin.Context) {
	var req ExecuteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.ComputeParamError, err.Error()))
		return
	}
	var data interface{}
	if len(req.Data) > 0 {
		data = req.Data
	}

	result, err := s.compute.ExecuteWithIntegrityProof(c.Request.Context(), nil, req.FunctionName, data)
	if errors.Is(err, compute.ErrMalformedRequest) {
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.ComputeParamError, err.Error()))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, util.CreateErrorResponse(util.ComputeError, err.Error()))
		return
	}

	if s.receipts != nil {
		if err = s.receipts.Save(models.NewReceiptSummary(result)); err != nil {
			logs.GetLogger().Errorf("failed save receipt %s, error: %v", result.ExecutionHash, err)
		}
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(result))
}

func (s *EvidenceService) GetReceipt(c *gin.Context) {
	if s.receipts == nil {
		c.JSON(http.StatusNotFound, util.CreateErrorResponse(util.ReceiptNotFound))
		return
	}
	summary, err := s.receipts.Get(c.Param("hash"))
	if errors.Is(err, ErrReceiptNotFound) {
		c.JSON(http.StatusNotFound, util.CreateErrorResponse(util.ReceiptNotFound))
		return
	}
	if err != nil {
		logs.GetLogger().Errorf("failed get receipt, error: %v", err)
		c.JSON(http.StatusInternalServerError, util.CreateErrorResponse(util.ReceiptNotFound, err.Error()))
		return
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(summary))
}
