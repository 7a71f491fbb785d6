package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/chaoschain/go-evidence-provider/constants"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/filswan/go-mcs-sdk/mcs/api/bucket"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/filswan/go-mcs-sdk/mcs/api/user"
)

const mcsObjectFolder = "evidence"

type MCSConfig struct {
	ApiKey        string
	AccessToken   string
	Network       string
	BucketName    string
	FileCachePath string
	GatewayUrl    string
}

// MCSBackend pins payloads through a Multi-Chain Storage bucket. Objects are
// named after their content hash, so storing the same bytes twice is a replace.
type MCSBackend struct {
	cfg    MCSConfig
	client *http.Client
	// lookup resolves an object to the payload cid served by the gateway.
	lookup func(bucketName, objectName string) (string, error)
}

func NewMCSBackend(cfg MCSConfig) (*MCSBackend, error) {
	if cfg.ApiKey == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("mcs api key and bucket name are required")
	}
	if cfg.GatewayUrl == "" {
		return nil, fmt.Errorf("mcs gateway url is required")
	}
	if cfg.FileCachePath == "" {
		cfg.FileCachePath = os.TempDir()
	}
	cfg.GatewayUrl = strings.TrimRight(cfg.GatewayUrl, "/")
	b := &MCSBackend{cfg: cfg, client: &http.Client{}}
	b.lookup = b.lookupPayloadCid
	return b, nil
}

func (s *MCSBackend) Provider() models.StorageProvider {
	return models.StorageMCS
}

func (s *MCSBackend) Owns(uri string) bool {
	return hasScheme(uri, constants.URI_SCHEME_MCS)
}

func (s *MCSBackend) Put(ctx context.Context, data []byte, metadata map[string]interface{}) (string, string, error) {
	hash := util.ContentHash(data)
	objectName := path.Join(mcsObjectFolder, hash+".bin")

	if err := os.MkdirAll(s.cfg.FileCachePath, os.ModePerm); err != nil {
		return "", "", fmt.Errorf("create file cache: %w", err)
	}
	cacheFile := filepath.Join(s.cfg.FileCachePath, hash+".bin")
	if err := os.WriteFile(cacheFile, data, 0644); err != nil {
		return "", "", fmt.Errorf("write cache file: %w", err)
	}
	defer os.Remove(cacheFile)

	var ossFile *bucket.OssFile
	err := runWithContext(ctx, func() error {
		var err error
		ossFile, err = s.uploadFileToBucket(objectName, cacheFile)
		return err
	})
	if err != nil {
		return "", "", err
	}
	logs.GetLogger().Infof("stored %d bytes on mcs, object: %s, payload cid: %s", len(data), objectName, ossFile.PayloadCid)
	return constants.URI_SCHEME_MCS + s.cfg.BucketName + "/" + objectName, hash, nil
}

// uploadFileToBucket uploads filePath unless objectName already exists. Object
// names are content hashes, so an existing object already holds these bytes.
func (s *MCSBackend) uploadFileToBucket(objectName, filePath string) (*bucket.OssFile, error) {
	mcsClient, err := user.LoginByApikey(s.cfg.ApiKey, s.cfg.AccessToken, s.cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed creating mcs client: %w", err)
	}
	return storeObject(bucket.GetBucketClient(*mcsClient), s.cfg.BucketName, objectName, filePath)
}

// bucketClient is the part of the mcs bucket api a store needs.
type bucketClient interface {
	GetFile(bucketName, objectName string) (*bucket.OssFile, error)
	UploadFile(bucketName, objectName, filePath string, replace bool) error
}

func storeObject(buketClient bucketClient, bucketName, objectName, filePath string) (*bucket.OssFile, error) {
	file, err := buketClient.GetFile(bucketName, objectName)
	if err != nil && !strings.Contains(err.Error(), "record not found") {
		return nil, fmt.Errorf("failed get file form bucket: %w", err)
	}
	if err == nil && file != nil && file.PayloadCid != "" {
		logs.GetLogger().Debugf("object %s already in bucket %s", objectName, bucketName)
		return file, nil
	}

	if err = buketClient.UploadFile(bucketName, objectName, filePath, true); err != nil {
		return nil, fmt.Errorf("failed upload file to bucket: %w", err)
	}

	mcsOssFile, err := buketClient.GetFile(bucketName, objectName)
	if err != nil {
		return nil, fmt.Errorf("failed get file form bucket: %w", err)
	}
	return mcsOssFile, nil
}

func (s *MCSBackend) GetAndVerify(ctx context.Context, uri, expectedHash string) bool {
	bucketName, objectName, err := parseMCSURI(uri)
	if err != nil {
		return false
	}

	var payloadCid string
	err = runWithContext(ctx, func() error {
		var err error
		payloadCid, err = s.lookup(bucketName, objectName)
		return err
	})
	if err != nil {
		logs.GetLogger().Warnf("mcs backend: resolve %s failed, error: %v", uri, err)
		return false
	}

	data, err := s.fetch(ctx, s.cfg.GatewayUrl+"/ipfs/"+payloadCid)
	if err != nil {
		logs.GetLogger().Warnf("mcs backend: fetch %s failed, error: %v", payloadCid, err)
		return false
	}
	return util.HashMatches(data, expectedHash)
}

func (s *MCSBackend) lookupPayloadCid(bucketName, objectName string) (string, error) {
	mcsClient, err := user.LoginByApikey(s.cfg.ApiKey, s.cfg.AccessToken, s.cfg.Network)
	if err != nil {
		return "", err
	}
	ossFile, err := bucket.GetBucketClient(*mcsClient).GetFile(bucketName, objectName)
	if err != nil {
		return "", err
	}
	if ossFile.PayloadCid == "" {
		return "", fmt.Errorf("object %s has no payload cid yet", objectName)
	}
	return ossFile.PayloadCid, nil
}

func (s *MCSBackend) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("url: %s, unexpected status code: %d", target, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
}

func parseMCSURI(uri string) (string, string, error) {
	rest, err := trimScheme(uri, constants.URI_SCHEME_MCS)
	if err != nil {
		return "", "", err
	}
	bucketName, objectName, found := strings.Cut(rest, "/")
	if !found || bucketName == "" || objectName == "" {
		return "", "", fmt.Errorf("malformed mcs uri %q", uri)
	}
	return bucketName, objectName, nil
}
