package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/chaoschain/go-evidence-provider/constants"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/ipfs/go-cid"
	shell "github.com/ipfs/go-ipfs-api"
)

// IPFSBackend adds and pins payloads on a local ipfs daemon.
type IPFSBackend struct {
	sh *shell.Shell
}

func NewIPFSBackend(apiURL string) (*IPFSBackend, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("ipfs api url is empty")
	}
	return &IPFSBackend{sh: shell.NewShell(apiURL)}, nil
}

func (i *IPFSBackend) Provider() models.StorageProvider {
	return models.StorageIPFS
}

func (i *IPFSBackend) Owns(uri string) bool {
	return hasScheme(uri, constants.URI_SCHEME_IPFS)
}

func (i *IPFSBackend) Put(ctx context.Context, data []byte, metadata map[string]interface{}) (string, string, error) {
	var added string
	err := runWithContext(ctx, func() error {
		var err error
		added, err = i.sh.Add(bytes.NewReader(data), shell.Pin(true))
		return err
	})
	if err != nil {
		return "", "", fmt.Errorf("ipfs add: %w", err)
	}
	c, err := cid.Decode(added)
	if err != nil {
		return "", "", fmt.Errorf("ipfs daemon returned an invalid cid %q: %w", added, err)
	}
	logs.GetLogger().Infof("stored %d bytes on local ipfs, cid: %s", len(data), c)
	return constants.URI_SCHEME_IPFS + c.String(), util.ContentHash(data), nil
}

func (i *IPFSBackend) GetAndVerify(ctx context.Context, uri, expectedHash string) bool {
	c, err := parseIPFSURI(uri)
	if err != nil {
		logs.GetLogger().Warnf("ipfs backend: %v", err)
		return false
	}

	var data []byte
	err = runWithContext(ctx, func() error {
		reader, err := i.sh.Cat(c.String())
		if err != nil {
			return err
		}
		defer reader.Close()
		data, err = io.ReadAll(io.LimitReader(reader, maxPayloadBytes))
		return err
	})
	if err != nil {
		logs.GetLogger().Warnf("ipfs backend: cat %s failed, error: %v", c, err)
		return false
	}
	return util.HashMatches(data, expectedHash)
}

func parseIPFSURI(uri string) (cid.Cid, error) {
	raw, err := trimScheme(uri, constants.URI_SCHEME_IPFS)
	if err != nil {
		return cid.Undef, err
	}
	c, err := cid.Decode(raw)
	if err != nil {
		return cid.Undef, fmt.Errorf("invalid cid in uri %q: %w", uri, err)
	}
	return c, nil
}
