package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chaoschain/go-evidence-provider/conf"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/urfave/cli/v2"
)

// apiClient talks to a running node.
type apiClient struct {
	ctx     context.Context
	baseURL string
	client  *http.Client
}

type apiResp struct {
	util.BasicResponse
	Data json.RawMessage `json:"data"`
}

func newApiClient(cctx *cli.Context) (*apiClient, error) {
	base := cctx.String(FlagApi)
	if base == "" {
		if err := conf.InitConfig(repoPath(cctx)); err != nil {
			return nil, fmt.Errorf("load config file failed, error: %+v", err)
		}
		base = "http://127.0.0.1:" + strconv.Itoa(conf.GetConfig().API.Port)
	}
	return &apiClient{
		ctx:     util.ReqContext(cctx.Context),
		baseURL: strings.TrimRight(base, "/") + "/api/v1",
		client:  &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

func (a *apiClient) get(path string, query url.Values, out interface{}) error {
	target := a.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(a.ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request failed: %v", err)
	}
	return a.do(req, out)
}

func (a *apiClient) post(path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(a.ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, out)
}

func (a *apiClient) do(req *http.Request, out interface{}) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %v", err)
	}
	var r apiResp
	if err = json.Unmarshal(body, &r); err != nil {
		return fmt.Errorf("failed to parse JSON: %v", err)
	}
	if r.Code != util.SuccessCode {
		return fmt.Errorf("node returned code %d: %s", r.Code, r.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(r.Data, out)
}
