package main

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/chaoschain/go-evidence-provider/internal/computing"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var storeCmd = &cli.Command{
	Name:      "store",
	Usage:     "Store an evidence payload through the node's storage chain",
	ArgsUsage: "[file]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "text",
			Usage: "store the given text instead of a file",
		},
		&cli.StringSliceFlag{
			Name:    "metadata",
			Aliases: []string{"m"},
			Usage:   "metadata entry as key=value, may be repeated",
		},
		&cli.StringFlag{
			Name:  "provider",
			Usage: "store on this provider only: 0g, mcs, ipfs or memory",
		},
	},
	Action: func(cctx *cli.Context) error {
		var text *string
		if cctx.IsSet("text") {
			value := cctx.String("text")
			text = &value
		}
		req, err := buildStoreReq(cctx.Args().First(), text, cctx.StringSlice("metadata"), cctx.String("provider"))
		if err != nil {
			return err
		}
		client, err := newApiClient(cctx)
		if err != nil {
			return err
		}

		var result models.StorageResult
		if err = client.post("/storage", req, &result); err != nil {
			return fmt.Errorf("store evidence failed, error: %v", err)
		}
		color.Green("stored on %s", result.Provider)
		fmt.Printf("uri:  %s\nhash: %s\n", result.URI, result.Hash)
		return nil
	},
}

var verifyCmd = &cli.Command{
	Name:      "verify",
	Usage:     "Check that the content at a uri still hashes to the expected value",
	ArgsUsage: "<uri> <hash>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("both uri and hash are required")
		}
		client, err := newApiClient(cctx)
		if err != nil {
			return err
		}

		query := url.Values{}
		query.Set("uri", cctx.Args().Get(0))
		query.Set("hash", cctx.Args().Get(1))
		var resp computing.VerifyResp
		if err = client.get("/storage/verify", query, &resp); err != nil {
			return fmt.Errorf("verify evidence failed, error: %v", err)
		}
		if resp.Valid {
			color.Green("valid: %s", resp.URI)
			return nil
		}
		color.Red("invalid: %s", resp.URI)
		return cli.Exit("", 1)
	},
}

// buildStoreReq takes a file path or text; an empty file or text stores a
// zero-length payload.
func buildStoreReq(file string, text *string, metadata []string, provider string) (*computing.StoreReq, error) {
	req := &computing.StoreReq{Provider: provider}
	switch {
	case text != nil && file != "":
		return nil, fmt.Errorf("pass either a file or --text, not both")
	case text != nil:
		req.Text = text
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s failed, error: %v", file, err)
		}
		encoded := base64.StdEncoding.EncodeToString(data)
		req.Data = &encoded
	default:
		return nil, fmt.Errorf("nothing to store, pass a file or --text")
	}

	if len(metadata) > 0 {
		req.Metadata = make(map[string]interface{}, len(metadata))
		for _, kv := range metadata {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("invalid metadata %q, expected key=value", kv)
			}
			req.Metadata[key] = value
		}
	}
	return req, nil
}
