package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/chaoschain/go-evidence-provider/build"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const (
	FlagRepo = "repo"
	FlagApi  = "api"
)

func main() {
	app := &cli.App{
		Name:                 "evidence-provider",
		Usage:                "An evidence provider stores agent evidence with content-hash integrity across storage networks and runs verifiable compute with attestation or re-execution proofs.",
		EnableBashCompletion: true,
		Version:              build.UserVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    FlagRepo,
				EnvVars: []string{"EP_PATH"},
				Usage:   "evidence provider repo path",
				Value:   "~/.evidence-provider",
			},
			&cli.StringFlag{
				Name:    FlagApi,
				EnvVars: []string{"EP_API"},
				Usage:   "node api address, defaults to the port in config.toml on localhost",
			},
		},
		Before: func(cctx *cli.Context) error {
			if err := godotenv.Load(".env"); err == nil {
				logs.GetLogger().Debug("loaded environment from .env")
			}
			return nil
		},
		Commands: []*cli.Command{
			runCmd,
			storeCmd,
			verifyCmd,
			execCmd,
			receiptCmd,
		},
	}
	app.Setup()

	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func repoPath(cctx *cli.Context) string {
	path := cctx.String(FlagRepo)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
