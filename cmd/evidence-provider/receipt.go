package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chaoschain/go-evidence-provider/conf"
	"github.com/chaoschain/go-evidence-provider/internal/computing"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

var receiptCmd = &cli.Command{
	Name:  "receipt",
	Usage: "Inspect logged execution receipts",
	Subcommands: []*cli.Command{
		receiptList,
		receiptGet,
	},
}

var receiptList = &cli.Command{
	Name:  "list",
	Usage: "List execution receipts",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Usage:   "--verbose",
			Aliases: []string{"v"},
		},
	},
	Action: func(cctx *cli.Context) error {
		receipts, err := openReceiptLog(cctx)
		if err != nil {
			return err
		}
		summaries, err := receipts.List()
		if err != nil {
			return fmt.Errorf("failed list receipts, error: %+v", err)
		}
		header, data, rowColor := receiptRows(summaries, cctx.Bool("verbose"))
		NewVisualTable(header, data, rowColor).Generate()
		return nil
	},
}

var receiptGet = &cli.Command{
	Name:      "get",
	Usage:     "Show one execution receipt",
	ArgsUsage: "<execution_hash>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("execution_hash is required")
		}
		receipts, err := openReceiptLog(cctx)
		if err != nil {
			return err
		}
		summary, err := receipts.Get(cctx.Args().First())
		if errors.Is(err, computing.ErrReceiptNotFound) {
			return fmt.Errorf("no receipt for %s", cctx.Args().First())
		}
		if err != nil {
			return fmt.Errorf("failed get receipt, error: %+v", err)
		}
		header, data, rowColor := receiptRows([]models.ReceiptSummary{*summary}, true)
		NewVisualTable(header, data, rowColor).Generate()
		return nil
	},
}

func openReceiptLog(cctx *cli.Context) (computing.ReceiptLog, error) {
	if err := conf.InitConfig(repoPath(cctx)); err != nil {
		return nil, fmt.Errorf("load config file failed, error: %+v", err)
	}
	api := conf.GetConfig().API
	return computing.NewRedisReceiptLog(computing.NewRedisPool(api.RedisUrl, api.RedisPassword)), nil
}

func receiptRows(summaries []models.ReceiptSummary, verbose bool) ([]string, [][]string, []RowColor) {
	header := []string{"EXECUTION HASH", "FUNCTION", "PROVIDER", "METHOD", "VERIFIED", "REPUTATION", "TIME"}
	if verbose {
		header = append(header, "PROOF", "OUTPUT")
	}

	var data [][]string
	var rowColor []RowColor
	for i, s := range summaries {
		hash := s.ExecutionHash
		if !verbose && len(hash) > 18 {
			hash = hash[:18] + "..."
		}
		row := []string{
			hash,
			s.FunctionName,
			string(s.Provider),
			string(s.Method),
			strconv.FormatBool(s.Verified),
			strconv.FormatFloat(s.ReputationMultiplier, 'f', 2, 64),
			time.Unix(s.Timestamp, 0).Format("2006-01-02 15:04:05"),
		}
		if verbose {
			row = append(row, s.Proof, s.Output)
		}
		data = append(data, row)
		rowColor = append(rowColor, RowColor{
			row:    i,
			column: []int{4},
			color:  []tablewriter.Colors{verifiedColor(s.Verified)},
		})
	}
	return header, data, rowColor
}
