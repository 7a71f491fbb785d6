package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chaoschain/go-evidence-provider/internal/computing"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

var execCmd = &cli.Command{
	Name:      "exec",
	Usage:     "Run a function on the node's compute backend and show its receipt",
	ArgsUsage: "<function_name> [json_data]",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() < 1 {
			return fmt.Errorf("function_name is required")
		}
		req := computing.ExecuteReq{FunctionName: cctx.Args().Get(0)}
		if raw := cctx.Args().Get(1); raw != "" {
			if !json.Valid([]byte(raw)) {
				return fmt.Errorf("data must be valid JSON")
			}
			req.Data = json.RawMessage(raw)
		}

		client, err := newApiClient(cctx)
		if err != nil {
			return err
		}
		var result models.ComputeResult
		if err = client.post("/compute/execute", req, &result); err != nil {
			return fmt.Errorf("execute %s failed, error: %v", req.FunctionName, err)
		}

		output, _ := json.Marshal(result.Output)
		var proof string
		if len(result.Proof) > 0 {
			proof = "0x" + hex.EncodeToString(result.Proof)
		}
		data := [][]string{
			{"FUNCTION", result.FunctionName},
			{"PROVIDER", string(result.Provider)},
			{"OUTPUT", string(output)},
			{"EXECUTION HASH", result.ExecutionHash},
			{"METHOD", string(result.Method)},
			{"VERIFIED", strconv.FormatBool(result.Verified)},
			{"PROOF", proof},
			{"REPUTATION", strconv.FormatFloat(result.ReputationMultiplier, 'f', 2, 64)},
		}
		rowColor := []RowColor{{row: 5, column: []int{1}, color: []tablewriter.Colors{verifiedColor(result.Verified)}}}
		NewVisualTable([]string{"FIELD", "VALUE"}, data, rowColor).Generate()
		return nil
	},
}
