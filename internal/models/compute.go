package models

import (
	"encoding/hex"
	"encoding/json"
	"time"
)

type ExecutionReceipt struct {
	Provider      ComputeProvider `json:"provider"`
	FunctionName  string          `json:"function_name"`
	Input         json.RawMessage `json:"input"`
	RawOutput     []byte          `json:"raw_output"`
	Attestation   []byte          `json:"attestation,omitempty"`
	ExecutionHash string          `json:"execution_hash"`
	Timestamp     time.Time       `json:"timestamp"`
}

type VerificationOutcome struct {
	Method               VerificationMethod `json:"verification_method"`
	Verified             bool               `json:"verified"`
	Proof                []byte             `json:"proof,omitempty"`
	ReputationBonus      bool               `json:"reputation_bonus"`
	ReputationMultiplier float64            `json:"reputation_multiplier"`
}

// ComputeResult is returned whether or not verification succeeded; an
// unverified result is still a usable result.
type ComputeResult struct {
	ExecutionReceipt
	VerificationOutcome
	Output interface{} `json:"output"`
}

// ReceiptSummary is the persisted view of a ComputeResult.
type ReceiptSummary struct {
	ExecutionHash        string             `json:"execution_hash"`
	FunctionName         string             `json:"function_name"`
	Provider             ComputeProvider    `json:"provider"`
	Method               VerificationMethod `json:"verification_method"`
	Verified             bool               `json:"verified"`
	ReputationBonus      bool               `json:"reputation_bonus"`
	ReputationMultiplier float64            `json:"reputation_multiplier"`
	Proof                string             `json:"proof"`
	Output               string             `json:"output"`
	Timestamp            int64              `json:"timestamp"`
}

func NewReceiptSummary(result *ComputeResult) ReceiptSummary {
	var proof string
	if len(result.Proof) > 0 {
		proof = "0x" + hex.EncodeToString(result.Proof)
	}
	return ReceiptSummary{
		ExecutionHash:        result.ExecutionHash,
		FunctionName:         result.FunctionName,
		Provider:             result.Provider,
		Method:               result.Method,
		Verified:             result.Verified,
		ReputationBonus:      result.ReputationBonus,
		ReputationMultiplier: result.ReputationMultiplier,
		Proof:                proof,
		Output:               string(result.RawOutput),
		Timestamp:            result.Timestamp.Unix(),
	}
}
