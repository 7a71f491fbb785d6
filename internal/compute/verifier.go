package compute

import (
	"context"

	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/google/uuid"
)

// Verifier judges a receipt. A false result is an outcome, not a failure.
type Verifier interface {
	Verify(ctx context.Context, receipt *models.ExecutionReceipt) (verified bool, proof []byte)
}

type NoopVerifier struct{}

func (NoopVerifier) Verify(context.Context, *models.ExecutionReceipt) (bool, []byte) {
	return true, nil
}

// ReplayVerifier re-executes the request on a reference backend and accepts
// the receipt when both executions hash the same.
type ReplayVerifier struct {
	reference Backend
}

func NewReplayVerifier(reference Backend) *ReplayVerifier {
	return &ReplayVerifier{reference: reference}
}

func (v *ReplayVerifier) Verify(ctx context.Context, receipt *models.ExecutionReceipt) (bool, []byte) {
	if v.reference == nil || receipt == nil {
		return false, nil
	}
	sub, err := v.reference.Submit(ctx, &Request{
		ID:           uuid.NewString(),
		FunctionName: receipt.FunctionName,
		Input:        receipt.Input,
	})
	if err != nil || sub == nil {
		logs.GetLogger().Warnf("replay of %s on %s failed, error: %v", receipt.FunctionName, v.reference.Provider(), err)
		return false, nil
	}

	digest := util.ExecutionDigest(receipt.FunctionName, receipt.Input, sub.RawOutput)
	replayed := util.ExecutionHash(receipt.FunctionName, receipt.Input, sub.RawOutput)
	if replayed != receipt.ExecutionHash {
		logs.GetLogger().Warnf("replay diverged for %s, claimed: %s, replayed: %s", receipt.FunctionName, receipt.ExecutionHash, replayed)
		return false, digest
	}
	return true, digest
}

// DefaultVerifiers wires every method. attestation and reference may be nil,
// in which case the matching method is left out and selecting it fails at
// manager construction.
func DefaultVerifiers(attestation *AttestationVerifier, reference Backend) map[models.VerificationMethod]Verifier {
	verifiers := map[models.VerificationMethod]Verifier{
		models.VerificationNone: NoopVerifier{},
	}
	if attestation != nil {
		verifiers[models.VerificationTeeML] = attestation
	}
	if reference != nil {
		verifiers[models.VerificationOpML] = NewReplayVerifier(reference)
	}
	return verifiers
}
