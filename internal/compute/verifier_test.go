package compute

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopVerifier(t *testing.T) {
	verified, proof := NoopVerifier{}.Verify(context.Background(), &models.ExecutionReceipt{})
	assert.True(t, verified)
	assert.Nil(t, proof)
}

func TestReplayVerifierAcceptsIdenticalExecution(t *testing.T) {
	reference := NewLocalBackend(BuiltinRegistry(), nil)
	mgr, err := NewManager(Config{Method: models.VerificationOpML},
		NewLocalBackend(BuiltinRegistry(), nil), DefaultVerifiers(nil, reference))
	require.NoError(t, err)

	result, err := mgr.ExecuteWithIntegrityProof(context.Background(), nil, "double", 21)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.False(t, result.ReputationBonus)
	assert.Equal(t, 1.0, result.ReputationMultiplier)
	assert.Equal(t, util.ExecutionDigest("double", []byte("21"), []byte("42")), result.Proof)
}

func TestReplayVerifierRejectsDivergence(t *testing.T) {
	lying := NewRegistry()
	lying.Register("double", func(context.Context, json.RawMessage) (interface{}, error) { return 43, nil })

	verifier := NewReplayVerifier(NewLocalBackend(BuiltinRegistry(), nil))
	mgr, err := NewManager(Config{Method: models.VerificationOpML}, NewLocalBackend(lying, nil),
		map[models.VerificationMethod]Verifier{models.VerificationOpML: verifier})
	require.NoError(t, err)

	result, err := mgr.ExecuteWithIntegrityProof(context.Background(), nil, "double", 21)
	require.NoError(t, err)
	assert.Equal(t, json.Number("43"), result.Output)
	assert.False(t, result.Verified)
	assert.Equal(t, util.ExecutionDigest("double", []byte("21"), []byte("42")), result.Proof)
}

func TestReplayVerifierReferenceFailure(t *testing.T) {
	verifier := NewReplayVerifier(NewLocalBackend(NewRegistry(), nil))
	verified, proof := verifier.Verify(context.Background(), &models.ExecutionReceipt{
		FunctionName: "unregistered", Input: []byte("1"), ExecutionHash: "0x00",
	})
	assert.False(t, verified)
	assert.Nil(t, proof)
}
