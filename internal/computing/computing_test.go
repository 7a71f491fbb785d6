package computing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chaoschain/go-evidence-provider/internal/compute"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNodeIdentityIsStable(t *testing.T) {
	repo := t.TempDir()
	first, err := LoadNodeIdentity(repo)
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(first.Address))
	assert.Len(t, first.PeerID, 64)

	info, err := os.Stat(filepath.Join(repo, nodeKeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadNodeIdentity(repo)
	require.NoError(t, err)
	assert.Equal(t, first.Address, second.Address)
	assert.Equal(t, first.NodeID, second.NodeID)
}

func TestLoadNodeIdentityRejectsCorruptKey(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, nodeKeyFile), []byte("short"), 0600))
	_, err := LoadNodeIdentity(repo)
	assert.Error(t, err)
}

func TestExecuteTaskEnvelope(t *testing.T) {
	identity, err := LoadNodeIdentity(t.TempDir())
	require.NoError(t, err)
	enclave, err := compute.NewEnclave(identity.Key, "node")
	require.NoError(t, err)
	task := NewExecuteTask(compute.NewLocalBackend(compute.BuiltinRegistry(), enclave), time.Second)

	var reply compute.TaskEnvelope
	require.NoError(t, json.Unmarshal([]byte(task("double", "21")), &reply))
	assert.Empty(t, reply.Error)
	assert.Equal(t, json.RawMessage("42"), reply.Output)

	var report compute.AttestationReport
	require.NoError(t, json.Unmarshal(reply.Attestation, &report))
	assert.Equal(t, identity.Address, report.Signer)

	require.NoError(t, json.Unmarshal([]byte(task("missing", "1")), &reply))
	assert.Contains(t, reply.Error, "unknown function")
}

func TestReceiptFields(t *testing.T) {
	summary := models.ReceiptSummary{
		ExecutionHash:        "0xabc",
		FunctionName:         "double",
		Provider:             models.ComputeCelery,
		Method:               models.VerificationTeeML,
		Verified:             true,
		ReputationBonus:      true,
		ReputationMultiplier: 1.5,
		Proof:                "0x01",
		Output:               "42",
		Timestamp:            1700000000,
	}
	parsed, err := parseReceiptFields(receiptFields(summary))
	require.NoError(t, err)
	assert.Equal(t, summary, *parsed)

	fields := receiptFields(summary)
	fields["verified"] = "maybe"
	_, err = parseReceiptFields(fields)
	assert.Error(t, err)

	assert.Equal(t, "RECEIPT:0xabc", receiptKey("0xABC"))
}
