package compute

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
)

// AttestationReport is what an enclave signs over an execution.
type AttestationReport struct {
	Signer      string `json:"signer"`
	Measurement string `json:"measurement"`
	Signature   string `json:"signature"`
}

func attestationDigest(executionHash, measurement string) []byte {
	return crypto.Keccak256(hashBytes(executionHash), []byte(measurement))
}

func hashBytes(executionHash string) []byte {
	if b, err := hexutil.Decode(executionHash); err == nil {
		return b
	}
	return []byte(executionHash)
}

// Enclave signs attestation reports with a secp256k1 key.
type Enclave struct {
	key         *ecdsa.PrivateKey
	measurement string
}

func NewEnclave(key *ecdsa.PrivateKey, measurement string) (*Enclave, error) {
	if key == nil {
		return nil, fmt.Errorf("enclave key is nil")
	}
	return &Enclave{key: key, measurement: measurement}, nil
}

func (e *Enclave) Address() common.Address {
	return crypto.PubkeyToAddress(e.key.PublicKey)
}

func (e *Enclave) Attest(functionName string, input, output []byte) ([]byte, error) {
	executionHash := util.ExecutionHash(functionName, input, output)
	sig, err := crypto.Sign(attestationDigest(executionHash, e.measurement), e.key)
	if err != nil {
		return nil, fmt.Errorf("sign attestation: %w", err)
	}
	return json.Marshal(AttestationReport{
		Signer:      e.Address().Hex(),
		Measurement: e.measurement,
		Signature:   hexutil.Encode(sig),
	})
}

// AttestationVerifier accepts receipts whose report is signed over the
// receipt's execution hash by a key in the trust root.
type AttestationVerifier struct {
	roots map[common.Address]struct{}
}

func NewAttestationVerifier(roots ...common.Address) (*AttestationVerifier, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("attestation trust root is empty")
	}
	set := make(map[common.Address]struct{}, len(roots))
	for _, root := range roots {
		set[root] = struct{}{}
	}
	return &AttestationVerifier{roots: set}, nil
}

// ParseAttestationRoots turns configured hex addresses into a trust root.
func ParseAttestationRoots(addresses []string) ([]common.Address, error) {
	roots := make([]common.Address, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid attestation root %q", addr)
		}
		roots = append(roots, common.HexToAddress(addr))
	}
	return roots, nil
}

func (v *AttestationVerifier) Verify(_ context.Context, receipt *models.ExecutionReceipt) (bool, []byte) {
	if receipt == nil || len(receipt.Attestation) == 0 {
		return false, nil
	}
	var report AttestationReport
	if err := json.Unmarshal(receipt.Attestation, &report); err != nil {
		logs.GetLogger().Warnf("malformed attestation for %s: %v", receipt.ExecutionHash, err)
		return false, nil
	}
	if !common.IsHexAddress(report.Signer) {
		return false, nil
	}
	signer := common.HexToAddress(report.Signer)
	if _, trusted := v.roots[signer]; !trusted {
		logs.GetLogger().Warnf("attestation signer %s is not a trust root", signer.Hex())
		return false, nil
	}

	sig, err := hexutil.Decode(report.Signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false, nil
	}
	pub, err := crypto.SigToPub(attestationDigest(receipt.ExecutionHash, report.Measurement), sig)
	if err != nil {
		return false, nil
	}
	if crypto.PubkeyToAddress(*pub) != signer {
		logs.GetLogger().Warnf("attestation for %s does not match the execution", receipt.ExecutionHash)
		return false, nil
	}
	return true, crypto.Keccak256(hashBytes(receipt.ExecutionHash), sig)
}
