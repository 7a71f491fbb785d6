package computing

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
)

const nodeKeyFile = "private_key"

// NodeIdentity is the node's secp256k1 key. It signs local attestations, so
// its address belongs in the attestation trust root of verifying peers.
type NodeIdentity struct {
	Key     *ecdsa.PrivateKey
	NodeID  string
	PeerID  string
	Address string
}

// LoadNodeIdentity reads the key under cpRepoPath, creating one on first run.
func LoadNodeIdentity(cpRepoPath string) (*NodeIdentity, error) {
	privateKeyPath := filepath.Join(cpRepoPath, nodeKeyFile)
	var privateKeyBytes []byte

	if _, err := os.Stat(privateKeyPath); err == nil {
		privateKeyBytes, err = os.ReadFile(privateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("error reading private key: %w", err)
		}
	} else {
		privateKeyBytes = make([]byte, 32)
		if _, err = rand.Read(privateKeyBytes); err != nil {
			return nil, fmt.Errorf("error generating random key: %w", err)
		}
		if err = os.MkdirAll(filepath.Dir(privateKeyPath), os.ModePerm); err != nil {
			return nil, fmt.Errorf("error creating directory for private key: %w", err)
		}
		if err = os.WriteFile(privateKeyPath, privateKeyBytes, 0600); err != nil {
			return nil, fmt.Errorf("error writing private key: %w", err)
		}
	}

	privateKey, err := crypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("error converting private key bytes: %w", err)
	}
	return &NodeIdentity{
		Key:     privateKey,
		NodeID:  hex.EncodeToString(crypto.FromECDSAPub(&privateKey.PublicKey)),
		PeerID:  hashPublicKey(&privateKey.PublicKey),
		Address: crypto.PubkeyToAddress(privateKey.PublicKey).String(),
	}, nil
}

func hashPublicKey(publicKey *ecdsa.PublicKey) string {
	publicKeyBytes := crypto.FromECDSAPub(publicKey)
	hash := sha256.Sum256(publicKeyBytes)
	return hex.EncodeToString(hash[:])
}
