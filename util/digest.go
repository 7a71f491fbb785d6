package util

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ContentHash is the provider independent integrity anchor of a stored payload.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashMatches reports whether data hashes to expected. Comparison ignores case
// and an optional 0x prefix.
func HashMatches(data []byte, expected string) bool {
	expected = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(expected)), "0x")
	if expected == "" {
		return false
	}
	return ContentHash(data) == expected
}

// ExecutionDigest binds a function name, its canonical input and the produced
// output. Every field is length prefixed so no two distinct triples collide.
func ExecutionDigest(functionName string, input, output []byte) []byte {
	var buf []byte
	for _, field := range [][]byte{[]byte(functionName), input, output} {
		var size [8]byte
		binary.BigEndian.PutUint64(size[:], uint64(len(field)))
		buf = append(buf, size[:]...)
		buf = append(buf, field...)
	}
	return crypto.Keccak256(buf)
}

func ExecutionHash(functionName string, input, output []byte) string {
	return hexutil.Encode(ExecutionDigest(functionName, input, output))
}
