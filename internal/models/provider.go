package models

import "fmt"

type StorageProvider string

const (
	StorageZeroG  StorageProvider = "0g"     // distributed storage network
	StorageMCS    StorageProvider = "mcs"    // pinning service bucket
	StorageIPFS   StorageProvider = "ipfs"   // local ipfs daemon
	StorageMemory StorageProvider = "memory" // in-process, non-durable
)

// DefaultStorageChain is the fallback precedence used when only a primary is configured.
var DefaultStorageChain = []StorageProvider{StorageZeroG, StorageMCS, StorageIPFS, StorageMemory}

func ParseStorageProvider(s string) (StorageProvider, error) {
	switch p := StorageProvider(s); p {
	case StorageZeroG, StorageMCS, StorageIPFS, StorageMemory:
		return p, nil
	}
	return "", fmt.Errorf("unknown storage provider: %q", s)
}

type ComputeProvider string

const (
	ComputeZeroG  ComputeProvider = "0g" // distributed compute network
	ComputeCelery ComputeProvider = "celery"
	ComputeDocker ComputeProvider = "docker"
	ComputeK8s    ComputeProvider = "k8s"
	ComputeWasm   ComputeProvider = "wasm"
	ComputeLocal  ComputeProvider = "local"
)

func ParseComputeProvider(s string) (ComputeProvider, error) {
	switch p := ComputeProvider(s); p {
	case ComputeZeroG, ComputeCelery, ComputeDocker, ComputeK8s, ComputeWasm, ComputeLocal:
		return p, nil
	}
	return "", fmt.Errorf("unknown compute provider: %q", s)
}

type VerificationMethod string

const (
	VerificationNone  VerificationMethod = "none"
	VerificationTeeML VerificationMethod = "tee-ml" // trusted execution attestation
	VerificationOpML  VerificationMethod = "op-ml"  // optimistic re-execution
)

func ParseVerificationMethod(s string) (VerificationMethod, error) {
	switch m := VerificationMethod(s); m {
	case VerificationNone, VerificationTeeML, VerificationOpML:
		return m, nil
	}
	return "", fmt.Errorf("unknown verification method: %q", s)
}

type HostInfo struct {
	ProviderVersion string             `json:"provider_version"`
	NodeName        string             `json:"node_name"`
	NodeAddress     string             `json:"node_address"`
	OperatingSystem string             `json:"operating_system"`
	Architecture    string             `json:"architecture"`
	CPUCores        int                `json:"cpu_cores"`
	StorageChain    []StorageProvider  `json:"storage_chain"`
	ComputeProvider ComputeProvider    `json:"compute_provider"`
	Verification    VerificationMethod `json:"verification_method"`
}
