package initializer

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/chaoschain/go-evidence-provider/conf"
	"github.com/chaoschain/go-evidence-provider/constants"
	"github.com/chaoschain/go-evidence-provider/internal/compute"
	"github.com/chaoschain/go-evidence-provider/internal/computing"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/internal/storage"
	"github.com/chaoschain/go-evidence-provider/internal/yaml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/gomodule/redigo/redis"
)

const enclaveMeasurement = "evidence-provider/local"

// Node is everything a running provider needs, built once from config.
type Node struct {
	Identity  *computing.NodeIdentity
	Storage   *storage.Manager
	Compute   *compute.Manager
	Celery    *computing.CeleryService
	RedisPool *redis.Pool
	Receipts  computing.ReceiptLog

	closers []func()
}

func (n *Node) Close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		n.closers[i]()
	}
}

func ProjectInit(cpRepoPath string) (*Node, error) {
	if err := conf.InitConfig(cpRepoPath); err != nil {
		return nil, err
	}
	cfg := conf.GetConfig()

	identity, err := computing.LoadNodeIdentity(cpRepoPath)
	if err != nil {
		return nil, err
	}
	logs.GetLogger().Infof("Node ID :%s Peer ID:%s address:%s", identity.NodeID, identity.PeerID, identity.Address)

	node := &Node{Identity: identity}
	node.RedisPool = computing.NewRedisPool(cfg.API.RedisUrl, cfg.API.RedisPassword)
	node.closers = append(node.closers, func() { node.RedisPool.Close() })
	node.Receipts = computing.NewRedisReceiptLog(node.RedisPool)

	if node.Celery, err = computing.NewCeleryService(node.RedisPool, 10); err != nil {
		node.Close()
		return nil, err
	}

	storageManager, closers, err := BuildStorage(cfg)
	node.closers = append(node.closers, closers...)
	if err != nil {
		node.Close()
		return nil, err
	}
	node.Storage = storageManager

	enclave, err := compute.NewEnclave(identity.Key, enclaveMeasurement)
	if err != nil {
		node.Close()
		return nil, err
	}
	worker := compute.NewLocalBackend(compute.BuiltinRegistry(), enclave)
	node.Celery.RegisterTask(constants.TASK_EXECUTE, computing.NewExecuteTask(worker, time.Duration(cfg.Compute.TimeoutSeconds)*time.Second))

	catalog, err := loadCatalog(cpRepoPath, cfg.Compute.FunctionCatalog)
	if err != nil {
		node.Close()
		return nil, err
	}
	node.Compute, err = BuildCompute(cfg, &backendFactory{
		cfg:     cfg,
		repo:    cpRepoPath,
		catalog: catalog,
		local:   worker,
		celery:  node.Celery,
	}, identity)
	if err != nil {
		node.Close()
		return nil, err
	}
	return node, nil
}

// BuildStorage constructs the configured chain. Providers after the primary
// that lack configuration are skipped with a warning.
func BuildStorage(cfg *conf.ProviderNode) (*storage.Manager, []func(), error) {
	primary, err := models.ParseStorageProvider(cfg.Storage.Primary)
	if err != nil {
		return nil, nil, err
	}
	fallbacks := models.DefaultStorageChain
	if len(cfg.Storage.Fallbacks) > 0 {
		fallbacks = nil
		for _, f := range cfg.Storage.Fallbacks {
			p, err := models.ParseStorageProvider(f)
			if err != nil {
				return nil, nil, err
			}
			fallbacks = append(fallbacks, p)
		}
	}

	var backends []storage.Backend
	var closers []func()
	for i, provider := range storage.OrderChain(primary, fallbacks) {
		backend, closer, err := newStorageBackend(provider, cfg)
		if err != nil {
			if i == 0 {
				return nil, closers, fmt.Errorf("primary storage provider %s: %w", provider, err)
			}
			logs.GetLogger().Warnf("skip storage provider %s, error: %v", provider, err)
			continue
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		backends = append(backends, backend)
	}

	manager, err := storage.NewManager(storage.Config{
		AttemptTimeout: time.Duration(cfg.Storage.AttemptTimeoutSeconds) * time.Second,
	}, backends...)
	if err != nil {
		return nil, closers, err
	}
	logs.GetLogger().Infof("storage chain: %v", manager.Providers())
	return manager, closers, nil
}

func newStorageBackend(provider models.StorageProvider, cfg *conf.ProviderNode) (storage.Backend, func(), error) {
	switch provider {
	case models.StorageZeroG:
		b, err := storage.NewZeroGBackend(cfg.ZeroG.IndexerUrl, cfg.ZeroG.ApiKey)
		return b, nil, err
	case models.StorageMCS:
		b, err := storage.NewMCSBackend(storage.MCSConfig{
			ApiKey:        cfg.MCS.ApiKey,
			AccessToken:   cfg.MCS.AccessToken,
			Network:       cfg.MCS.Network,
			BucketName:    cfg.MCS.BucketName,
			FileCachePath: cfg.MCS.FileCachePath,
			GatewayUrl:    cfg.MCS.GatewayUrl,
		})
		return b, nil, err
	case models.StorageIPFS:
		b, err := storage.NewIPFSBackend(cfg.IPFS.ApiUrl)
		return b, nil, err
	case models.StorageMemory:
		b, err := storage.NewMemoryBackend()
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage provider: %q", provider)
}

// BackendFactory builds compute backends by provider name.
type BackendFactory interface {
	Backend(provider models.ComputeProvider) (compute.Backend, error)
}

type backendFactory struct {
	cfg     *conf.ProviderNode
	repo    string
	catalog *yaml.Catalog
	local   *compute.LocalBackend
	celery  *computing.CeleryService
}

func (f *backendFactory) Backend(provider models.ComputeProvider) (compute.Backend, error) {
	switch provider {
	case models.ComputeLocal:
		return f.local, nil
	case models.ComputeZeroG:
		return compute.NewZeroGBackend(f.cfg.ZeroG.ComputeBrokerUrl, f.cfg.ZeroG.ApiKey)
	case models.ComputeCelery:
		if f.celery == nil {
			return nil, fmt.Errorf("celery service is not running")
		}
		return compute.NewCeleryBackend(f.celery.Dispatcher())
	case models.ComputeDocker:
		return compute.NewDockerBackend(f.catalog)
	case models.ComputeK8s:
		return compute.NewK8sBackend(f.cfg.Compute.K8sNamespace, f.catalog)
	case models.ComputeWasm:
		dir := f.cfg.Compute.WasmModuleDir
		if dir != "" && !filepath.IsAbs(dir) {
			dir = filepath.Join(f.repo, dir)
		}
		return compute.NewWasmBackend(dir, f.catalog)
	}
	return nil, fmt.Errorf("unknown compute provider: %q", provider)
}

// BuildCompute constructs the compute manager. Without configured trust
// roots the node's own key is the only root.
func BuildCompute(cfg *conf.ProviderNode, factory BackendFactory, identity *computing.NodeIdentity) (*compute.Manager, error) {
	provider, err := models.ParseComputeProvider(cfg.Compute.Primary)
	if err != nil {
		return nil, err
	}
	method, err := models.ParseVerificationMethod(cfg.Compute.VerificationMethod)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", compute.ErrUnknownVerificationMethod, err)
	}
	backend, err := factory.Backend(provider)
	if err != nil {
		return nil, fmt.Errorf("compute provider %s: %w", provider, err)
	}

	policy, err := buildPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	var attestation *compute.AttestationVerifier
	var reference compute.Backend
	switch method {
	case models.VerificationTeeML:
		roots, err := compute.ParseAttestationRoots(cfg.Compute.AttestationRoots)
		if err != nil {
			return nil, err
		}
		if len(roots) == 0 && identity != nil {
			roots = append(roots, common.HexToAddress(identity.Address))
		}
		if attestation, err = compute.NewAttestationVerifier(roots...); err != nil {
			return nil, err
		}
	case models.VerificationOpML:
		referenceProvider := models.ComputeLocal
		if cfg.Compute.ReferenceProvider != "" {
			if referenceProvider, err = models.ParseComputeProvider(cfg.Compute.ReferenceProvider); err != nil {
				return nil, err
			}
		}
		if referenceProvider == provider {
			return nil, fmt.Errorf("op-ml reference provider must differ from the primary (%s)", provider)
		}
		if reference, err = factory.Backend(referenceProvider); err != nil {
			return nil, fmt.Errorf("reference provider %s: %w", referenceProvider, err)
		}
	}

	return compute.NewManager(compute.Config{
		Method:  method,
		Timeout: time.Duration(cfg.Compute.TimeoutSeconds) * time.Second,
		Policy:  policy,
	}, backend, compute.DefaultVerifiers(attestation, reference))
}

func buildPolicy(overrides []conf.Policy) (compute.PolicyTable, error) {
	policy := compute.DefaultPolicy()
	for _, o := range overrides {
		method, err := models.ParseVerificationMethod(o.Method)
		if err != nil {
			return nil, fmt.Errorf("policy: %w", err)
		}
		policy = policy.Override(method, compute.PolicyEntry{Multiplier: o.Multiplier, BonusEligible: o.BonusEligible})
	}
	return policy, nil
}

func loadCatalog(cpRepoPath, path string) (*yaml.Catalog, error) {
	if path == "" {
		return nil, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cpRepoPath, path)
	}
	catalog, err := yaml.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("function catalog: %w", err)
	}
	logs.GetLogger().Infof("loaded %d functions from %s", len(catalog.Names()), path)
	return catalog, nil
}
