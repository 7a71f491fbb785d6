package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/filswan/go-mcs-sdk/mcs/api/bucket"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend(t *testing.T) {
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	data := []byte(`{"agent_id":1,"action":"data_analysis"}`)
	uri, hash, err := backend.Put(ctx, data, nil)
	require.NoError(t, err)
	assert.True(t, backend.Owns(uri))
	assert.Equal(t, util.ContentHash(data), hash)
	assert.True(t, backend.GetAndVerify(ctx, uri, hash))

	// overwrite the stored bytes under the same key
	require.NoError(t, backend.db.Put([]byte(hash), []byte("tampered"), nil))
	assert.False(t, backend.GetAndVerify(ctx, uri, hash))

	assert.False(t, backend.GetAndVerify(ctx, "mem://missing", hash))
}

// fakeIndexer mimics the 0g indexer upload/download endpoints.
type fakeIndexer struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func (f *fakeIndexer) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeIndexer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		http.Error(w, "node syncing", http.StatusServiceUnavailable)
		return
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/files":
		data, _ := io.ReadAll(r.Body)
		root := "0x" + util.ContentHash(data)
		f.mu.Lock()
		f.objects[root] = data
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(zeroGUploadResp{Root: root, TxHash: "0xabc"})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/files/"):
		f.mu.Lock()
		data, ok := f.objects[strings.TrimPrefix(r.URL.Path, "/v1/files/")]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

func TestZeroGBackend(t *testing.T) {
	indexer := &fakeIndexer{objects: make(map[string][]byte)}
	server := httptest.NewServer(indexer)
	defer server.Close()

	backend, err := NewZeroGBackend(server.URL, "token")
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("Hello from ChaosChain x 0G!")
	uri, hash, err := backend.Put(ctx, data, map[string]interface{}{"type": "evidence_package"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "0g://0x"))
	assert.True(t, backend.GetAndVerify(ctx, uri, hash))
	assert.False(t, backend.GetAndVerify(ctx, uri, util.ContentHash([]byte("other"))))
	assert.False(t, backend.GetAndVerify(ctx, "0g://0xmissing", hash))

	indexer.setFail(true)
	_, _, err = backend.Put(ctx, data, nil)
	assert.Error(t, err)
}

func TestZeroGFallsBackToMemory(t *testing.T) {
	indexer := &fakeIndexer{objects: make(map[string][]byte), fail: true}
	server := httptest.NewServer(indexer)
	defer server.Close()

	zerog, err := NewZeroGBackend(server.URL, "")
	require.NoError(t, err)
	memory, err := NewMemoryBackend()
	require.NoError(t, err)
	defer memory.Close()

	mgr, err := NewManager(Config{}, zerog, memory)
	require.NoError(t, err)

	result := mgr.Store(context.Background(), []byte("evidence"), nil)
	require.True(t, result.Success)
	assert.Equal(t, memory.Provider(), result.Provider)
	assert.True(t, mgr.Verify(context.Background(), result.URI, result.Hash))
}

func TestParseMCSURI(t *testing.T) {
	bucketName, objectName, err := parseMCSURI("mcs://evidence-bucket/evidence/abc.bin")
	require.NoError(t, err)
	assert.Equal(t, "evidence-bucket", bucketName)
	assert.Equal(t, "evidence/abc.bin", objectName)

	_, _, err = parseMCSURI("mcs://bucket-only")
	assert.Error(t, err)
	_, _, err = parseMCSURI("ipfs://bafy")
	assert.Error(t, err)
}

func TestIPFSBackendRejectsInvalidCid(t *testing.T) {
	backend, err := NewIPFSBackend("127.0.0.1:5001")
	require.NoError(t, err)
	assert.True(t, backend.Owns("ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"))
	assert.False(t, backend.Owns("mem://abc"))
	assert.False(t, backend.GetAndVerify(context.Background(), "ipfs://not-a-cid", "00"))

	c, err := parseIPFSURI("ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")
	require.NoError(t, err)
	assert.Equal(t, "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", c.String())
}

// fakeBucket stands in for the mcs bucket api.
type fakeBucket struct {
	objects   map[string]*bucket.OssFile
	uploadErr error
	uploads   int
}

func (f *fakeBucket) GetFile(_, objectName string) (*bucket.OssFile, error) {
	file, ok := f.objects[objectName]
	if !ok {
		return nil, errors.New("record not found")
	}
	return file, nil
}

func (f *fakeBucket) UploadFile(_, objectName, filePath string, _ bool) error {
	f.uploads++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	f.objects[objectName] = &bucket.OssFile{PayloadCid: "cid-" + util.ContentHash(data)}
	return nil
}

func TestStoreObjectKeepsExistingObject(t *testing.T) {
	file := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(file, []byte("evidence"), 0644))
	fake := &fakeBucket{objects: make(map[string]*bucket.OssFile)}

	first, err := storeObject(fake, "evidence", "evidence/a.bin", file)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.uploads)

	// a second store of the same bytes must not touch the pinned object,
	// even when the upload path is broken
	fake.uploadErr = errors.New("upload timed out")
	second, err := storeObject(fake, "evidence", "evidence/a.bin", file)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.uploads)
	assert.Equal(t, first.PayloadCid, second.PayloadCid)

	_, err = storeObject(fake, "evidence", "evidence/b.bin", file)
	assert.ErrorContains(t, err, "upload timed out")
	assert.Contains(t, fake.objects, "evidence/a.bin")
}

func TestMCSBackendVerifyThroughGateway(t *testing.T) {
	data := []byte(`{"agent_id":7}`)
	var mu sync.Mutex
	pinned := map[string][]byte{"cid-1": data}
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		content, ok := pinned[strings.TrimPrefix(r.URL.Path, "/ipfs/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(content)
	}))
	defer gateway.Close()

	backend, err := NewMCSBackend(MCSConfig{ApiKey: "key", BucketName: "evidence", GatewayUrl: gateway.URL + "/", FileCachePath: t.TempDir()})
	require.NoError(t, err)
	backend.lookup = func(bucketName, objectName string) (string, error) {
		if bucketName == "evidence" && objectName == "evidence/a.bin" {
			return "cid-1", nil
		}
		return "", errors.New("record not found")
	}
	ctx := context.Background()
	hash := util.ContentHash(data)

	assert.True(t, backend.Owns("mcs://evidence/evidence/a.bin"))
	assert.True(t, backend.GetAndVerify(ctx, "mcs://evidence/evidence/a.bin", hash))
	assert.True(t, backend.GetAndVerify(ctx, "mcs://evidence/evidence/a.bin", hash))
	assert.False(t, backend.GetAndVerify(ctx, "mcs://evidence/evidence/a.bin", util.ContentHash([]byte("x"))))
	assert.False(t, backend.GetAndVerify(ctx, "mcs://evidence/evidence/missing.bin", hash))
	assert.False(t, backend.GetAndVerify(ctx, "mcs://bucket-only", hash))

	mu.Lock()
	pinned["cid-1"] = []byte("tampered")
	mu.Unlock()
	assert.False(t, backend.GetAndVerify(ctx, "mcs://evidence/evidence/a.bin", hash))
}

// fakeIPFSDaemon serves the add and cat commands of the ipfs http api.
type fakeIPFSDaemon struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeIPFSDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v0/add":
		mr, err := r.MultipartReader()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var data []byte
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if part.Header.Get("Content-Type") == "application/x-directory" {
				continue
			}
			data, _ = io.ReadAll(part)
		}
		c, err := cid.Prefix{Version: 1, Codec: cid.Raw, MhType: 0x12, MhLength: -1}.Sum(data)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		f.mu.Lock()
		f.objects[c.String()] = data
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"Name": c.String(), "Hash": c.String()})
	case "/api/v0/cat":
		f.mu.Lock()
		data, ok := f.objects[r.URL.Query().Get("arg")]
		f.mu.Unlock()
		if !ok {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("block was not found locally"))
			return
		}
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeIPFSDaemon) tamper(c string, data []byte) {
	f.mu.Lock()
	f.objects[c] = data
	f.mu.Unlock()
}

func TestIPFSBackendRoundTrip(t *testing.T) {
	daemon := &fakeIPFSDaemon{objects: make(map[string][]byte)}
	server := httptest.NewServer(daemon)
	defer server.Close()

	backend, err := NewIPFSBackend(server.URL)
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte(`{"agent_id":1,"action":"data_analysis"}`)
	uri, hash, err := backend.Put(ctx, data, nil)
	require.NoError(t, err)
	assert.True(t, backend.Owns(uri))
	assert.Equal(t, util.ContentHash(data), hash)
	assert.True(t, backend.GetAndVerify(ctx, uri, hash))
	assert.False(t, backend.GetAndVerify(ctx, uri, util.ContentHash([]byte("other"))))

	c, err := parseIPFSURI(uri)
	require.NoError(t, err)
	daemon.tamper(c.String(), []byte("tampered"))
	assert.False(t, backend.GetAndVerify(ctx, uri, hash))

	missing, err := cid.Prefix{Version: 1, Codec: cid.Raw, MhType: 0x12, MhLength: -1}.Sum([]byte("never added"))
	require.NoError(t, err)
	assert.False(t, backend.GetAndVerify(ctx, "ipfs://"+missing.String(), hash))
}
