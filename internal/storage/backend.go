package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/chaoschain/go-evidence-provider/internal/models"
)

// Backend is one storage provider. URIs returned by Put must be recognised by
// Owns so that verification can be routed without a side table.
type Backend interface {
	Provider() models.StorageProvider
	Owns(uri string) bool
	Put(ctx context.Context, data []byte, metadata map[string]interface{}) (uri string, hash string, err error)
	GetAndVerify(ctx context.Context, uri, expectedHash string) bool
}

func hasScheme(uri, scheme string) bool {
	return strings.HasPrefix(uri, scheme) && len(uri) > len(scheme)
}

func trimScheme(uri, scheme string) (string, error) {
	if !hasScheme(uri, scheme) {
		return "", fmt.Errorf("uri %q does not start with %s", uri, scheme)
	}
	return strings.TrimPrefix(uri, scheme), nil
}

// runWithContext bounds a call that does not accept a context itself. The call
// keeps running in the background after ctx is done; its result is dropped.
func runWithContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
