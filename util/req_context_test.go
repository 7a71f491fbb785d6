package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestReqContextFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))
	ctx := ReqContext(parent)
	assert.Equal(t, "req-1", ctx.Value(ctxKey{}))
	require.NoError(t, ctx.Err())

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("request context outlived its parent")
	}
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestReqContextNilParent(t *testing.T) {
	//nolint:staticcheck
	ctx := ReqContext(nil)
	require.NotNil(t, ctx)
	assert.NoError(t, ctx.Err())
}
