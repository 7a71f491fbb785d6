package util

import (
	"context"
	"os/signal"
	"syscall"
)

// ReqContext derives a request context from parent that is also cancelled on
// SIGTERM, SIGINT or SIGHUP. Signal delivery is released once ctx is done.
func ReqContext(parent context.Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx
}
