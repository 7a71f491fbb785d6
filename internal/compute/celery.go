package compute

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chaoschain/go-evidence-provider/constants"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/gocelery/gocelery"
	"golang.org/x/xerrors"
)

// TaskDispatcher hands a task to a queue and waits for its string reply.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, functionName, input string) (string, error)
}

// CeleryDispatcher dispatches over a gocelery client.
type CeleryDispatcher struct {
	Client *gocelery.CeleryClient
}

func (d *CeleryDispatcher) Dispatch(ctx context.Context, functionName, input string) (string, error) {
	asyncResult, err := d.Client.Delay(constants.TASK_EXECUTE, functionName, input)
	if err != nil {
		return "", xerrors.Errorf("delay %s: %w", constants.TASK_EXECUTE, err)
	}

	timeout := constants.DEFAULT_COMPUTE_TIMEOUT_SECONDS * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	type reply struct {
		value interface{}
		err   error
	}
	done := make(chan reply, 1)
	go func() {
		value, err := asyncResult.Get(timeout)
		done <- reply{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", xerrors.Errorf("wait for task %s: %w", asyncResult.TaskID, r.err)
		}
		result, ok := r.value.(string)
		if !ok {
			return "", fmt.Errorf("task %s returned %T, want string", asyncResult.TaskID, r.value)
		}
		return result, nil
	}
}

// CeleryBackend executes on celery workers sharing the node's redis.
type CeleryBackend struct {
	dispatcher TaskDispatcher
}

func NewCeleryBackend(dispatcher TaskDispatcher) (*CeleryBackend, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("celery dispatcher is nil")
	}
	return &CeleryBackend{dispatcher: dispatcher}, nil
}

func (c *CeleryBackend) Provider() models.ComputeProvider {
	return models.ComputeCelery
}

func (c *CeleryBackend) Submit(ctx context.Context, req *Request) (*Submission, error) {
	reply, err := c.dispatcher.Dispatch(ctx, req.FunctionName, string(req.Input))
	if err != nil {
		return nil, err
	}
	var envelope TaskEnvelope
	if err = json.Unmarshal([]byte(reply), &envelope); err != nil {
		return nil, xerrors.Errorf("malformed worker reply: %w", err)
	}
	return envelope.submission()
}
