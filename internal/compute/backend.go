package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/chaoschain/go-evidence-provider/internal/models"
)

// Function is a unit of work the caller hands to a backend. Remote backends
// ignore it and resolve the function by name.
type Function func(ctx context.Context, input json.RawMessage) (interface{}, error)

type Request struct {
	ID           string
	FunctionName string
	Input        json.RawMessage
	Fn           Function
}

// Submission is what a backend reports back. The execution hash is never
// taken from here.
type Submission struct {
	RawOutput   []byte
	Attestation []byte
	Timestamp   time.Time
}

type Backend interface {
	Provider() models.ComputeProvider
	Submit(ctx context.Context, req *Request) (*Submission, error)
}

// TaskEnvelope is the wire shape remote workers answer with.
type TaskEnvelope struct {
	Output      json.RawMessage `json:"output"`
	Attestation json.RawMessage `json:"attestation,omitempty"`
	Timestamp   int64           `json:"timestamp,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func (e *TaskEnvelope) submission() (*Submission, error) {
	if e.Error != "" {
		return nil, fmt.Errorf("worker error: %s", e.Error)
	}
	if len(e.Output) == 0 {
		return nil, fmt.Errorf("worker returned no output")
	}
	sub := &Submission{RawOutput: []byte(e.Output), Timestamp: time.Now().UTC()}
	if att := bytes.TrimSpace(e.Attestation); len(att) > 0 && !bytes.Equal(att, []byte("null")) {
		sub.Attestation = []byte(att)
	}
	if e.Timestamp > 0 {
		sub.Timestamp = time.Unix(e.Timestamp, 0).UTC()
	}
	return sub, nil
}

// RunFunction executes fn and returns its JSON encoded result. A panic in fn
// becomes an error.
func RunFunction(ctx context.Context, fn Function, input json.RawMessage) (raw []byte, err error) {
	if fn == nil {
		return nil, fmt.Errorf("no function to run")
	}
	type result struct {
		out interface{}
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("function panicked: %v\n%s", r, debug.Stack())}
			}
		}()
		out, err := fn(ctx, input)
		done <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if rawOut, ok := r.out.(json.RawMessage); ok {
			return compactJSON(rawOut)
		}
		return json.Marshal(r.out)
	}
}

func compactJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeOutput keeps numbers as json.Number. Anything that is not a single
// JSON value comes back as a string.
func decodeOutput(raw []byte) interface{} {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil || dec.More() {
		return string(raw)
	}
	return out
}
