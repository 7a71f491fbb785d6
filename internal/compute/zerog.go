package compute

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/gorilla/websocket"
	"golang.org/x/xerrors"
)

const PingMsg = "ping"

// ZeroGBackend submits executions to a 0G compute broker over a websocket.
// One connection carries one request and its reply.
type ZeroGBackend struct {
	brokerURL string
	apiKey    string
	dialer    *websocket.Dialer
}

type zeroGTask struct {
	ID       string          `json:"id"`
	Function string          `json:"function"`
	Input    json.RawMessage `json:"input"`
}

type zeroGReply struct {
	ID string `json:"id"`
	TaskEnvelope
}

func NewZeroGBackend(brokerURL, apiKey string) (*ZeroGBackend, error) {
	brokerURL = strings.TrimSpace(brokerURL)
	if !strings.HasPrefix(brokerURL, "ws://") && !strings.HasPrefix(brokerURL, "wss://") {
		return nil, fmt.Errorf("0g compute broker url must be ws:// or wss://, got %q", brokerURL)
	}
	return &ZeroGBackend{
		brokerURL: brokerURL,
		apiKey:    apiKey,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}, nil
}

func (z *ZeroGBackend) Provider() models.ComputeProvider {
	return models.ComputeZeroG
}

func (z *ZeroGBackend) Submit(ctx context.Context, req *Request) (*Submission, error) {
	header := http.Header{}
	if z.apiKey != "" {
		header.Set("Authorization", "Bearer "+z.apiKey)
	}
	conn, _, err := z.dialer.DialContext(ctx, z.brokerURL, header)
	if err != nil {
		return nil, xerrors.Errorf("dial 0g compute broker: %w", err)
	}
	defer conn.Close()

	stopCh := make(chan struct{})
	defer close(stopCh)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stopCh:
		}
	}()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	if err = conn.WriteJSON(zeroGTask{ID: req.ID, Function: req.FunctionName, Input: req.Input}); err != nil {
		return nil, z.ctxErr(ctx, xerrors.Errorf("send task %s: %w", req.ID, err))
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil, z.ctxErr(ctx, xerrors.Errorf("read reply for %s: %w", req.ID, err))
		}
		if msgType != websocket.TextMessage || string(data) == PingMsg {
			continue
		}
		var reply zeroGReply
		if err = json.Unmarshal(data, &reply); err != nil {
			return nil, xerrors.Errorf("malformed broker reply: %w", err)
		}
		if reply.ID != req.ID {
			logs.GetLogger().Debugf("skip broker reply for %s while waiting on %s", reply.ID, req.ID)
			continue
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return reply.submission()
	}
}

func (z *ZeroGBackend) ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
