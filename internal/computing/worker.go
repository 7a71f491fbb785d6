package computing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chaoschain/go-evidence-provider/internal/compute"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/google/uuid"
)

// NewExecuteTask returns the celery task body for constants.TASK_EXECUTE. The
// reply is a JSON compute.TaskEnvelope; failures travel inside it.
func NewExecuteTask(worker *compute.LocalBackend, timeout time.Duration) func(functionName, input string) string {
	return func(functionName, input string) string {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		logs.GetLogger().Infof("worker received task, function: %s", functionName)
		envelope := worker.Envelope(ctx, &compute.Request{
			ID:           uuid.NewString(),
			FunctionName: functionName,
			Input:        json.RawMessage(input),
		})
		if envelope.Error != "" {
			logs.GetLogger().Errorf("worker task %s failed, error: %s", functionName, envelope.Error)
		}
		reply, err := json.Marshal(envelope)
		if err != nil {
			logs.GetLogger().Errorf("failed convert to json, error: %+v", err)
			return `{"error":"unencodable worker reply"}`
		}
		return string(reply)
	}
}
