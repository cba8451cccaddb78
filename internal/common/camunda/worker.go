// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"mockexam-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler is implemented by every worker handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
	GetTaskType() string
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for handler's task type.
func NewWorker(
	client zbc.Client,
	handler JobHandler,
	maxJobsActive int,
	timeout time.Duration,
	log logger.Logger,
) *CamundaWorker {
	taskType := handler.GetTaskType()

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(maxJobsActive).
		Timeout(timeout).
		Name(taskType + "-worker").
		Open()

	log.Info("Worker registered with Camunda", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": maxJobsActive,
		"timeout":       timeout.String(),
	})

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

func (w *CamundaWorker) TaskType() string {
	return w.taskType
}

// Stop closes the job worker and waits for in-flight jobs until ctx ends.
func (w *CamundaWorker) Stop(ctx context.Context) {
	w.logger.Info("Shutting down worker gracefully", map[string]interface{}{"taskType": w.taskType})

	done := make(chan struct{})
	go func() {
		w.worker.Close()
		w.worker.AwaitClose()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("Worker did not stop in time", map[string]interface{}{"taskType": w.taskType})
	}
}
