// internal/workers/knowledge/sweep-knowledge-lifecycle/handler.go
package sweepknowledgelifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/common/logger"
	"design-workers/internal/common/metrics"
	"design-workers/internal/knowledge"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "sweep-knowledge-lifecycle"
)

type Sweeper interface {
	Sweep(ctx context.Context) (*knowledge.SweepResult, error)
}

type Handler struct {
	config  *Config
	sweeper Sweeper
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
	now     func() time.Time
}

func NewHandler(config *Config, sweeper Sweeper, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		sweeper: sweeper,
		errors:  apperrors.NewErrorHandler(l),
		logger:  l,
		now:     time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &Input{})
	if err != nil {
		code := "INTERNAL_ERROR"
		if se, ok := apperrors.AsStandardError(err); ok {
			code = string(se.Code)
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, _ *Input) (*Output, error) {
	result, err := h.sweeper.Sweep(ctx)
	if err != nil {
		if _, ok := apperrors.AsStandardError(err); ok {
			return nil, err
		}
		return nil, apperrors.NewQueryExecutionFailedError("lifecycle sweep", err)
	}

	if h.config.FailOnPartial && len(result.Failed) > 0 {
		return nil, apperrors.NewQueryExecutionFailedError("lifecycle sweep",
			fmt.Errorf("failed to deprecate %s", strings.Join(result.Failed, ", ")))
	}

	return &Output{
		Checked:    result.Checked,
		Deprecated: result.Deprecated,
		Failed:     result.Failed,
		SweptAt:    h.now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
