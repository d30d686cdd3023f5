// internal/workers/design/generate-svg/handler.go
package generatesvg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/common/logger"
	"design-workers/internal/common/metrics"
	"design-workers/internal/models"
	"design-workers/internal/pipeline"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "generate-svg"
)

// Generator runs the prompt-to-SVG pipeline.
type Generator interface {
	Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error)
}

// InputValidator checks raw job variables before they are decoded.
type InputValidator interface {
	ValidateInput(taskType, variables string) error
}

type Handler struct {
	config    *Config
	generator Generator
	validator InputValidator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

// NewHandler builds the worker. validator may be nil.
func NewHandler(config *Config, generator Generator, validator InputValidator, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		generator: generator,
		validator: validator,
		errors:    apperrors.NewErrorHandler(l),
		logger:    l,
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

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	if h.validator != nil {
		if err := h.validator.ValidateInput(TaskType, variables); err != nil {
			return nil, apperrors.NewInvalidRequestError(err.Error())
		}
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidRequestError("input cannot be nil")
	}

	start := time.Now()
	resp, err := h.generator.Generate(ctx, input.request())
	if err != nil {
		return nil, err
	}

	output := &Output{
		SVG:          resp.SVG,
		Metadata:     resp.Metadata,
		Layers:       resp.Layers,
		Warnings:     resp.Warnings,
		UsedFallback: resp.Metadata.Model == pipeline.FallbackModel,
	}

	h.logger.Info("svg generated", map[string]interface{}{
		"requestId":    resp.Metadata.RequestID,
		"model":        resp.Metadata.Model,
		"components":   resp.Metadata.ComponentCount,
		"usedFallback": output.UsedFallback,
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return output, nil
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

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := "INTERNAL_ERROR"
	if se, ok := apperrors.AsStandardError(err); ok {
		code = string(se.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
