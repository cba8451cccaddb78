package verifybookingcounter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mockexam-workers/internal/common/camunda"
	"mockexam-workers/internal/common/config"
	"mockexam-workers/internal/common/errors"
	"mockexam-workers/internal/common/logger"
	"mockexam-workers/internal/common/metrics"
	"mockexam-workers/internal/common/observability"
	"mockexam-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskType   = "booking.counter.verify"
	WorkerName = "verify-booking-counter"
)

type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	service      *Service
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
	jobWorker    *camunda.CamundaWorker
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Camunda       *camunda.Client
	CustomConfig  *Config
	Logger        logger.Logger
	Counters      CounterReader
	MockExams     MockExamReader
	Audit         AuditStore
	Alerter       DriftAlerter
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.With(map[string]interface{}{"worker": TaskType})

	handler := &Handler{
		config:       workerConfig,
		logger:       loggerInstance,
		camunda:      opts.Camunda,
		errorHandler: errors.NewErrorHandler(loggerInstance),
		obs:          opts.Observability,
	}

	handler.service = NewService(ServiceDependencies{
		Logger:        loggerInstance,
		Counters:      opts.Counters,
		MockExams:     opts.MockExams,
		Audit:         opts.Audit,
		Alerter:       opts.Alerter,
		Observability: opts.Observability,
	}, handler.config)

	return handler, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.obs.StartSpan(ctx, TaskType, attribute.Int64("jobKey", job.GetKey()))
	defer span.End()

	h.logger.Info("Processing booking counter verification", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err, startTime)
		return
	}
	span.SetAttributes(attribute.String("mockExamId", input.MockExamID))

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err, startTime)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "completed")
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, startTime time.Time) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "failed")
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}

	validationResult := validation.ValidateInput(variables, GetInputSchema())
	if !validationResult.Valid {
		return nil, errors.NewValidationFailedError(
			fmt.Sprintf("Validation errors: %v", validationResult.GetErrorMessages()))
	}

	return inputFromVariables(variables)
}

func inputFromVariables(variables map[string]interface{}) (*Input, error) {
	input := &Input{AlertOnDrift: true}

	switch id := variables["mockExamId"].(type) {
	case string:
		input.MockExamID = strings.TrimSpace(id)
	case float64:
		input.MockExamID = strconv.FormatInt(int64(id), 10)
	}
	if input.MockExamID == "" {
		return nil, errors.NewValidationFailedError("mockExamId must not be blank")
	}

	if alert, ok := variables["alertOnDrift"].(bool); ok {
		input.AlertOnDrift = alert
	}

	return input, nil
}

func outputVariables(output *Output) map[string]interface{} {
	return map[string]interface{}{
		"checkId":         output.CheckID,
		"mockExamId":      output.MockExamID,
		"redisCount":      output.RedisCount,
		"hubspotCount":    output.HubSpotCount,
		"drift":           output.Drift,
		"inSync":          output.InSync,
		"redisKeyPresent": output.RedisKeyPresent,
		"checkedAt":       output.CheckedAt.Format(time.RFC3339),
		"alertPublished":  output.AlertPublished,
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(outputVariables(output))
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("Completed booking counter verification", map[string]interface{}{
		"jobKey":     job.GetKey(),
		"mockExamId": output.MockExamID,
		"inSync":     output.InSync,
	})
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("camunda client required to register %s", TaskType)
	}

	h.jobWorker = camunda.NewWorker(h.camunda.GetClient(), h, h.config.MaxJobsActive, h.config.Timeout, h.logger)
	return nil
}

func (h *Handler) Close(ctx context.Context) {
	if h.jobWorker != nil {
		h.jobWorker.Stop(ctx)
		h.jobWorker = nil
	}
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

// Execute runs one verification outside of a job, used by the admin API.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.service.Execute(ctx, input)
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		if workerCfg, exists := config.GetWorkerConfig(appConfig, WorkerName); exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.MaxJobsActive > 0 {
				cfg.MaxJobsActive = workerCfg.MaxJobsActive
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
			}
		}

		if appConfig.Booking.CounterKeyPattern != "" {
			cfg.CounterKeyPattern = appConfig.Booking.CounterKeyPattern
		}
		if appConfig.Booking.TotalBookingsProperty != "" {
			cfg.TotalBookingsProperty = appConfig.Booking.TotalBookingsProperty
		}
		if appConfig.Integrations.AWS.SNS.Enabled {
			cfg.AlertTopicARN = appConfig.Integrations.AWS.SNS.AlertTopicARN
		}
	}

	return cfg
}
