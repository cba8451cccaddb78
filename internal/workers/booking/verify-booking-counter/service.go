package verifybookingcounter

import (
	"context"
	stderrors "errors"
	"math"
	"strconv"
	"strings"
	"time"

	"mockexam-workers/internal/common/database"
	"mockexam-workers/internal/common/errors"
	"mockexam-workers/internal/common/hubspot"
	"mockexam-workers/internal/common/logger"
	"mockexam-workers/internal/common/metrics"
	"mockexam-workers/internal/common/observability"

	"github.com/google/uuid"
)

const driftAlertType = "booking_counter_drift"

type Service struct {
	config    *Config
	logger    logger.Logger
	counters  CounterReader
	mockExams MockExamReader
	audit     AuditStore
	alerter   DriftAlerter
	obs       *observability.Observability
	now       func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config:    config,
		logger:    deps.Logger,
		counters:  deps.Counters,
		mockExams: deps.MockExams,
		audit:     deps.Audit,
		alerter:   deps.Alerter,
		obs:       deps.Observability,
		now:       time.Now,
	}
}

// Execute compares the Redis booking counter with the mock exam's
// total_bookings property. It only reads both sides and never repairs them.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if s.mockExams == nil {
		return nil, errors.NewCRMNotConfiguredError()
	}

	key := database.CounterKey(s.config.CounterKeyPattern, input.MockExamID)
	if s.counters == nil {
		return nil, errors.NewCacheReadFailedError(key, stderrors.New("redis not configured"))
	}
	redisCount, present, err := s.counters.GetCounter(ctx, key)
	if err != nil {
		return nil, errors.NewCacheReadFailedError(key, err)
	}

	exam, err := s.mockExams.GetObject(ctx, hubspot.ObjectMockExams, input.MockExamID, []string{s.config.TotalBookingsProperty})
	if err != nil {
		if stderrors.Is(err, hubspot.ErrNotFound) {
			return nil, errors.NewMockExamNotFoundError(input.MockExamID)
		}
		return nil, hubspot.ToStandardError("get mock exam", err)
	}

	hubspotCount := ParseCount(exam.Properties[s.config.TotalBookingsProperty])

	output := &Output{
		CheckID:         uuid.New().String(),
		MockExamID:      input.MockExamID,
		RedisCount:      redisCount,
		HubSpotCount:    hubspotCount,
		Drift:           redisCount - hubspotCount,
		RedisKeyPresent: present,
		CheckedAt:       s.now().UTC(),
	}
	output.InSync = output.Drift == 0

	metrics.BookingCounterDrift.WithLabelValues(input.MockExamID).Set(float64(output.Drift))
	s.obs.RecordCounterCheck(ctx, output.InSync)

	fields := map[string]interface{}{
		"checkId":         output.CheckID,
		"mockExamId":      output.MockExamID,
		"redisCount":      output.RedisCount,
		"hubspotCount":    output.HubSpotCount,
		"drift":           output.Drift,
		"redisKeyPresent": output.RedisKeyPresent,
	}
	if output.InSync {
		s.logger.Info("Booking counter in sync", fields)
	} else {
		s.logger.Warn("Booking counter drift detected", fields)
	}

	s.recordAudit(ctx, output)

	if !output.InSync && input.AlertOnDrift {
		output.AlertPublished = s.publishAlert(ctx, key, output)
	}

	return output, nil
}

func (s *Service) recordAudit(ctx context.Context, output *Output) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordCheck(ctx, output); err != nil {
		stdErr := errors.NewAuditWriteFailedError(err)
		s.logger.Warn("Failed to record counter check", map[string]interface{}{
			"checkId":   output.CheckID,
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
	}
}

func (s *Service) publishAlert(ctx context.Context, key string, output *Output) bool {
	if s.alerter == nil || s.config.AlertTopicARN == "" {
		return false
	}

	alert := DriftAlert{
		Type:            driftAlertType,
		CheckID:         output.CheckID,
		MockExamID:      output.MockExamID,
		RedisKey:        key,
		RedisCount:      output.RedisCount,
		HubSpotCount:    output.HubSpotCount,
		Drift:           output.Drift,
		RedisKeyPresent: output.RedisKeyPresent,
		CheckedAt:       output.CheckedAt,
	}

	messageID, err := s.alerter.PublishJSON(ctx, s.config.AlertTopicARN, "Booking counter drift: mock exam "+output.MockExamID, alert)
	if err != nil {
		stdErr := errors.NewAlertPublishFailedError(err)
		s.logger.Warn("Failed to publish drift alert", map[string]interface{}{
			"checkId":   output.CheckID,
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
		return false
	}

	s.logger.Info("Drift alert published", map[string]interface{}{
		"checkId":   output.CheckID,
		"messageId": messageID,
	})
	return true
}

// ParseCount reads a HubSpot number property. Blank or non-numeric values
// count as 0 and fractions are truncated.
func ParseCount(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}
