package verifybookingcounter

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"mockexam-workers/internal/common/camunda/camundatest"
	"mockexam-workers/internal/common/config"
	"mockexam-workers/internal/common/database"
	"mockexam-workers/internal/common/errors"
	"mockexam-workers/internal/common/hubspot"
	"mockexam-workers/internal/common/logger"
	"mockexam-workers/internal/common/validation"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) PublishJSON(ctx context.Context, topicARN, subject string, payload interface{}) (string, error) {
	args := m.Called(ctx, topicARN, subject, payload)
	return args.String(0), args.Error(1)
}

type MockAuditStore struct {
	mock.Mock
}

func (m *MockAuditStore) RecordCheck(ctx context.Context, check *Output) error {
	return m.Called(ctx, check).Error(0)
}

// ==========================
// Helpers
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "booking-reconciliation",
		ElementId:          "Activity_VerifyCounter",
		CustomHeaders:      "{}",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createValidConfig() *Config {
	cfg := DefaultConfig()
	cfg.AlertTopicARN = "arn:aws:sns:us-east-1:123456789012:booking-alerts"
	return cfg
}

// fakeHubSpot serves mock exams keyed by id with the given total_bookings.
func fakeHubSpot(t *testing.T, exams map[string]string, status int) *hubspot.CRMClient {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != 0 {
			w.WriteHeader(status)
			io.WriteString(w, `{"status":"error"}`)
			return
		}
		id := r.URL.Path[len("/crm/v3/objects/2-50158913/"):]
		total, ok := exams[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":         id,
			"properties": map[string]string{"total_bookings": total},
		})
	}))
	t.Cleanup(server.Close)

	return hubspot.NewCRMClient(config.HubSpotConfig{AccessToken: "token", BaseURL: server.URL, Timeout: 2000})
}

type testEnv struct {
	handler *Handler
	redis   *miniredis.Miniredis
	alerter *MockAlerter
}

func setup(t *testing.T, exams map[string]string, audit AuditStore) *testEnv {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	alerter := &MockAlerter{}
	handler, err := NewHandler(HandlerOptions{
		CustomConfig: createValidConfig(),
		Logger:       logger.NewTestLogger(t),
		Counters:     database.WrapRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})),
		MockExams:    fakeHubSpot(t, exams, 0),
		Audit:        audit,
		Alerter:      alerter,
	})
	require.NoError(t, err)

	return &testEnv{handler: handler, redis: mr, alerter: alerter}
}

// ==========================
// Config
// ==========================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "pattern without id", mutate: func(c *Config) { c.CounterKeyPattern = "exam:bookings" }, wantErr: "{id}"},
		{name: "no property", mutate: func(c *Config) { c.TotalBookingsProperty = "" }, wantErr: "total_bookings_property"},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appCfg := &config.Config{
		Workers: map[string]config.WorkerConfig{WorkerName: {Enabled: true, MaxJobsActive: 2, Timeout: 5000}},
		Booking: config.BookingConfig{CounterKeyPattern: "mock_exam_{id}_count", TotalBookingsProperty: "booked"},
	}
	appCfg.Integrations.AWS.SNS.Enabled = true
	appCfg.Integrations.AWS.SNS.AlertTopicARN = "arn:topic"

	cfg := createConfigFromAppConfig(appCfg, nil)
	assert.Equal(t, 2, cfg.MaxJobsActive)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "mock_exam_{id}_count", cfg.CounterKeyPattern)
	assert.Equal(t, "booked", cfg.TotalBookingsProperty)
	assert.Equal(t, "arn:topic", cfg.AlertTopicARN)
}

// ==========================
// Input parsing
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	env := setup(t, nil, nil)

	tests := []struct {
		name      string
		variables map[string]interface{}
		expected  *Input
		errCode   errors.ErrorCode
	}{
		{
			name:      "string id with default alerting",
			variables: map[string]interface{}{"mockExamId": "55"},
			expected:  &Input{MockExamID: "55", AlertOnDrift: true},
		},
		{
			name:      "numeric id",
			variables: map[string]interface{}{"mockExamId": 55, "alertOnDrift": false},
			expected:  &Input{MockExamID: "55", AlertOnDrift: false},
		},
		{
			name:      "missing id",
			variables: map[string]interface{}{"alertOnDrift": true},
			errCode:   errors.ErrCodeValidationFailed,
		},
		{
			name:      "empty id",
			variables: map[string]interface{}{"mockExamId": ""},
			errCode:   errors.ErrCodeValidationFailed,
		},
		{
			name:      "blank id",
			variables: map[string]interface{}{"mockExamId": "   "},
			errCode:   errors.ErrCodeValidationFailed,
		},
		{
			name:      "alert flag wrong type",
			variables: map[string]interface{}{"mockExamId": "55", "alertOnDrift": "no"},
			errCode:   errors.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := env.handler.parseInput(createMockJob(1, tt.variables))
			if tt.errCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.errCode, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, input)
		})
	}
}

// ==========================
// Verification
// ==========================

func TestService_InSync(t *testing.T) {
	env := setup(t, map[string]string{"55": "12"}, nil)
	require.NoError(t, env.redis.Set("exam:55:bookings", "12"))

	output, err := env.handler.Execute(context.Background(), &Input{MockExamID: "55", AlertOnDrift: true})
	require.NoError(t, err)

	assert.True(t, output.InSync)
	assert.True(t, output.RedisKeyPresent)
	assert.Equal(t, int64(12), output.RedisCount)
	assert.Equal(t, int64(12), output.HubSpotCount)
	assert.Equal(t, int64(0), output.Drift)
	assert.False(t, output.AlertPublished)
	assert.NotEmpty(t, output.CheckID)
	env.alerter.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_DriftPublishesAlert(t *testing.T) {
	env := setup(t, map[string]string{"55": "10"}, nil)
	require.NoError(t, env.redis.Set("exam:55:bookings", "13"))

	env.alerter.On("PublishJSON", mock.Anything, "arn:aws:sns:us-east-1:123456789012:booking-alerts",
		"Booking counter drift: mock exam 55", mock.MatchedBy(func(a DriftAlert) bool {
			return a.Drift == 3 && a.RedisKey == "exam:55:bookings" && a.Type == "booking_counter_drift"
		})).Return("msg-1", nil)

	output, err := env.handler.Execute(context.Background(), &Input{MockExamID: "55", AlertOnDrift: true})
	require.NoError(t, err)

	assert.False(t, output.InSync)
	assert.Equal(t, int64(3), output.Drift)
	assert.True(t, output.AlertPublished)
	env.alerter.AssertExpectations(t)
}

func TestService_DriftWithoutAlerting(t *testing.T) {
	env := setup(t, map[string]string{"55": "10"}, nil)
	require.NoError(t, env.redis.Set("exam:55:bookings", "8"))

	output, err := env.handler.Execute(context.Background(), &Input{MockExamID: "55", AlertOnDrift: false})
	require.NoError(t, err)

	assert.Equal(t, int64(-2), output.Drift)
	assert.False(t, output.AlertPublished)
	env.alerter.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_AlertFailureIsNotFatal(t *testing.T) {
	env := setup(t, map[string]string{"55": "1"}, nil)
	require.NoError(t, env.redis.Set("exam:55:bookings", "2"))
	env.alerter.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", stderrors.New("sns unavailable"))

	output, err := env.handler.Execute(context.Background(), &Input{MockExamID: "55", AlertOnDrift: true})
	require.NoError(t, err)
	assert.False(t, output.AlertPublished)
}

func TestService_MissingCounterKey(t *testing.T) {
	env := setup(t, map[string]string{"55": "4"}, nil)

	output, err := env.handler.Execute(context.Background(), &Input{MockExamID: "55"})
	require.NoError(t, err)

	assert.False(t, output.RedisKeyPresent)
	assert.Equal(t, int64(0), output.RedisCount)
	assert.Equal(t, int64(-4), output.Drift)
}

func TestService_MissingTotalBookingsProperty(t *testing.T) {
	env := setup(t, map[string]string{"55": ""}, nil)

	output, err := env.handler.Execute(context.Background(), &Input{MockExamID: "55"})
	require.NoError(t, err)

	assert.Equal(t, int64(0), output.HubSpotCount)
	assert.True(t, output.InSync)
}

func TestService_MockExamNotFound(t *testing.T) {
	env := setup(t, map[string]string{}, nil)

	_, err := env.handler.Execute(context.Background(), &Input{MockExamID: "404"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMockExamNotFound, errors.CodeOf(err))
}

func TestService_CRMFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	service := NewService(ServiceDependencies{
		Logger:    logger.NewNoOpLogger(),
		Counters:  database.WrapRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})),
		MockExams: fakeHubSpot(t, nil, http.StatusInternalServerError),
	}, createValidConfig())

	_, err = service.Execute(context.Background(), &Input{MockExamID: "55"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCRMAPIError, errors.CodeOf(err))
}

func TestService_RedisFailure(t *testing.T) {
	env := setup(t, map[string]string{"55": "1"}, nil)
	env.redis.Close()

	_, err := env.handler.Execute(context.Background(), &Input{MockExamID: "55"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCacheReadFailed, errors.CodeOf(err))
	assert.True(t, errors.IsRetryableErrorCode(errors.CodeOf(err)))
}

func TestService_CorruptCounterValue(t *testing.T) {
	env := setup(t, map[string]string{"55": "1"}, nil)
	require.NoError(t, env.redis.Set("exam:55:bookings", "lots"))

	_, err := env.handler.Execute(context.Background(), &Input{MockExamID: "55"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCacheReadFailed, errors.CodeOf(err))
}

func TestService_AuditFailureIsNotFatal(t *testing.T) {
	audit := &MockAuditStore{}
	audit.On("RecordCheck", mock.Anything, mock.Anything).Return(stderrors.New("db down"))

	env := setup(t, map[string]string{"55": "3"}, audit)
	require.NoError(t, env.redis.Set("exam:55:bookings", "3"))

	output, err := env.handler.Execute(context.Background(), &Input{MockExamID: "55"})
	require.NoError(t, err)
	assert.True(t, output.InSync)
	audit.AssertExpectations(t)
}

func TestParseCount(t *testing.T) {
	tests := map[string]int64{
		"":      0,
		"  7 ":  7,
		"12.0":  12,
		"3.9":   3,
		"-2":    -2,
		"n/a":   0,
		"NaN":   0,
		"1e400": 0,
	}
	for raw, expected := range tests {
		assert.Equal(t, expected, ParseCount(raw), raw)
	}
}

// ==========================
// Postgres audit store
// ==========================

func TestPostgresAuditStore_RecordCheck(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checkedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	check := &Output{
		CheckID: "c1", MockExamID: "55", RedisCount: 5, HubSpotCount: 4,
		Drift: 1, InSync: false, RedisKeyPresent: true, CheckedAt: checkedAt,
	}

	sqlMock.ExpectExec(regexp.QuoteMeta("INSERT INTO booking_counter_checks")).
		WithArgs("c1", "55", int64(5), int64(4), int64(1), false, true, checkedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewPostgresAuditStore(db).RecordCheck(context.Background(), check))
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestPostgresAuditStore_RecentChecks(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checkedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"check_id", "mock_exam_id", "redis_count", "hubspot_count", "drift", "in_sync", "redis_key_present", "checked_at",
	}).AddRow("c2", "55", 5, 5, 0, true, true, checkedAt).
		AddRow("c1", "55", 5, 4, 1, false, true, checkedAt.Add(-time.Hour))

	sqlMock.ExpectQuery(regexp.QuoteMeta("FROM booking_counter_checks")).
		WithArgs("55", 20).
		WillReturnRows(rows)

	checks, err := NewPostgresAuditStore(db).RecentChecks(context.Background(), "55", 0)
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, "c2", checks[0].CheckID)
	assert.Equal(t, int64(1), checks[1].Drift)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

// ==========================
// Job lifecycle
// ==========================

func TestHandler_Handle_CompletesJob(t *testing.T) {
	env := setup(t, map[string]string{"55": "9"}, nil)
	require.NoError(t, env.redis.Set("exam:55:bookings", "9"))
	client := camundatest.NewJobClient()

	env.handler.Handle(client, createMockJob(7, map[string]interface{}{"mockExamId": "55"}))

	require.Len(t, client.Completed(), 1)
	assert.Empty(t, client.Failed())
	assert.Empty(t, client.Thrown())

	req := client.Completed()[0]
	assert.Equal(t, int64(7), req.GetJobKey())

	vars, err := camundatest.Variables(req.GetVariables())
	require.NoError(t, err)
	assert.Equal(t, "55", vars["mockExamId"])
	assert.Equal(t, float64(9), vars["redisCount"])
	assert.Equal(t, float64(9), vars["hubspotCount"])
	assert.Equal(t, float64(0), vars["drift"])
	assert.Equal(t, true, vars["inSync"])
	assert.Equal(t, false, vars["alertPublished"])
	assert.NotEmpty(t, vars["checkId"])
}

func TestHandler_Handle_MissingExamThrowsBPMNError(t *testing.T) {
	env := setup(t, map[string]string{}, nil)
	client := camundatest.NewJobClient()

	env.handler.Handle(client, createMockJob(8, map[string]interface{}{"mockExamId": "404"}))

	assert.Empty(t, client.Completed())
	assert.Empty(t, client.Failed())
	require.Len(t, client.Thrown(), 1)
	assert.Equal(t, string(errors.ErrCodeMockExamNotFound), client.Thrown()[0].GetErrorCode())
}

func TestHandler_Handle_RedisFailureFailsWithRetries(t *testing.T) {
	env := setup(t, map[string]string{"55": "1"}, nil)
	env.redis.Close()
	client := camundatest.NewJobClient()

	env.handler.Handle(client, createMockJob(9, map[string]interface{}{"mockExamId": "55"}))

	assert.Empty(t, client.Completed())
	assert.Empty(t, client.Thrown())
	require.Len(t, client.Failed(), 1)

	req := client.Failed()[0]
	assert.Equal(t, int32(2), req.GetRetries())
	assert.Contains(t, req.GetErrorMessage(), "CACHE_READ_FAILED")

	vars, err := camundatest.Variables(req.GetVariables())
	require.NoError(t, err)
	assert.Equal(t, "CACHE_READ_FAILED", vars["errorCode"])
}

// ==========================
// Output variables
// ==========================

func TestOutputVariables(t *testing.T) {
	checkedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	vars := outputVariables(&Output{
		CheckID: "c1", MockExamID: "55", RedisCount: 2, HubSpotCount: 2,
		InSync: true, RedisKeyPresent: true, CheckedAt: checkedAt,
	})

	assert.Equal(t, "2026-03-01T09:00:00Z", vars["checkedAt"])
	assert.Equal(t, true, vars["inSync"])
	assert.Equal(t, int64(0), vars["drift"])

	data, err := json.Marshal(vars)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	result := validation.ValidateInput(decoded, GetOutputSchema())
	assert.True(t, result.Valid, result.GetErrorMessages())
}
