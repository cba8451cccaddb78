package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mockexam-workers/internal/common/errors"
	"mockexam-workers/internal/common/logger"
	"mockexam-workers/internal/credits"
	exportbookings "mockexam-workers/internal/workers/admin/export-bookings"
	verifybookingcounter "mockexam-workers/internal/workers/booking/verify-booking-counter"
	transformlogincredits "mockexam-workers/internal/workers/credits/transform-login-credits"
	searchobjects "mockexam-workers/internal/workers/crm/search-objects"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeEligibility struct {
	got    *transformlogincredits.Input
	cached map[string]credits.Eligibility
	err    error
}

func (f *fakeEligibility) CachedEligibility(ctx context.Context, contactID string) (credits.Eligibility, error) {
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.cached[contactID]
	if !ok {
		return nil, errors.NewEligibilityNotCachedError(contactID)
	}
	return e, nil
}

func (f *fakeEligibility) Execute(ctx context.Context, input *transformlogincredits.Input) (*transformlogincredits.Output, error) {
	f.got = input
	e := credits.Transform(input.LoginResponse)
	return &transformlogincredits.Output{CreditEligibility: e, CreditDataAvailable: e.Available()}, nil
}

type fakeCounter struct {
	got *verifybookingcounter.Input
	err error
}

func (f *fakeCounter) Execute(ctx context.Context, input *verifybookingcounter.Input) (*verifybookingcounter.Output, error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return &verifybookingcounter.Output{
		CheckID:      "chk-1",
		MockExamID:   input.MockExamID,
		RedisCount:   12,
		HubSpotCount: 10,
		Drift:        2,
		CheckedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}, nil
}

type fakeHistory struct {
	limit int
	err   error
}

func (f *fakeHistory) RecentChecks(ctx context.Context, mockExamID string, limit int) ([]verifybookingcounter.Output, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []verifybookingcounter.Output{{CheckID: "chk-1", MockExamID: mockExamID, InSync: true}}, nil
}

type fakeExporter struct {
	got *exportbookings.Input
	err error
}

func (f *fakeExporter) Execute(ctx context.Context, input *exportbookings.Input) (*exportbookings.Output, error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return &exportbookings.Output{
		ExportID: "exp-1",
		RowCount: 1,
		CSV:      "booking_id\n101\n",
		FileName: exportbookings.FileName("exp-1"),
	}, nil
}

type fakeSearch struct {
	err error
}

func (f *fakeSearch) Execute(ctx context.Context, input *searchobjects.Input) (*searchobjects.Output, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &searchobjects.Output{Results: []searchobjects.Result{{ID: "1"}}, Total: 1}, nil
}

func newTestRouter(t *testing.T, deps Dependencies) *gin.Engine {
	gin.SetMode(gin.TestMode)
	deps.Logger = logger.NewTestLogger(t)
	return NewRouter(deps)
}

func doRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ==========================
// Health and readiness
// ==========================

func TestHealthAndReady(t *testing.T) {
	r := newTestRouter(t, Dependencies{Redis: fakePinger{}})

	w := doRequest(r, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	w = doRequest(r, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReady_RedisDown(t *testing.T) {
	r := newTestRouter(t, Dependencies{Redis: fakePinger{err: stderrors.New("connection refused")}})

	w := doRequest(r, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestReady_ZeebeDown(t *testing.T) {
	r := newTestRouter(t, Dependencies{
		Redis: fakePinger{},
		Zeebe: PingFunc(func(ctx context.Context) error { return stderrors.New("gateway unavailable") }),
	})

	w := doRequest(r, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"zeebe":"down"`)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, Dependencies{})

	w := doRequest(r, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

// ==========================
// Auth
// ==========================

func TestAdminAuth(t *testing.T) {
	r := newTestRouter(t, Dependencies{AdminToken: "s3cret", Counter: &fakeCounter{}})

	tests := []struct {
		name     string
		header   string
		expected int
	}{
		{name: "missing header", expected: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", expected: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", expected: http.StatusForbidden},
		{name: "valid token", header: "bearer s3cret", expected: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := doRequest(r, http.MethodGet, "/api/admin/mock-exams/55/booking-counter", nil, headers)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

// ==========================
// Credits
// ==========================

func TestCreditEligibility(t *testing.T) {
	svc := &fakeEligibility{}
	r := newTestRouter(t, Dependencies{Eligibility: svc})

	w := doRequest(r, http.MethodPost, "/api/admin/credits/eligibility", map[string]interface{}{
		"contact_id": "501",
		"name":       "Jane",
		"credits":    map[string]interface{}{"sj_credits": 2, "shared_mock_credits": 1},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.got.CacheResult)

	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body, 2)
	assert.Equal(t, true, body[string(credits.SituationalJudgment)]["eligible"])
}

func TestCreditEligibility_NoCreditData(t *testing.T) {
	r := newTestRouter(t, Dependencies{Eligibility: &fakeEligibility{}})

	w := doRequest(r, http.MethodPost, "/api/admin/credits/eligibility", map[string]interface{}{"name": "Jane"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
}

func TestCachedEligibility(t *testing.T) {
	contactID := "501"
	svc := &fakeEligibility{cached: map[string]credits.Eligibility{
		"501": credits.Transform(&credits.LoginResponse{
			Identity: credits.IdentitySnapshot{StudentName: "Jane", ContactID: &contactID},
			Credits:  &credits.CreditSnapshot{CSCredits: 3},
		}),
	}}
	r := newTestRouter(t, Dependencies{Eligibility: svc})

	w := doRequest(r, http.MethodGet, "/api/admin/contacts/501/credit-eligibility", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body[string(credits.ClinicalSkills)]["availableCredits"])
	assert.Equal(t, false, body[string(credits.SituationalJudgment)]["eligible"])
}

func TestCachedEligibility_Errors(t *testing.T) {
	tests := []struct {
		name     string
		svc      *fakeEligibility
		expected int
		code     errors.ErrorCode
	}{
		{name: "nothing cached", svc: &fakeEligibility{}, expected: http.StatusNotFound, code: errors.ErrCodeEligibilityNotCached},
		{name: "redis down", svc: &fakeEligibility{err: errors.NewCacheReadFailedError("credits:eligibility:501", stderrors.New("eof"))}, expected: http.StatusBadGateway, code: errors.ErrCodeCacheReadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, Dependencies{Eligibility: tt.svc})

			w := doRequest(r, http.MethodGet, "/api/admin/contacts/501/credit-eligibility", nil, nil)
			assert.Equal(t, tt.expected, w.Code)

			var body struct {
				Error ErrorResponse `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

// ==========================
// Booking counter
// ==========================

func TestBookingCounter(t *testing.T) {
	svc := &fakeCounter{}
	r := newTestRouter(t, Dependencies{Counter: svc})

	w := doRequest(r, http.MethodGet, "/api/admin/mock-exams/55/booking-counter", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "55", svc.got.MockExamID)
	assert.False(t, svc.got.AlertOnDrift)

	var out verifybookingcounter.Output
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, int64(2), out.Drift)
}

func TestBookingCounter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "missing exam", err: errors.NewMockExamNotFoundError("55"), expected: http.StatusNotFound},
		{name: "rate limited", err: errors.NewCRMRateLimitedError("get"), expected: http.StatusTooManyRequests},
		{name: "hubspot down", err: errors.NewCRMAPIError("get", stderrors.New("boom")), expected: http.StatusBadGateway},
		{name: "redis down", err: errors.NewCacheReadFailedError("exam:55:bookings", stderrors.New("eof")), expected: http.StatusBadGateway},
		{name: "unexpected", err: stderrors.New("panic-ish"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, Dependencies{Counter: &fakeCounter{err: tt.err}})

			w := doRequest(r, http.MethodGet, "/api/admin/mock-exams/55/booking-counter", nil, nil)
			assert.Equal(t, tt.expected, w.Code)

			var body struct {
				Error ErrorResponse `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, errors.CodeOf(tt.err), body.Error.Code)
		})
	}
}

func TestBookingCounterHistory(t *testing.T) {
	history := &fakeHistory{}
	r := newTestRouter(t, Dependencies{History: history})

	w := doRequest(r, http.MethodGet, "/api/admin/mock-exams/55/booking-counter/history?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, history.limit)
	assert.Contains(t, w.Body.String(), `"chk-1"`)
}

func TestBookingCounterHistory_ReadFailure(t *testing.T) {
	r := newTestRouter(t, Dependencies{History: &fakeHistory{err: stderrors.New("relation does not exist")}})

	w := doRequest(r, http.MethodGet, "/api/admin/mock-exams/55/booking-counter/history", nil, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var body struct {
		Error ErrorResponse `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrCodeAuditReadFailed, body.Error.Code)
}

func TestBookingCounterHistory_NotConfigured(t *testing.T) {
	r := newTestRouter(t, Dependencies{})

	w := doRequest(r, http.MethodGet, "/api/admin/mock-exams/55/booking-counter/history", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// ==========================
// Export
// ==========================

func TestExportBookings(t *testing.T) {
	svc := &fakeExporter{}
	r := newTestRouter(t, Dependencies{Export: svc})

	w := doRequest(r, http.MethodPost, "/api/admin/bookings/export", map[string]interface{}{
		"bookingIds":       []interface{}{"101", 102},
		"excludeCancelled": true,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="bookings-export-exp-1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "1", w.Header().Get("X-Export-Rows"))
	assert.Equal(t, "booking_id\n101\n", w.Body.String())
	assert.Equal(t, []string{"101", "102"}, svc.got.BookingIDs)
	assert.True(t, svc.got.ExcludeCancelled)
}

func TestExportBookings_Rejects(t *testing.T) {
	svc := &fakeExporter{err: errors.NewValidationFailedError("bookingIds or mockExamId is required")}
	r := newTestRouter(t, Dependencies{Export: svc})

	w := doRequest(r, http.MethodPost, "/api/admin/bookings/export", map[string]interface{}{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/api/admin/bookings/export", map[string]interface{}{"bookingIds": "101"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ==========================
// CRM search
// ==========================

func TestCRMSearch(t *testing.T) {
	r := newTestRouter(t, Dependencies{Search: &fakeSearch{}})

	w := doRequest(r, http.MethodPost, "/api/admin/crm/search", map[string]interface{}{
		"objectType": "bookings",
		"filters":    []interface{}{map[string]interface{}{"propertyName": "mock_exam_id", "operator": "EQ", "value": 55}},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestCRMSearch_InvalidBody(t *testing.T) {
	r := newTestRouter(t, Dependencies{Search: &fakeSearch{}})

	w := doRequest(r, http.MethodPost, "/api/admin/crm/search", map[string]interface{}{"limit": 5}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCRMSearch_RateLimited(t *testing.T) {
	r := newTestRouter(t, Dependencies{Search: &fakeSearch{err: errors.NewCRMRateLimitedError("search")}})

	w := doRequest(r, http.MethodPost, "/api/admin/crm/search", map[string]interface{}{"objectType": "contacts"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("Retry-After"))
}

// ==========================
// Server
// ==========================

func TestServer_CORS(t *testing.T) {
	r := newTestRouter(t, Dependencies{})
	srv := NewServer(":0", r, []string{"https://admin.prepdoctors.test"}, logger.NewTestLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://admin.prepdoctors.test")
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://admin.prepdoctors.test", w.Header().Get("Access-Control-Allow-Origin"))
}
