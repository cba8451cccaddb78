package registry

import (
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"mockexam-workers/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoFile(t *testing.T, rel string) string {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", rel)
}

func TestLoadRegistry_Catalogue(t *testing.T) {
	reg, err := LoadRegistry(repoFile(t, "configs/activities.json"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"admin.bookings.export",
		"booking.counter.verify",
		"credits.eligibility.transform",
		"crm.objects.search",
	}, reg.TaskTypes())

	activity, ok := reg.Find("booking.counter.verify")
	require.True(t, ok)
	assert.Equal(t, "verify-booking-counter", activity.ID)
	assert.Contains(t, activity.ErrorCodes, "MOCK_EXAM_NOT_FOUND")
	assert.Equal(t, 30*time.Second, activity.TimeoutDuration(time.Minute))

	_, ok = reg.Find("booking.counter.repair")
	assert.False(t, ok)
}

func TestParseRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{name: "bad json", json: `{"activities": [`},
		{name: "bad task type", json: `{"activities": [{"id": "a", "taskType": "Booking-Verify"}]}`},
		{name: "duplicate", json: `{"activities": [
			{"id": "a", "taskType": "booking.counter.verify"},
			{"id": "b", "taskType": "booking.counter.verify"}
		]}`},
		{name: "bad timeout", json: `{"activities": [{"id": "a", "taskType": "booking.counter.verify", "timeout": "soon"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(tt.json))
			assert.Error(t, err)
		})
	}
}

func TestActivity_TimeoutFallback(t *testing.T) {
	a := &Activity{}
	assert.Equal(t, time.Minute, a.TimeoutDuration(time.Minute))
}

func TestActivityRegistry_ApplyTimeouts(t *testing.T) {
	reg, err := ParseRegistry([]byte(`{"activities": [
		{"id": "verify-booking-counter", "taskType": "booking.counter.verify", "timeout": "45s"},
		{"id": "search-objects", "taskType": "crm.objects.search"}
	]}`))
	require.NoError(t, err)

	cfg := &config.Config{Workers: map[string]config.WorkerConfig{
		"verify-booking-counter": {Enabled: false, MaxJobsActive: 3, Timeout: 30000},
		"search-objects":         {Enabled: true, MaxJobsActive: 5, Timeout: 20000},
	}}

	missing := reg.ApplyTimeouts(cfg, map[string]string{
		"verify-booking-counter":  "booking.counter.verify",
		"search-objects":          "crm.objects.search",
		"export-bookings":         "admin.bookings.export",
		"transform-login-credits": "credits.eligibility.transform",
	})

	assert.Equal(t, []string{"admin.bookings.export", "credits.eligibility.transform"}, missing)
	assert.Equal(t, config.WorkerConfig{Enabled: false, MaxJobsActive: 3, Timeout: 45000}, cfg.Workers["verify-booking-counter"])
	assert.Equal(t, 20000, cfg.Workers["search-objects"].Timeout)
	_, ok := cfg.Workers["export-bookings"]
	assert.False(t, ok)
}

func TestActivityRegistry_ApplyTimeoutsAddsMissingWorker(t *testing.T) {
	reg, err := ParseRegistry([]byte(`{"activities": [
		{"id": "export-bookings", "taskType": "admin.bookings.export", "timeout": "2m"}
	]}`))
	require.NoError(t, err)

	cfg := &config.Config{}
	missing := reg.ApplyTimeouts(cfg, map[string]string{"export-bookings": "admin.bookings.export"})

	assert.Empty(t, missing)
	assert.Equal(t, config.WorkerConfig{Enabled: true, Timeout: 120000}, cfg.Workers["export-bookings"])
}

func TestActivityRegistry_AddSetSave(t *testing.T) {
	reg := &ActivityRegistry{Version: "1.0.0"}

	require.NoError(t, reg.Add(Activity{
		ID:          "verify-booking-counter",
		DisplayName: "Verify Booking Counter",
		Category:    "booking",
		TaskType:    "booking.counter.verify",
	}))
	assert.NotEmpty(t, reg.LastUpdated)

	assert.Error(t, reg.Add(Activity{ID: "verify-booking-counter", DisplayName: "x", Category: "x", TaskType: "booking.counter.other"}))
	assert.Error(t, reg.Add(Activity{ID: "other", DisplayName: "x", Category: "x", TaskType: "booking.counter.verify"}))
	assert.Error(t, reg.Add(Activity{ID: "bad", DisplayName: "x", Category: "x", TaskType: "verify"}))

	require.NoError(t, reg.Set("verify-booking-counter", "timeout", "45s"))
	require.NoError(t, reg.Set("verify-booking-counter", "retries", "5"))
	require.NoError(t, reg.Set("verify-booking-counter", "status", "implemented"))
	assert.Error(t, reg.Set("verify-booking-counter", "timeout", "forever"))
	assert.Error(t, reg.Set("verify-booking-counter", "retries", "-1"))
	assert.Error(t, reg.Set("verify-booking-counter", "owner", "ops"))
	assert.Error(t, reg.Set("missing", "status", "implemented"))

	path := filepath.Join(t.TempDir(), "nested", "activities.json")
	require.NoError(t, reg.Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	activity, ok := loaded.Find("booking.counter.verify")
	require.True(t, ok)
	assert.Equal(t, "45s", activity.Timeout)
	assert.Equal(t, 5, activity.Retries)
	assert.Equal(t, "implemented", activity.ImplementationStatus)
}
