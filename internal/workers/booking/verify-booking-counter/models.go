package verifybookingcounter

import (
	"context"
	"time"

	"mockexam-workers/internal/common/hubspot"
	"mockexam-workers/internal/common/logger"
	"mockexam-workers/internal/common/observability"
)

type Input struct {
	MockExamID   string `json:"mockExamId"`
	AlertOnDrift bool   `json:"alertOnDrift"`
}

// Output is one verification result. Drift is the Redis count minus the
// HubSpot count.
type Output struct {
	CheckID         string    `json:"checkId"`
	MockExamID      string    `json:"mockExamId"`
	RedisCount      int64     `json:"redisCount"`
	HubSpotCount    int64     `json:"hubspotCount"`
	Drift           int64     `json:"drift"`
	InSync          bool      `json:"inSync"`
	RedisKeyPresent bool      `json:"redisKeyPresent"`
	CheckedAt       time.Time `json:"checkedAt"`
	AlertPublished  bool      `json:"alertPublished"`
}

type DriftAlert struct {
	Type            string    `json:"type"`
	CheckID         string    `json:"checkId"`
	MockExamID      string    `json:"mockExamId"`
	RedisKey        string    `json:"redisKey"`
	RedisCount      int64     `json:"redisCount"`
	HubSpotCount    int64     `json:"hubspotCount"`
	Drift           int64     `json:"drift"`
	RedisKeyPresent bool      `json:"redisKeyPresent"`
	CheckedAt       time.Time `json:"checkedAt"`
}

type CounterReader interface {
	GetCounter(ctx context.Context, key string) (int64, bool, error)
}

type MockExamReader interface {
	GetObject(ctx context.Context, objectType, id string, properties []string) (*hubspot.Object, error)
}

type AuditStore interface {
	RecordCheck(ctx context.Context, check *Output) error
}

type DriftAlerter interface {
	PublishJSON(ctx context.Context, topicARN, subject string, payload interface{}) (string, error)
}

type ServiceDependencies struct {
	Logger        logger.Logger
	Counters      CounterReader
	MockExams     MockExamReader
	Audit         AuditStore
	Alerter       DriftAlerter
	Observability *observability.Observability
}
