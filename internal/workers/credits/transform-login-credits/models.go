package transformlogincredits

import (
	"context"
	"time"

	"mockexam-workers/internal/common/logger"
	"mockexam-workers/internal/credits"
)

type Input struct {
	LoginResponse *credits.LoginResponse
	CacheResult   bool
}

type Output struct {
	CreditEligibility   credits.Eligibility `json:"creditEligibility"`
	CreditDataAvailable bool                `json:"creditDataAvailable"`
	EligibleCategories  []string            `json:"eligibleCategories"`
	Cached              bool                `json:"cached"`
}

// EligibilityCache stores the computed mapping for the booking pages.
type EligibilityCache interface {
	SetJSON(ctx context.Context, key string, v interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, v interface{}) (bool, error)
}

type ServiceDependencies struct {
	Logger logger.Logger
	Cache  EligibilityCache
}
