package transformlogincredits

import (
	"context"
	stderrors "errors"

	"mockexam-workers/internal/common/errors"
	"mockexam-workers/internal/common/logger"
	"mockexam-workers/internal/common/metrics"
	"mockexam-workers/internal/credits"
)

var errNoCache = stderrors.New("eligibility cache not configured")

type Service struct {
	config *Config
	logger logger.Logger
	cache  EligibilityCache
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		logger: deps.Logger,
		cache:  deps.Cache,
	}
}

// Execute derives the eligibility mapping and, when asked, caches it under
// the student's contact id. Cache failures never fail the job.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	eligibility := credits.Transform(input.LoginResponse)

	output := &Output{
		CreditEligibility:   eligibility,
		CreditDataAvailable: eligibility.Available(),
		EligibleCategories:  eligibility.EligibleCategories(),
	}

	if !output.CreditDataAvailable {
		s.logger.Info("No credit data in login response", nil)
		return output, nil
	}

	if input.CacheResult {
		output.Cached = s.cacheEligibility(ctx, input.LoginResponse, eligibility)
	}

	s.logger.Info("Credit eligibility computed", map[string]interface{}{
		"eligibleCategories": output.EligibleCategories,
		"cached":             output.Cached,
	})

	return output, nil
}

func (s *Service) cacheEligibility(ctx context.Context, resp *credits.LoginResponse, eligibility credits.Eligibility) bool {
	if s.cache == nil || resp == nil || resp.Identity.ContactID == nil || *resp.Identity.ContactID == "" {
		return false
	}

	key := s.CacheKey(*resp.Identity.ContactID)
	if err := s.cache.SetJSON(ctx, key, eligibility, s.config.CacheTTL); err != nil {
		metrics.EligibilityCacheWrites.WithLabelValues("error").Inc()
		stdErr := errors.NewCacheWriteFailedError(key, err)
		s.logger.Warn("Failed to cache credit eligibility", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		return false
	}

	metrics.EligibilityCacheWrites.WithLabelValues("ok").Inc()
	return true
}

// Cached returns the mapping last cached for contactID.
func (s *Service) Cached(ctx context.Context, contactID string) (credits.Eligibility, error) {
	if s.cache == nil {
		return nil, errors.NewCacheReadFailedError(s.CacheKey(contactID), errNoCache)
	}

	key := s.CacheKey(contactID)
	eligibility := credits.Eligibility{}
	found, err := s.cache.GetJSON(ctx, key, &eligibility)
	if err != nil {
		return nil, errors.NewCacheReadFailedError(key, err)
	}
	if !found {
		return nil, errors.NewEligibilityNotCachedError(contactID)
	}
	return eligibility, nil
}

func (s *Service) CacheKey(contactID string) string {
	return s.config.CacheKeyPrefix + contactID
}
