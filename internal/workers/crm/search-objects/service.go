package searchobjects

import (
	"context"
	"fmt"
	"strings"

	"mockexam-workers/internal/common/errors"
	"mockexam-workers/internal/common/hubspot"
	"mockexam-workers/internal/common/logger"
)

type Service struct {
	config   *Config
	logger   logger.Logger
	searcher ObjectSearcher
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config:   config,
		logger:   deps.Logger,
		searcher: deps.Searcher,
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if s.searcher == nil {
		return nil, errors.NewCRMNotConfiguredError()
	}

	limit := input.Limit
	if limit == 0 {
		limit = s.config.DefaultLimit
	}

	resp, err := s.searcher.SearchObjects(ctx, input.ObjectType, BuildSearchRequest(input, limit))
	if err != nil {
		return nil, hubspot.ToStandardError("search "+input.ObjectType, err)
	}

	output := &Output{
		Results:   make([]Result, 0, len(resp.Results)),
		Total:     resp.Total,
		NextAfter: resp.NextAfter(),
	}
	for _, obj := range resp.Results {
		props := obj.Properties
		if props == nil {
			props = map[string]string{}
		}
		output.Results = append(output.Results, Result{ID: obj.ID, Properties: props})
	}

	s.logger.Info("CRM search completed", map[string]interface{}{
		"objectType": input.ObjectType,
		"filters":    len(input.Filters),
		"returned":   len(output.Results),
		"total":      output.Total,
	})

	return output, nil
}

// BuildSearchRequest puts all filters in one group so HubSpot ANDs them.
func BuildSearchRequest(input *Input, limit int) hubspot.SearchRequest {
	req := hubspot.SearchRequest{
		Properties: input.Properties,
		Limit:      limit,
		After:      input.After,
	}

	if len(input.Filters) > 0 {
		group := hubspot.FilterGroup{Filters: make([]hubspot.Filter, 0, len(input.Filters))}
		for _, f := range input.Filters {
			group.Filters = append(group.Filters, hubspot.Filter{
				PropertyName: f.PropertyName,
				Operator:     f.Operator,
				Value:        f.Value,
				HighValue:    f.HighValue,
				Values:       f.Values,
			})
		}
		req.FilterGroups = []hubspot.FilterGroup{group}
	}

	for _, s := range input.Sorts {
		direction := strings.ToUpper(s.Direction)
		if direction == "" {
			direction = "ASCENDING"
		}
		req.Sorts = append(req.Sorts, hubspot.Sort{PropertyName: s.PropertyName, Direction: direction})
	}

	return req
}

func validateInput(input *Input) error {
	if strings.TrimSpace(input.ObjectType) == "" {
		return errors.NewValidationFailedError("objectType is required")
	}
	if input.Limit < 0 || input.Limit > hubspot.MaxPageSize {
		return errors.NewValidationFailedError(fmt.Sprintf("limit must be between 1 and %d", hubspot.MaxPageSize))
	}
	for i, f := range input.Filters {
		if f.PropertyName == "" {
			return errors.NewValidationFailedError(fmt.Sprintf("filters[%d].propertyName is required", i))
		}
		if !hubspot.ValidOperator(f.Operator) {
			return errors.NewValidationFailedError(fmt.Sprintf("filters[%d].operator %q is not supported", i, f.Operator))
		}
	}
	return nil
}
