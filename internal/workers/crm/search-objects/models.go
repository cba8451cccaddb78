package searchobjects

import (
	"context"

	"mockexam-workers/internal/common/hubspot"
	"mockexam-workers/internal/common/logger"
)

type Filter struct {
	PropertyName string   `json:"propertyName"`
	Operator     string   `json:"operator"`
	Value        string   `json:"value,omitempty"`
	HighValue    string   `json:"highValue,omitempty"`
	Values       []string `json:"values,omitempty"`
}

type Sort struct {
	PropertyName string `json:"propertyName"`
	Direction    string `json:"direction"`
}

type Input struct {
	ObjectType string   `json:"objectType"`
	Filters    []Filter `json:"filters,omitempty"`
	Properties []string `json:"properties,omitempty"`
	Sorts      []Sort   `json:"sorts,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	After      string   `json:"after,omitempty"`
}

type Result struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type Output struct {
	Results   []Result `json:"results"`
	Total     int      `json:"total"`
	NextAfter string   `json:"nextAfter"`
}

type ObjectSearcher interface {
	SearchObjects(ctx context.Context, objectType string, req hubspot.SearchRequest) (*hubspot.SearchResponse, error)
}

type ServiceDependencies struct {
	Logger   logger.Logger
	Searcher ObjectSearcher
}
