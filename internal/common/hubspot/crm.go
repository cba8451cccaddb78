package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"mockexam-workers/internal/common/config"
	commonerrors "mockexam-workers/internal/common/errors"
	commonhttp "mockexam-workers/internal/common/http"
	"mockexam-workers/internal/common/metrics"
)

const (
	ObjectContacts  = "contacts"
	ObjectBookings  = "bookings"
	ObjectMockExams = "mock_exams"

	MaxPageSize  = 100
	maxBatchSize = 100
)

// ErrNotFound is returned when HubSpot answers 404 for an object.
var ErrNotFound = errors.New("hubspot object not found")

// APIError carries a non-2xx HubSpot response.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot %s failed (status %d): %s", e.Operation, e.StatusCode, e.Body)
}

func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ToStandardError maps a client failure to CRM_RATE_LIMITED or CRM_API_ERROR.
// Callers handle ErrNotFound themselves since its meaning depends on the object.
func ToStandardError(operation string, err error) *commonerrors.StandardError {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RateLimited() {
		return commonerrors.NewCRMRateLimitedError(operation)
	}
	return commonerrors.NewCRMAPIError(operation, err)
}

var operators = map[string]bool{
	"EQ": true, "NEQ": true,
	"LT": true, "LTE": true, "GT": true, "GTE": true,
	"BETWEEN": true, "IN": true, "NOT_IN": true,
	"HAS_PROPERTY": true, "NOT_HAS_PROPERTY": true,
	"CONTAINS_TOKEN": true, "NOT_CONTAINS_TOKEN": true,
}

// ValidOperator reports whether op is a HubSpot search filter operator.
func ValidOperator(op string) bool {
	return operators[op]
}

// Operators lists the search filter operators, sorted.
func Operators() []string {
	out := make([]string, 0, len(operators))
	for op := range operators {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

type Filter struct {
	PropertyName string   `json:"propertyName"`
	Operator     string   `json:"operator"`
	Value        string   `json:"value,omitempty"`
	HighValue    string   `json:"highValue,omitempty"`
	Values       []string `json:"values,omitempty"`
}

type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

type Sort struct {
	PropertyName string `json:"propertyName"`
	Direction    string `json:"direction"`
}

type SearchRequest struct {
	FilterGroups []FilterGroup `json:"filterGroups,omitempty"`
	Properties   []string      `json:"properties,omitempty"`
	Sorts        []Sort        `json:"sorts,omitempty"`
	Limit        int           `json:"limit"`
	After        string        `json:"after,omitempty"`
}

type Object struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	CreatedAt  string            `json:"createdAt,omitempty"`
	UpdatedAt  string            `json:"updatedAt,omitempty"`
	Archived   bool              `json:"archived,omitempty"`
}

type Paging struct {
	Next *struct {
		After string `json:"after"`
	} `json:"next,omitempty"`
}

type SearchResponse struct {
	Total   int      `json:"total"`
	Results []Object `json:"results"`
	Paging  *Paging  `json:"paging,omitempty"`
}

// NextAfter returns the cursor for the next page, or "" on the last page.
func (r *SearchResponse) NextAfter() string {
	if r == nil || r.Paging == nil || r.Paging.Next == nil {
		return ""
	}
	return r.Paging.Next.After
}

type CRMClient struct {
	accessToken string
	baseURL     string
	objectTypes map[string]string
	httpClient  *commonhttp.Client
}

func NewCRMClient(cfg config.HubSpotConfig) *CRMClient {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	types := make(map[string]string, len(config.DefaultObjectTypes))
	for alias, id := range config.DefaultObjectTypes {
		types[alias] = id
	}
	for alias, id := range cfg.ObjectTypes {
		if id != "" {
			types[alias] = id
		}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.hubapi.com"
	}

	return &CRMClient{
		accessToken: cfg.AccessToken,
		baseURL:     baseURL,
		objectTypes: types,
		httpClient:  commonhttp.NewClient(timeout, commonhttp.WithRetries(cfg.MaxRetries)),
	}
}

// ObjectTypeID resolves an alias such as "bookings" to its HubSpot type id.
// Unknown values are passed through as raw ids.
func (c *CRMClient) ObjectTypeID(objectType string) string {
	if id, ok := c.objectTypes[objectType]; ok {
		return id
	}
	return objectType
}

func (c *CRMClient) SearchObjects(ctx context.Context, objectType string, req SearchRequest) (*SearchResponse, error) {
	if req.Limit <= 0 || req.Limit > MaxPageSize {
		req.Limit = MaxPageSize
	}

	path := fmt.Sprintf("/crm/v3/objects/%s/search", url.PathEscape(c.ObjectTypeID(objectType)))

	var resp SearchResponse
	if err := c.do(ctx, "search", http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *CRMClient) GetObject(ctx context.Context, objectType, id string, properties []string) (*Object, error) {
	path := fmt.Sprintf("/crm/v3/objects/%s/%s", url.PathEscape(c.ObjectTypeID(objectType)), url.PathEscape(id))
	if len(properties) > 0 {
		path += "?" + url.Values{"properties": {strings.Join(properties, ",")}}.Encode()
	}

	var obj Object
	if err := c.do(ctx, "get", http.MethodGet, path, nil, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// BatchReadObjects reads ids in chunks of 100. Ids HubSpot does not know are
// simply absent from the result.
func (c *CRMClient) BatchReadObjects(ctx context.Context, objectType string, ids []string, properties []string) ([]Object, error) {
	path := fmt.Sprintf("/crm/v3/objects/%s/batch/read", url.PathEscape(c.ObjectTypeID(objectType)))

	type input struct {
		ID string `json:"id"`
	}

	results := make([]Object, 0, len(ids))
	for start := 0; start < len(ids); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		inputs := make([]input, 0, end-start)
		for _, id := range ids[start:end] {
			inputs = append(inputs, input{ID: id})
		}

		body := map[string]interface{}{
			"properties": properties,
			"inputs":     inputs,
		}

		var resp struct {
			Results []Object `json:"results"`
		}
		if err := c.do(ctx, "batch_read", http.MethodPost, path, body, &resp); err != nil {
			return nil, err
		}
		results = append(results, resp.Results...)
	}

	return results, nil
}

// TestConnection runs a one-row contact search to check the token and base URL.
func (c *CRMClient) TestConnection(ctx context.Context) error {
	_, err := c.SearchObjects(ctx, ObjectContacts, SearchRequest{Limit: 1})
	return err
}

func (c *CRMClient) do(ctx context.Context, operation, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.DoWithRetry(ctx, req)
	if err != nil {
		metrics.HubSpotRequests.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("hubspot %s: %w", operation, err)
	}
	defer resp.Body.Close()
	metrics.HubSpotRequests.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}
