// Package analytics provides a client for a GA4-style reporting API.
// Every query is filtered by the per-action custom dimension so that the
// returned metrics describe traffic touched by exactly one action.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://analyticsdata.googleapis.com/v1beta"
	// ActionKeyDimension is the custom event dimension carrying the action key
	ActionKeyDimension = "customEvent:action_key"
)

// Metric names requested from the reporting API, in response order
var reportMetrics = []string{
	"sessions",
	"screenPageViews",
	"addToCarts",
	"ecommercePurchases",
	"purchaseRevenue",
}

// Metrics are the raw totals for one action over one trailing window
type Metrics struct {
	Sessions   int64
	Pageviews  int64
	AddToCarts int64
	Purchases  int64
	Revenue    float64
}

// UnknownDimensionValue is the API error reported for an action key the
// property has never recorded
const UnknownDimensionValue = "unknown_dimension_value"

// QueryError describes a failed report query.
// Transient errors (transport failures, timeouts, throttling, 5xx) are worth
// retrying; permanent ones (bad request, unknown key, malformed payload) are not.
type QueryError struct {
	StatusCode int
	Transient  bool
	Message    string
}

func (e *QueryError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("analytics query failed (%s, status %d): %s", kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("analytics query failed (%s): %s", kind, e.Message)
}

// IsTransient reports whether err is a retryable analytics failure
func IsTransient(err error) bool {
	var queryErr *QueryError
	if errors.As(err, &queryErr) {
		return queryErr.Transient
	}
	return false
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type metricSpec struct {
	Name string `json:"name"`
}

type stringFilter struct {
	Value     string `json:"value"`
	MatchType string `json:"matchType"`
}

type fieldFilter struct {
	FieldName    string       `json:"fieldName"`
	StringFilter stringFilter `json:"stringFilter"`
}

type filterExpression struct {
	Filter fieldFilter `json:"filter"`
}

type reportRequest struct {
	DateRanges      []dateRange      `json:"dateRanges"`
	Metrics         []metricSpec     `json:"metrics"`
	DimensionFilter filterExpression `json:"dimensionFilter"`
}

type metricValue struct {
	Value string `json:"value"`
}

type reportRow struct {
	MetricValues []metricValue `json:"metricValues"`
}

type reportResponse struct {
	MetricHeaders []metricSpec `json:"metricHeaders"`
	Rows          []reportRow  `json:"rows"`
	RowCount      int          `json:"rowCount"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Client is the analytics reporting API client
type Client struct {
	baseURL    string
	propertyID string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new analytics client.
// An empty baseURL selects the public reporting endpoint.
func NewClient(baseURL, propertyID, apiKey string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		propertyID: propertyID,
		apiKey:     apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("component", "analytics").Logger(),
	}
}

// Query fetches totals for actionKey over the trailing windowDays.
// All failures are returned as *QueryError.
func (c *Client) Query(ctx context.Context, actionKey string, windowDays int) (Metrics, error) {
	if actionKey == "" {
		return Metrics{}, &QueryError{Message: "action key is required"}
	}
	if windowDays <= 0 {
		return Metrics{}, &QueryError{Message: fmt.Sprintf("invalid window: %d days", windowDays)}
	}

	body, err := json.Marshal(buildReportRequest(actionKey, windowDays))
	if err != nil {
		return Metrics{}, &QueryError{Message: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	url := fmt.Sprintf("%s/properties/%s:runReport", c.baseURL, c.propertyID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return Metrics{}, &QueryError{Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log.Debug().
		Str("action_key", actionKey).
		Int("window_days", windowDays).
		Msg("Querying analytics report")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Cancellation is the caller's decision, never worth retrying
		if ctx.Err() != nil {
			return Metrics{}, &QueryError{Message: ctx.Err().Error()}
		}
		return Metrics{}, &QueryError{Transient: true, Message: fmt.Sprintf("HTTP request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Metrics{}, &QueryError{StatusCode: resp.StatusCode, Transient: true, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return Metrics{}, &QueryError{
			StatusCode: resp.StatusCode,
			Transient:  transientStatus(resp.StatusCode) && !unknownDimensionValue(respBody),
			Message:    errorMessage(respBody),
		}
	}

	var report reportResponse
	if err := json.Unmarshal(respBody, &report); err != nil {
		return Metrics{}, &QueryError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}

	metrics, err := parseReport(report)
	if err != nil {
		return Metrics{}, &QueryError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return metrics, nil
}

func buildReportRequest(actionKey string, windowDays int) reportRequest {
	specs := make([]metricSpec, len(reportMetrics))
	for i, name := range reportMetrics {
		specs[i] = metricSpec{Name: name}
	}
	return reportRequest{
		DateRanges: []dateRange{{StartDate: fmt.Sprintf("%ddaysAgo", windowDays), EndDate: "today"}},
		Metrics:    specs,
		DimensionFilter: filterExpression{
			Filter: fieldFilter{
				FieldName:    ActionKeyDimension,
				StringFilter: stringFilter{Value: actionKey, MatchType: "EXACT"},
			},
		},
	}
}

// transientStatus classifies HTTP status codes: timeouts, throttling and 5xx retry
func transientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}

// unknownDimensionValue reports an explicit unknown-key error body; such an
// error is permanent at any status code
func unknownDimensionValue(body []byte) bool {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return false
	}
	return strings.Contains(apiErr.Error.Message, UnknownDimensionValue) ||
		strings.Contains(apiErr.Error.Status, strings.ToUpper(UnknownDimensionValue))
}

func errorMessage(body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		if apiErr.Error.Status != "" {
			return apiErr.Error.Status + ": " + apiErr.Error.Message
		}
		return apiErr.Error.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

// parseReport sums every returned row; a report with no rows is all zeros
func parseReport(report reportResponse) (Metrics, error) {
	index := make(map[string]int, len(report.MetricHeaders))
	for i, header := range report.MetricHeaders {
		index[header.Name] = i
	}
	// Servers that omit headers answer in request order
	if len(index) == 0 {
		for i, name := range reportMetrics {
			index[name] = i
		}
	}

	var m Metrics
	for _, row := range report.Rows {
		values := make([]float64, len(reportMetrics))
		for j, name := range reportMetrics {
			pos, ok := index[name]
			if !ok || pos >= len(row.MetricValues) {
				return Metrics{}, fmt.Errorf("malformed response: missing metric %s", name)
			}
			v, err := strconv.ParseFloat(row.MetricValues[pos].Value, 64)
			if err != nil {
				return Metrics{}, fmt.Errorf("malformed response: metric %s: %w", name, err)
			}
			values[j] = v
		}
		m.Sessions += int64(values[0])
		m.Pageviews += int64(values[1])
		m.AddToCarts += int64(values[2])
		m.Purchases += int64(values[3])
		m.Revenue += values[4]
	}
	return m, nil
}
