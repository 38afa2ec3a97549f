package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"alfredoptarigan/job-matcher/internal/models"
)

const maxAnalysisResponseBytes = 1 << 20

type httpAnalyzer struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

// NewHTTPAnalyzer scores jobs by POSTing to a remote endpoint that speaks
// the same contract as POST /api/v1/analyze. A nil client uses
// http.DefaultClient.
func NewHTTPAnalyzer(endpoint string, client *http.Client, timeout time.Duration) Analyzer {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}
	return &httpAnalyzer{
		endpoint: endpoint,
		client:   client,
		timeout:  timeout,
	}
}

// Analyze implements Analyzer.
func (a *httpAnalyzer) Analyze(ctx context.Context, candidate string, job models.JobRecord) (*models.MatchResult, error) {
	if strings.TrimSpace(candidate) == "" {
		return nil, newValidationError("candidate text is required")
	}

	payload, err := json.Marshal(models.AnalyzeRequest{CandidateText: candidate, Job: job})
	if err != nil {
		return nil, newValidationError("failed to encode analysis request: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &MatchError{Kind: KindTransport, Message: "failed to build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, classifyCallError(ctx, err, a.timeout)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnalysisResponseBytes))
	if err != nil {
		return nil, classifyCallError(ctx, err, a.timeout)
	}

	isJSON := gjson.ValidBytes(body)
	errMsg := ""
	if isJSON {
		if e := gjson.GetBytes(body, "error"); e.Exists() && e.String() != "" {
			errMsg = e.String()
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if errMsg == "" {
			errMsg = fmt.Sprintf("server error (%d)", resp.StatusCode)
		}
		return nil, &MatchError{Kind: KindService, Message: errMsg, StatusCode: resp.StatusCode}
	}

	if !isJSON {
		return nil, newMalformedError("response body is not JSON", nil)
	}
	if errMsg != "" {
		return nil, &MatchError{Kind: KindService, Message: errMsg, StatusCode: resp.StatusCode}
	}

	return ValidateMatchResult(string(body))
}

// AnalyzeStatus maps a MatchError onto the HTTP status the analyze endpoint
// answers with.
func AnalyzeStatus(err error) int {
	var me *MatchError
	if !errors.As(err, &me) {
		return http.StatusInternalServerError
	}
	switch me.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
