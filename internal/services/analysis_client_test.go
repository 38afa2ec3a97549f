package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/job-matcher/internal/models"
)

func TestHTTPAnalyzer_Success(t *testing.T) {
	var got models.AnalyzeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(validMatchJSON))
	}))
	defer server.Close()

	analyzer := NewHTTPAnalyzer(server.URL, server.Client(), time.Second)
	result, err := analyzer.Analyze(context.Background(), "candidate", backendJob)
	require.NoError(t, err)

	assert.Equal(t, 82.5, result.OverallScore)
	assert.Equal(t, "candidate", got.CandidateText)
	assert.Equal(t, "Backend Engineer", got.Job["position"])
}

func TestHTTPAnalyzer_ErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   ErrorKind
		wantMsg    string
		wantStatus int
	}{
		{
			name:       "server error with message",
			status:     http.StatusBadGateway,
			body:       `{"error": "gemini API error (503): overloaded", "kind": "service"}`,
			wantKind:   KindService,
			wantMsg:    "gemini API error (503): overloaded",
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "server error without body",
			status:     http.StatusInternalServerError,
			body:       "",
			wantKind:   KindService,
			wantMsg:    "server error (500)",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:     "non JSON body",
			status:   http.StatusOK,
			body:     "<html>oops</html>",
			wantKind: KindMalformedResponse,
		},
		{
			name:       "error field on success",
			status:     http.StatusOK,
			body:       `{"error": "model refused"}`,
			wantKind:   KindService,
			wantMsg:    "model refused",
			wantStatus: http.StatusOK,
		},
		{
			name:     "wrong shape",
			status:   http.StatusOK,
			body:     `{"overallScore": "high"}`,
			wantKind: KindMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewHTTPAnalyzer(server.URL, nil, time.Second).Analyze(context.Background(), "candidate", backendJob)
			require.Error(t, err)

			var me *MatchError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, tt.wantKind, me.Kind)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, me.Message)
			}
			assert.Equal(t, tt.wantStatus, me.StatusCode)
		})
	}
}

func TestHTTPAnalyzer_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewHTTPAnalyzer(server.URL, nil, 20*time.Millisecond).Analyze(context.Background(), "candidate", backendJob)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestHTTPAnalyzer_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPAnalyzer(url, nil, time.Second).Analyze(context.Background(), "candidate", backendJob)
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestAnalyzeStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, AnalyzeStatus(newValidationError("x")))
	assert.Equal(t, http.StatusGatewayTimeout, AnalyzeStatus(&MatchError{Kind: KindTimeout}))
	assert.Equal(t, http.StatusBadGateway, AnalyzeStatus(&MatchError{Kind: KindService}))
	assert.Equal(t, http.StatusBadGateway, AnalyzeStatus(&MatchError{Kind: KindMalformedResponse}))
	assert.Equal(t, http.StatusInternalServerError, AnalyzeStatus(errors.New("other")))
}
