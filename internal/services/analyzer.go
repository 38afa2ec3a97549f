package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"alfredoptarigan/job-matcher/internal/models"
)

// DefaultAnalysisTimeout bounds a single candidate/job analysis.
const DefaultAnalysisTimeout = 30 * time.Second

// Analyzer scores one job against one candidate. Every error it returns is
// a *MatchError.
type Analyzer interface {
	Analyze(ctx context.Context, candidate string, job models.JobRecord) (*models.MatchResult, error)
}

type llmAnalyzer struct {
	llm     LLMService
	prompts *PromptBuilder
	limiter *rate.Limiter
	timeout time.Duration
}

// NewLLMAnalyzer scores jobs in-process through an LLMService. A nil limiter
// disables rate limiting. A zero timeout uses DefaultAnalysisTimeout.
func NewLLMAnalyzer(llm LLMService, prompts *PromptBuilder, limiter *rate.Limiter, timeout time.Duration) Analyzer {
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}
	return &llmAnalyzer{
		llm:     llm,
		prompts: prompts,
		limiter: limiter,
		timeout: timeout,
	}
}

// Analyze implements Analyzer.
func (a *llmAnalyzer) Analyze(ctx context.Context, candidate string, job models.JobRecord) (*models.MatchResult, error) {
	if strings.TrimSpace(candidate) == "" {
		return nil, newValidationError("candidate text is required")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, classifyCallError(ctx, ctx.Err(), a.timeout)
			}
			// Wait fails early when the next token lies past the deadline
			return nil, classifyCallError(ctx, fmt.Errorf("%w: %v", context.DeadlineExceeded, err), a.timeout)
		}
	}

	prompt := a.prompts.BuildMatchPrompt(candidate, job)
	text, err := a.llm.GenerateJSON(ctx, a.prompts.SystemInstruction(), prompt)
	if err != nil {
		log.Printf("⚠️ %s analysis failed: %v\n", a.llm.Provider(), err)
		return nil, classifyCallError(ctx, err, a.timeout)
	}

	raw, ok := ExtractJSONObject(text)
	if !ok {
		return nil, newMalformedError("response did not contain a JSON object", nil)
	}

	return ValidateMatchResult(raw)
}

// classifyCallError maps a failed outbound call onto a MatchError kind.
func classifyCallError(ctx context.Context, err error, timeout time.Duration) *MatchError {
	var me *MatchError
	if errors.As(err, &me) {
		return me
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &MatchError{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("analysis timed out after %s", timeout),
			Cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return &MatchError{Kind: KindTransport, Message: "request cancelled", Cause: err}
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return &MatchError{
			Kind:       KindService,
			Message:    pe.Error(),
			StatusCode: pe.StatusCode,
			Cause:      err,
		}
	}

	return &MatchError{Kind: KindTransport, Message: err.Error(), Cause: err}
}
