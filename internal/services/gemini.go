package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

// LLMService produces one JSON document for a prompt. Implementations make
// a single attempt per call.
type LLMService interface {
	GenerateJSON(ctx context.Context, systemInstruction, prompt string) (string, error)
	Provider() string
}

// ProviderError is an error response returned by the LLM provider's API, as
// opposed to a failure to reach it.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

type GeminiOptions struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

type geminiService struct {
	client          *genai.Client
	modelName       string
	temperature     float32
	maxOutputTokens int32
	schema          *genai.Schema
}

func NewGeminiService(ctx context.Context, opts GeminiOptions) (LLMService, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &geminiService{
		client:          client,
		modelName:       model,
		temperature:     opts.Temperature,
		maxOutputTokens: opts.MaxOutputTokens,
		schema:          matchResultGenaiSchema(),
	}, nil
}

// Provider implements LLMService.
func (g *geminiService) Provider() string {
	return "gemini"
}

// GenerateJSON implements LLMService.
func (g *geminiService) GenerateJSON(ctx context.Context, systemInstruction, prompt string) (string, error) {
	temperature := g.temperature
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   g.schema,
	}
	if g.maxOutputTokens > 0 {
		config.MaxOutputTokens = g.maxOutputTokens
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			log.Printf("❌ Gemini API error %d: %s\n", apiErr.Code, apiErr.Message)
			return "", &ProviderError{Provider: g.Provider(), StatusCode: apiErr.Code, Message: apiErr.Message, Cause: err}
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil {
		return "", &ProviderError{Provider: g.Provider(), Message: "no response generated (nil response)"}
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		reason := "no text content in response"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			reason = fmt.Sprintf("%s (finish reason: %s)", reason, resp.Candidates[0].FinishReason)
		}
		return "", &ProviderError{Provider: g.Provider(), Message: reason}
	}

	return text, nil
}
