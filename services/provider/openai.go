package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAITimeout = 30 * time.Second

// OpenAIClient adapts the hosted OpenAI chat-completion API to the
// CompletionClient contract.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient builds the adapter from the environment. The API key
// comes from OPENAI_API_KEY or, failing that, the conventional Podman
// secret mount.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI backend adapter", "model", model)
	return &OpenAIClient{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: defaultOpenAITimeout,
	}, nil
}

// ID implements CompletionClient.
func (o *OpenAIClient) ID() BackendID { return BackendOpenAI }

// Complete implements CompletionClient.
func (o *OpenAIClient) Complete(ctx context.Context, prompt string, params GenerationParams) (*Completion, error) {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = o.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	slog.Debug("Dispatching completion to OpenAI", "model", o.model)
	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	latency := time.Since(start)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err, "latency_ms", latency.Milliseconds())
		return nil, NewAdapterError(BackendOpenAI, classifyOpenAIError(ctx, err), err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		slog.Warn("OpenAI returned no choices or empty content")
		return nil, NewAdapterError(BackendOpenAI, KindMalformed, fmt.Errorf("OpenAI returned no choices"))
	}

	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = estimateTokens(prompt) + estimateTokens(resp.Choices[0].Message.Content)
	}
	slog.Debug("Received response from OpenAI",
		"finish_reason", resp.Choices[0].FinishReason,
		"tokens", tokens,
		"latency_ms", latency.Milliseconds())
	return &Completion{
		Text:         resp.Choices[0].Message.Content,
		Backend:      BackendOpenAI,
		LatencyMs:    latency.Milliseconds(),
		TokensUsed:   tokens,
		CostEstimate: EstimateCost(BackendOpenAI, tokens),
	}, nil
}

// classifyOpenAIError maps the SDK's error shapes onto the adapter
// taxonomy. Context expiry wins over the SDK's wrapped transport error
// because the SDK surfaces deadline failures inconsistently.
func classifyOpenAIError(ctx context.Context, err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return KindRateLimited
		case apiErr.HTTPStatusCode >= 500:
			return KindUnavailable
		default:
			return KindMalformed
		}
	}
	return KindUnavailable
}
