package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultMoonshotBaseURL = "https://api.moonshot.ai/v1/chat/completions"
	defaultMoonshotModel   = "kimi-k2-0711-preview"
	defaultMoonshotTimeout = 45 * time.Second
)

type moonshotRequest struct {
	Model       string            `json:"model"`
	Messages    []moonshotMessage `json:"messages"`
	Temperature *float32          `json:"temperature,omitempty"`
	TopP        *float32          `json:"top_p,omitempty"`
	MaxTokens   *int              `json:"max_tokens,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
}

type moonshotMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type moonshotResponse struct {
	ID      string           `json:"id"`
	Choices []moonshotChoice `json:"choices"`
	Usage   moonshotUsage    `json:"usage"`
	Error   *moonshotError   `json:"error,omitempty"`
}

type moonshotChoice struct {
	Message      moonshotMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type moonshotUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type moonshotError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// --- Client Implementation ---

// MoonshotClient adapts Moonshot AI's Kimi-K2 chat endpoint. The API
// is OpenAI-wire compatible but we keep a raw REST client so a wire
// drift on their side never blocks us on an SDK release.
type MoonshotClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewMoonshotClient() (*MoonshotClient, error) {
	apiKey := os.Getenv("MOONSHOT_API_KEY")
	model := os.Getenv("KIMI_MODEL")
	baseURL := os.Getenv("MOONSHOT_BASE_URL")

	if apiKey == "" {
		secretPath := "/run/secrets/moonshot_api_key"
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("Read Moonshot API Key from Podman Secrets")
		}
	}
	if apiKey == "" {
		slog.Warn("Moonshot API Key is missing.")
		return nil, fmt.Errorf("MOONSHOT_API_KEY is missing")
	}
	if model == "" {
		model = defaultMoonshotModel
		slog.Info("KIMI_MODEL not set, defaulting to", "model", model)
	}
	if baseURL == "" {
		baseURL = defaultMoonshotBaseURL
	}

	return &MoonshotClient{
		httpClient: &http.Client{Timeout: defaultMoonshotTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}, nil
}

// ID implements CompletionClient.
func (m *MoonshotClient) ID() BackendID { return BackendKimiK2 }

// Complete implements CompletionClient.
func (m *MoonshotClient) Complete(ctx context.Context, prompt string, params GenerationParams) (*Completion, error) {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultMoonshotTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqBody := moonshotRequest{
		Model: m.model,
		Messages: []moonshotMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   params.MaxTokens,
		Stop:        params.Stop,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, NewAdapterError(BackendKimiK2, KindMalformed, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, NewAdapterError(BackendKimiK2, KindUnavailable, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	slog.Debug("Dispatching completion to Moonshot", "model", m.model)
	start := time.Now()
	resp, err := m.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		kind := KindUnavailable
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		slog.Error("Moonshot API call failed", "error", err, "latency_ms", latency.Milliseconds())
		return nil, NewAdapterError(BackendKimiK2, kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewAdapterError(BackendKimiK2, KindMalformed, fmt.Errorf("failed to read response body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewAdapterError(BackendKimiK2, KindRateLimited, fmt.Errorf("moonshot rate limited: %s", string(body)))
	case resp.StatusCode >= 500:
		return nil, NewAdapterError(BackendKimiK2, KindUnavailable, fmt.Errorf("moonshot server error %d: %s", resp.StatusCode, string(body)))
	case resp.StatusCode != http.StatusOK:
		return nil, NewAdapterError(BackendKimiK2, KindMalformed, fmt.Errorf("moonshot error %d: %s", resp.StatusCode, string(body)))
	}

	var parsed moonshotResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, NewAdapterError(BackendKimiK2, KindMalformed, fmt.Errorf("failed to decode response: %w", err))
	}
	if parsed.Error != nil {
		return nil, NewAdapterError(BackendKimiK2, KindMalformed, fmt.Errorf("moonshot API error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, NewAdapterError(BackendKimiK2, KindMalformed, fmt.Errorf("moonshot returned no choices"))
	}

	tokens := parsed.Usage.TotalTokens
	if tokens == 0 {
		tokens = estimateTokens(prompt) + estimateTokens(parsed.Choices[0].Message.Content)
	}
	slog.Debug("Received response from Moonshot",
		"finish_reason", parsed.Choices[0].FinishReason,
		"tokens", tokens,
		"latency_ms", latency.Milliseconds())
	return &Completion{
		Text:         parsed.Choices[0].Message.Content,
		Backend:      BackendKimiK2,
		LatencyMs:    latency.Milliseconds(),
		TokensUsed:   tokens,
		CostEstimate: EstimateCost(BackendKimiK2, tokens),
	}, nil
}
