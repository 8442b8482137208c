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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.integrity.provider")

const (
	defaultQwenModel   = "qwen3"
	defaultQwenTimeout = 2 * time.Minute
)

// qwenGenerateRequest matches the Ollama-style generate endpoint a
// local Qwen3 deployment serves.
type qwenGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type qwenGenerateResponse struct {
	Model           string `json:"model"`
	CreatedAt       string `json:"created_at"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// QwenLocalClient adapts a locally served Qwen3 model (Ollama-style
// API). Local inference is slow on modest hardware, so the default
// budget is generous; the router treats this backend as the zero-cost
// last resort.
type QwenLocalClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewQwenLocalClient() (*QwenLocalClient, error) {
	baseURL := os.Getenv("QWEN_BASE_URL")
	model := os.Getenv("QWEN_MODEL")
	if baseURL == "" {
		return nil, fmt.Errorf("QWEN_BASE_URL environment variable not set")
	}
	if model == "" {
		slog.Warn("QWEN_MODEL not set, defaulting to qwen3")
		model = defaultQwenModel
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing local Qwen3 client", "base_url", baseURL, "model", model)
	return &QwenLocalClient{
		httpClient: &http.Client{Timeout: defaultQwenTimeout},
		baseURL:    baseURL,
		model:      model,
	}, nil
}

// ID implements CompletionClient.
func (q *QwenLocalClient) ID() BackendID { return BackendQwen3 }

// Complete implements CompletionClient.
func (q *QwenLocalClient) Complete(ctx context.Context, prompt string, params GenerationParams) (*Completion, error) {
	ctx, span := tracer.Start(ctx, "QwenLocalClient.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", q.model))

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultQwenTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	options := make(map[string]interface{})
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}
	payload := qwenGenerateRequest{
		Model:   q.model,
		Prompt:  prompt,
		Stream:  false,
		Options: options,
	}

	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewAdapterError(BackendQwen3, KindMalformed, fmt.Errorf("failed to marshal request to Qwen3: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", q.baseURL+"/api/generate", bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewAdapterError(BackendQwen3, KindUnavailable, fmt.Errorf("failed to create request to Qwen3: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("Generating text via local Qwen3", "model", q.model)
	start := time.Now()
	resp, err := q.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Qwen3 API call failed", "error", err)
		kind := KindUnavailable
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return nil, NewAdapterError(BackendQwen3, kind, err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewAdapterError(BackendQwen3, KindMalformed, fmt.Errorf("failed to read response body from Qwen3: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			var errResp struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(respBodyBytes, &errResp); err == nil && strings.Contains(errResp.Error, "model") && strings.Contains(errResp.Error, "not found") {
				slog.Warn("Qwen3 model not found", "model", q.model)
				return nil, NewAdapterError(BackendQwen3, KindUnavailable,
					fmt.Errorf("model '%s' not found. Please run: 'ollama pull %s'", q.model, q.model))
			}
		}
		slog.Error("Qwen3 returned an error", "status_code", resp.StatusCode, "response", string(respBodyBytes))
		kind := KindMalformed
		if resp.StatusCode >= 500 {
			kind = KindUnavailable
		}
		return nil, NewAdapterError(BackendQwen3, kind,
			fmt.Errorf("Qwen3 failed with status %d: %s", resp.StatusCode, string(respBodyBytes)))
	}

	var qwenResp qwenGenerateResponse
	if err := json.Unmarshal(respBodyBytes, &qwenResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to parse JSON response from Qwen3", "error", err, "response", string(respBodyBytes))
		return nil, NewAdapterError(BackendQwen3, KindMalformed, fmt.Errorf("failed to parse Qwen3 response: %w", err))
	}
	if qwenResp.Response == "" {
		return nil, NewAdapterError(BackendQwen3, KindMalformed, fmt.Errorf("Qwen3 returned an empty completion"))
	}

	tokens := qwenResp.PromptEvalCount + qwenResp.EvalCount
	if tokens == 0 {
		tokens = estimateTokens(prompt) + estimateTokens(qwenResp.Response)
	}
	slog.Debug("Received response from local Qwen3", "tokens", tokens, "latency_ms", latency.Milliseconds())
	return &Completion{
		Text:         qwenResp.Response,
		Backend:      BackendQwen3,
		LatencyMs:    latency.Milliseconds(),
		TokensUsed:   tokens,
		CostEstimate: EstimateCost(BackendQwen3, tokens),
	}, nil
}
