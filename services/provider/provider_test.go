package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCost(t *testing.T) {
	testCases := []struct {
		name    string
		backend BackendID
		tokens  int
		want    float64
	}{
		{"openai 1k tokens", BackendOpenAI, 1000, 0.03},
		{"kimi 2k tokens", BackendKimiK2, 2000, 0.03},
		{"qwen3 is free", BackendQwen3, 50000, 0.0},
		{"unknown backend uses middle rate", BackendID("mystery"), 1000, 0.02},
		{"zero tokens", BackendOpenAI, 0, 0.0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, EstimateCost(tc.backend, tc.tokens), 1e-9)
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("hola"))
	// 10 words * 1.3 = 13
	assert.Equal(t, 13, estimateTokens("one two three four five six seven eight nine ten"))
}

func TestKindOf(t *testing.T) {
	ae := NewAdapterError(BackendKimiK2, KindRateLimited, errors.New("429"))
	assert.Equal(t, KindRateLimited, KindOf(ae))

	wrapped := errors.Join(errors.New("outer"), ae)
	assert.Equal(t, KindRateLimited, KindOf(wrapped))

	assert.Equal(t, KindUnavailable, KindOf(errors.New("plain")))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "unavailable", KindUnavailable.String())
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "rate_limited", KindRateLimited.String())
	assert.Equal(t, "malformed", KindMalformed.String())
}

// newTestMoonshot points a MoonshotClient at a local test server.
func newTestMoonshot(url string) *MoonshotClient {
	return &MoonshotClient{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    url,
		apiKey:     "test-key",
		model:      "kimi-k2-test",
	}
}

func TestMoonshotComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"choices": [{"message": {"role": "assistant", "content": "Entiendo tu situación."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
		}`))
	}))
	defer server.Close()

	client := newTestMoonshot(server.URL)
	result, err := client.Complete(context.Background(), "hola", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "Entiendo tu situación.", result.Text)
	assert.Equal(t, BackendKimiK2, result.Backend)
	assert.Equal(t, 20, result.TokensUsed)
	assert.InDelta(t, 0.0003, result.CostEstimate, 1e-9)
}

func TestMoonshotComplete_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limit exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestMoonshot(server.URL)
	_, err := client.Complete(context.Background(), "hola", GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestMoonshotComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestMoonshot(server.URL)
	_, err := client.Complete(context.Background(), "hola", GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))
}

func TestMoonshotComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "cmpl-2", "choices": []}`))
	}))
	defer server.Close()

	client := newTestMoonshot(server.URL)
	_, err := client.Complete(context.Background(), "hola", GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestMoonshotComplete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestMoonshot(server.URL)
	_, err := client.Complete(context.Background(), "hola", GenerationParams{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func newTestQwen(url string) *QwenLocalClient {
	return &QwenLocalClient{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    url,
		model:      "qwen3",
	}
}

func TestQwenLocalComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"model": "qwen3",
			"response": "La transparencia es el mejor camino.",
			"done": true,
			"prompt_eval_count": 15,
			"eval_count": 9
		}`))
	}))
	defer server.Close()

	client := newTestQwen(server.URL)
	result, err := client.Complete(context.Background(), "consejo", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "La transparencia es el mejor camino.", result.Text)
	assert.Equal(t, BackendQwen3, result.Backend)
	assert.Equal(t, 24, result.TokensUsed)
	assert.Zero(t, result.CostEstimate)
}

func TestQwenLocalComplete_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "model 'qwen3' not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestQwen(server.URL)
	_, err := client.Complete(context.Background(), "consejo", GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Contains(t, err.Error(), "ollama pull")
}

func TestQwenLocalComplete_EmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model": "qwen3", "response": "", "done": true}`))
	}))
	defer server.Close()

	client := newTestQwen(server.URL)
	_, err := client.Complete(context.Background(), "consejo", GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestNewQwenLocalClient_RequiresBaseURL(t *testing.T) {
	t.Setenv("QWEN_BASE_URL", "")
	_, err := NewQwenLocalClient()
	require.Error(t, err)
}

func TestNewMoonshotClient_MissingKey(t *testing.T) {
	t.Setenv("MOONSHOT_API_KEY", "")
	if _, statErr := os.Stat("/run/secrets/moonshot_api_key"); statErr == nil {
		t.Skip("secret file present on this host")
	}
	_, err := NewMoonshotClient()
	require.Error(t, err)
}
