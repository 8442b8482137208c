package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianIntegrity/services/provider"
)

// fakeBackend is a function-valued stub for CompletionClient.
type fakeBackend struct {
	id         provider.BackendID
	completeFn func(ctx context.Context, prompt string, params provider.GenerationParams) (*provider.Completion, error)
	calls      int
}

func (f *fakeBackend) ID() provider.BackendID { return f.id }

func (f *fakeBackend) Complete(ctx context.Context, prompt string, params provider.GenerationParams) (*provider.Completion, error) {
	f.calls++
	return f.completeFn(ctx, prompt, params)
}

func okReply(id provider.BackendID, text string) func(context.Context, string, provider.GenerationParams) (*provider.Completion, error) {
	return func(context.Context, string, provider.GenerationParams) (*provider.Completion, error) {
		return &provider.Completion{Text: text, Backend: id, LatencyMs: 10, TokensUsed: 20}, nil
	}
}

func failWith(id provider.BackendID, kind provider.ErrorKind) func(context.Context, string, provider.GenerationParams) (*provider.Completion, error) {
	return func(context.Context, string, provider.GenerationParams) (*provider.Completion, error) {
		return nil, provider.NewAdapterError(id, kind, errors.New("boom"))
	}
}

func newTestRouter(clients ...provider.CompletionClient) *Router {
	r := New(clients, NewPolicySource(DefaultRoutingPolicy()))
	r.sleep = func(context.Context, time.Duration) error { return nil }
	return r
}

func TestDispatch_PrefersFirstHealthyBackend(t *testing.T) {
	openai := &fakeBackend{id: provider.BackendOpenAI, completeFn: okReply(provider.BackendOpenAI, "from openai")}
	kimi := &fakeBackend{id: provider.BackendKimiK2, completeFn: okReply(provider.BackendKimiK2, "from kimi")}

	r := newTestRouter(openai, kimi)
	result, err := r.Dispatch(context.Background(), Request{Prompt: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "from openai", result.Text)
	assert.Equal(t, 0, kimi.calls)
}

func TestDispatch_FallsThroughOnUnavailable(t *testing.T) {
	openai := &fakeBackend{id: provider.BackendOpenAI, completeFn: failWith(provider.BackendOpenAI, provider.KindUnavailable)}
	kimi := &fakeBackend{id: provider.BackendKimiK2, completeFn: okReply(provider.BackendKimiK2, "from kimi")}

	r := newTestRouter(openai, kimi)
	result, err := r.Dispatch(context.Background(), Request{Prompt: "hola"})
	require.NoError(t, err)
	assert.Equal(t, provider.BackendKimiK2, result.Backend)
	assert.Equal(t, 1, openai.calls)
}

func TestDispatch_RateLimitedRetriesSameBackendOnce(t *testing.T) {
	attempts := 0
	openai := &fakeBackend{id: provider.BackendOpenAI}
	openai.completeFn = func(ctx context.Context, prompt string, params provider.GenerationParams) (*provider.Completion, error) {
		attempts++
		if attempts == 1 {
			return nil, provider.NewAdapterError(provider.BackendOpenAI, provider.KindRateLimited, errors.New("429"))
		}
		return &provider.Completion{Text: "second try", Backend: provider.BackendOpenAI}, nil
	}
	kimi := &fakeBackend{id: provider.BackendKimiK2, completeFn: okReply(provider.BackendKimiK2, "from kimi")}

	r := newTestRouter(openai, kimi)
	result, err := r.Dispatch(context.Background(), Request{Prompt: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "second try", result.Text)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 0, kimi.calls)
}

func TestDispatch_RateLimitedTwiceFallsThrough(t *testing.T) {
	openai := &fakeBackend{id: provider.BackendOpenAI, completeFn: failWith(provider.BackendOpenAI, provider.KindRateLimited)}
	kimi := &fakeBackend{id: provider.BackendKimiK2, completeFn: okReply(provider.BackendKimiK2, "from kimi")}

	r := newTestRouter(openai, kimi)
	result, err := r.Dispatch(context.Background(), Request{Prompt: "hola"})
	require.NoError(t, err)
	assert.Equal(t, provider.BackendKimiK2, result.Backend)
	// Exactly one retry against the rate-limited backend.
	assert.Equal(t, 2, openai.calls)
}

func TestDispatch_AffinityWins(t *testing.T) {
	openai := &fakeBackend{id: provider.BackendOpenAI, completeFn: okReply(provider.BackendOpenAI, "from openai")}
	qwen := &fakeBackend{id: provider.BackendQwen3, completeFn: okReply(provider.BackendQwen3, "from qwen")}

	policy := DefaultRoutingPolicy()
	policy.CharacterAffinity = map[string]provider.BackendID{"alexis": provider.BackendQwen3}
	r := New([]provider.CompletionClient{openai, qwen}, NewPolicySource(policy))
	r.sleep = func(context.Context, time.Duration) error { return nil }

	result, err := r.Dispatch(context.Background(), Request{Prompt: "hola", Character: "alexis"})
	require.NoError(t, err)
	assert.Equal(t, provider.BackendQwen3, result.Backend)
	assert.Equal(t, 0, openai.calls)
}

func TestDispatch_AllBackendsDown(t *testing.T) {
	openai := &fakeBackend{id: provider.BackendOpenAI, completeFn: failWith(provider.BackendOpenAI, provider.KindUnavailable)}
	kimi := &fakeBackend{id: provider.BackendKimiK2, completeFn: failWith(provider.BackendKimiK2, provider.KindTimeout)}
	qwen := &fakeBackend{id: provider.BackendQwen3, completeFn: failWith(provider.BackendQwen3, provider.KindMalformed)}

	r := newTestRouter(openai, kimi, qwen)
	_, err := r.Dispatch(context.Background(), Request{Prompt: "hola"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoBackendAvailable)
}

func TestDispatch_SkipsTrippedBreaker(t *testing.T) {
	openai := &fakeBackend{id: provider.BackendOpenAI, completeFn: failWith(provider.BackendOpenAI, provider.KindUnavailable)}
	kimi := &fakeBackend{id: provider.BackendKimiK2, completeFn: okReply(provider.BackendKimiK2, "from kimi")}

	r := newTestRouter(openai, kimi)
	for i := 0; i < 3; i++ {
		_, err := r.Dispatch(context.Background(), Request{Prompt: "hola"})
		require.NoError(t, err)
	}
	assert.Equal(t, BreakerOpen, r.Breakers().Get(provider.BackendOpenAI).State())

	// Fourth request skips the tripped backend entirely.
	before := openai.calls
	_, err := r.Dispatch(context.Background(), Request{Prompt: "hola"})
	require.NoError(t, err)
	assert.Equal(t, before, openai.calls)
}

func TestDispatch_UpdatesProfiles(t *testing.T) {
	openai := &fakeBackend{id: provider.BackendOpenAI, completeFn: failWith(provider.BackendOpenAI, provider.KindUnavailable)}
	kimi := &fakeBackend{id: provider.BackendKimiK2, completeFn: okReply(provider.BackendKimiK2, "from kimi")}

	r := newTestRouter(openai, kimi)
	_, err := r.Dispatch(context.Background(), Request{Prompt: "hola"})
	require.NoError(t, err)

	failed, ok := r.Profiles().Snapshot(provider.BackendOpenAI)
	require.True(t, ok)
	assert.Equal(t, int64(1), failed.TotalFailures)
	assert.Less(t, failed.QualityScore, 0.5)

	// Success alone commits latency and counters; the quality score
	// only moves when a quality reading is reported back.
	succeeded, ok := r.Profiles().Snapshot(provider.BackendKimiK2)
	require.True(t, ok)
	assert.Equal(t, int64(0), succeeded.TotalFailures)
	assert.InDelta(t, 0.5, succeeded.QualityScore, 0.0001)
	assert.Greater(t, succeeded.AvgLatencyMs, 0.0)

	r.ReportQuality(provider.BackendKimiK2, 1.0)
	rated, _ := r.Profiles().Snapshot(provider.BackendKimiK2)
	assert.Greater(t, rated.QualityScore, 0.5)
	assert.Less(t, rated.QualityScore, 1.0)
}

func TestDispatch_AffinitySkippedOverLatencyBudget(t *testing.T) {
	openai := &fakeBackend{id: provider.BackendOpenAI, completeFn: okReply(provider.BackendOpenAI, "from openai")}
	qwen := &fakeBackend{id: provider.BackendQwen3, completeFn: okReply(provider.BackendQwen3, "from qwen")}

	policy := DefaultRoutingPolicy()
	policy.CharacterAffinity = map[string]provider.BackendID{"alexis": provider.BackendQwen3}
	policy.MaxLatencyBudgetMs = 5000
	r := New([]provider.CompletionClient{openai, qwen}, NewPolicySource(policy))
	r.sleep = func(context.Context, time.Duration) error { return nil }

	// Drive the affinity backend's EWMA latency well over the budget.
	for i := 0; i < 10; i++ {
		r.Profiles().ObserveSuccess(provider.BackendQwen3, 9*time.Second, 0)
	}
	p, ok := r.Profiles().Snapshot(provider.BackendQwen3)
	require.True(t, ok)
	require.Greater(t, p.AvgLatencyMs, policy.MaxLatencyBudgetMs)

	result, err := r.Dispatch(context.Background(), Request{Prompt: "hola", Character: "alexis"})
	require.NoError(t, err)
	assert.Equal(t, provider.BackendOpenAI, result.Backend)
	assert.Equal(t, 0, qwen.calls)
}

func TestDispatch_FallbackSkipsOverCostCeiling(t *testing.T) {
	openai := &fakeBackend{id: provider.BackendOpenAI}
	openai.completeFn = func(context.Context, string, provider.GenerationParams) (*provider.Completion, error) {
		return &provider.Completion{Text: "pricey", Backend: provider.BackendOpenAI, CostEstimate: 0.04}, nil
	}
	kimi := &fakeBackend{id: provider.BackendKimiK2, completeFn: okReply(provider.BackendKimiK2, "from kimi")}

	policy := DefaultRoutingPolicy()
	policy.CostCeilingUSD = 0.05
	r := New([]provider.CompletionClient{openai, kimi}, NewPolicySource(policy))
	r.sleep = func(context.Context, time.Duration) error { return nil }

	first, err := r.Dispatch(context.Background(), Request{Prompt: "hola", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, provider.BackendOpenAI, first.Backend)

	// 0.04 already spent: another openai call (estimated 0.04) would
	// blow the 0.05 ceiling, so the session falls through to kimi.
	second, err := r.Dispatch(context.Background(), Request{Prompt: "hola", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, provider.BackendKimiK2, second.Backend)
	assert.Equal(t, 1, openai.calls)

	// A different session has its own ceiling.
	other, err := r.Dispatch(context.Background(), Request{Prompt: "hola", SessionID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, provider.BackendOpenAI, other.Backend)

	// Forgetting the first session resets its spend.
	r.ForgetSession("s1")
	again, err := r.Dispatch(context.Background(), Request{Prompt: "hola", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, provider.BackendOpenAI, again.Backend)
}

func TestDispatch_PolicyTimeoutReachesAdapter(t *testing.T) {
	var seen time.Duration
	openai := &fakeBackend{id: provider.BackendOpenAI}
	openai.completeFn = func(_ context.Context, _ string, params provider.GenerationParams) (*provider.Completion, error) {
		seen = params.Timeout
		return &provider.Completion{Text: "ok", Backend: provider.BackendOpenAI}, nil
	}

	policy := DefaultRoutingPolicy()
	policy.PerCallTimeout = 42 * time.Second
	r := New([]provider.CompletionClient{openai}, NewPolicySource(policy))
	r.sleep = func(context.Context, time.Duration) error { return nil }

	_, err := r.Dispatch(context.Background(), Request{Prompt: "hola"})
	require.NoError(t, err)
	assert.Equal(t, 42*time.Second, seen)

	// A caller-supplied timeout is not overridden.
	_, err = r.Dispatch(context.Background(), Request{Prompt: "hola", Params: provider.GenerationParams{Timeout: 3 * time.Second}})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, seen)
}

func TestDispatch_FailureHookInvoked(t *testing.T) {
	openai := &fakeBackend{id: provider.BackendOpenAI, completeFn: failWith(provider.BackendOpenAI, provider.KindTimeout)}
	kimi := &fakeBackend{id: provider.BackendKimiK2, completeFn: okReply(provider.BackendKimiK2, "from kimi")}

	type failure struct {
		backend provider.BackendID
		kind    provider.ErrorKind
	}
	var failures []failure
	r := newTestRouter(openai, kimi)
	r.SetFailureHook(func(backend provider.BackendID, kind provider.ErrorKind) {
		failures = append(failures, failure{backend, kind})
	})

	_, err := r.Dispatch(context.Background(), Request{Prompt: "hola"})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, provider.BackendOpenAI, failures[0].backend)
	assert.Equal(t, provider.KindTimeout, failures[0].kind)
}

func TestDispatch_ContextCancelledMidChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	openai := &fakeBackend{id: provider.BackendOpenAI}
	openai.completeFn = func(ctx context.Context, prompt string, params provider.GenerationParams) (*provider.Completion, error) {
		cancel()
		return nil, provider.NewAdapterError(provider.BackendOpenAI, provider.KindUnavailable, errors.New("down"))
	}
	kimi := &fakeBackend{id: provider.BackendKimiK2, completeFn: okReply(provider.BackendKimiK2, "from kimi")}

	r := newTestRouter(openai, kimi)
	_, err := r.Dispatch(ctx, Request{Prompt: "hola"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, kimi.calls)
}
