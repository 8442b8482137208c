package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianIntegrity/services/provider"
)

func TestRoutingPolicy_OrderWithAffinity(t *testing.T) {
	policy := &RoutingPolicy{
		FallbackOrder: []provider.BackendID{provider.BackendOpenAI, provider.BackendKimiK2, provider.BackendQwen3},
		CharacterAffinity: map[string]provider.BackendID{
			"catalina": provider.BackendKimiK2,
		},
	}

	assert.Equal(t,
		[]provider.BackendID{provider.BackendKimiK2, provider.BackendOpenAI, provider.BackendQwen3},
		policy.Order("catalina"))
	assert.Equal(t,
		[]provider.BackendID{provider.BackendOpenAI, provider.BackendKimiK2, provider.BackendQwen3},
		policy.Order("mentor"))
	assert.Equal(t, policy.FallbackOrder, policy.Order(""))
}

func TestRoutingPolicy_ValidateRejectsDuplicates(t *testing.T) {
	policy := DefaultRoutingPolicy()
	policy.FallbackOrder = append(policy.FallbackOrder, provider.BackendOpenAI)
	assert.Error(t, policy.Validate())
}

func TestRoutingPolicy_ValidateRejectsDanglingAffinity(t *testing.T) {
	policy := DefaultRoutingPolicy()
	policy.CharacterAffinity = map[string]provider.BackendID{
		"auditor": provider.BackendID("mistral"),
	}
	assert.Error(t, policy.Validate())
}

func TestRoutingPolicy_ValidateRejectsEmptyOrder(t *testing.T) {
	policy := &RoutingPolicy{}
	assert.Error(t, policy.Validate())
}

const validPolicyYAML = `
fallback_order:
  - kimi_k2
  - qwen3
character_affinity:
  alexis: qwen3
rate_limit_backoff: 250ms
requests_per_second: 10
`

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPolicyYAML), 0o644))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, []provider.BackendID{provider.BackendKimiK2, provider.BackendQwen3}, policy.FallbackOrder)
	assert.Equal(t, provider.BackendQwen3, policy.CharacterAffinity["alexis"])
	assert.Equal(t, 250*time.Millisecond, policy.RateLimitBackoff)
	assert.Equal(t, 10.0, policy.RequestsPerSecond)
}

func TestLoadPolicy_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fallback_order: [}"), 0o644))
	_, err := LoadPolicy(path)
	assert.Error(t, err)
}

func TestPolicyWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPolicyYAML), 0o644))

	source := NewPolicySource(DefaultRoutingPolicy())
	watcher, err := NewPolicyWatcher(path, source)
	require.NoError(t, err)
	assert.Equal(t, []provider.BackendID{provider.BackendKimiK2, provider.BackendQwen3}, source.Current().FallbackOrder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	updated := `
fallback_order:
  - openai
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(source.Current().FallbackOrder) == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, []provider.BackendID{provider.BackendOpenAI}, source.Current().FallbackOrder)
}

func TestPolicyWatcher_KeepsLastGoodPolicyOnBadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPolicyYAML), 0o644))

	source := NewPolicySource(DefaultRoutingPolicy())
	watcher, err := NewPolicyWatcher(path, source)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("fallback_order: [}"), 0o644))
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, []provider.BackendID{provider.BackendKimiK2, provider.BackendQwen3}, source.Current().FallbackOrder)
}
