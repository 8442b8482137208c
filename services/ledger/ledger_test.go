package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// knownSessions is a function-valued SessionChecker stub.
type knownSessions func(userID, sessionID string) bool

func (f knownSessions) Known(userID, sessionID string) bool { return f(userID, sessionID) }

func allSessions(string, string) bool { return true }

func newTestLedger(t *testing.T, sessions SessionChecker) *Ledger {
	t.Helper()
	store, err := OpenStore(InMemoryStoreConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, sessions)
}

func TestPoints(t *testing.T) {
	testCases := []struct {
		kind EventKind
		want int
	}{
		{KindEthicalChoice, 100},
		{KindPartialUnderstanding, 50},
		{KindReasoningImprovement, 75},
		{KindScenarioCompletion, 25},
		{KindConsistencyBonus, 150},
		{KindIntegrityChallenge, 200},
		{KindCorruptionResistance, 300},
	}
	for _, tc := range testCases {
		got, ok := Points(tc.kind)
		require.True(t, ok, "kind %s", tc.kind)
		assert.Equal(t, tc.want, got, "kind %s", tc.kind)
	}

	_, ok := Points(EventKind("made_up"))
	assert.False(t, ok)
}

func TestTierFor(t *testing.T) {
	testCases := []struct {
		points int
		want   string
	}{
		{0, "Principiante Ético"},
		{425, "Principiante Ético"},
		{499, "Principiante Ético"},
		{500, "Guardián de Integridad"}, // threshold is inclusive
		{1499, "Guardián de Integridad"},
		{1500, "Defensor de Principios"},
		{3000, "Maestro de Ética"},
		{5000, "Líder Íntegro"},
		{10000, "Campeón de Integridad"},
		{250000, "Campeón de Integridad"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, TierFor(tc.points).Name, "points %d", tc.points)
	}
}

func TestRecordEvent_ReplaySumsTo425(t *testing.T) {
	l := newTestLedger(t, knownSessions(allSessions))
	ctx := context.Background()

	for _, kind := range []EventKind{KindScenarioCompletion, KindCorruptionResistance, KindEthicalChoice} {
		_, err := l.RecordEvent(ctx, "user-1", "session-1", kind)
		require.NoError(t, err)
	}

	state, err := l.State(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 425, state.Points)
	assert.Equal(t, "Principiante Ético", state.Tier.Name)
	assert.Equal(t, 3, state.EventCount)
}

func TestRecordEvent_UnknownSession(t *testing.T) {
	l := newTestLedger(t, knownSessions(func(userID, sessionID string) bool {
		return sessionID == "registered"
	}))
	ctx := context.Background()

	_, err := l.RecordEvent(ctx, "user-1", "ghost", KindEthicalChoice)
	assert.ErrorIs(t, err, ErrUnknownSession)

	_, err = l.RecordEvent(ctx, "user-1", "registered", KindEthicalChoice)
	assert.NoError(t, err)
}

func TestRecordEvent_UnknownKind(t *testing.T) {
	l := newTestLedger(t, knownSessions(allSessions))
	_, err := l.RecordEvent(context.Background(), "user-1", "session-1", EventKind("bogus"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestRecordEvent_NilCheckerSkipsValidation(t *testing.T) {
	l := newTestLedger(t, nil)
	_, err := l.RecordEvent(context.Background(), "user-1", "synthetic", KindScenarioCompletion)
	assert.NoError(t, err)
}

func TestState_NewUserStartsAtZero(t *testing.T) {
	l := newTestLedger(t, knownSessions(allSessions))
	state, err := l.State(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, state.Points)
	assert.Equal(t, "Principiante Ético", state.Tier.Name)
	assert.Zero(t, state.EventCount)
}

func TestHistory_AppendOrderAndIsolation(t *testing.T) {
	l := newTestLedger(t, knownSessions(allSessions))
	ctx := context.Background()

	kinds := []EventKind{KindScenarioCompletion, KindEthicalChoice, KindConsistencyBonus}
	for _, kind := range kinds {
		_, err := l.RecordEvent(ctx, "ana", "s1", kind)
		require.NoError(t, err)
	}
	_, err := l.RecordEvent(ctx, "benito", "s2", KindCorruptionResistance)
	require.NoError(t, err)

	events, err := l.History(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, kinds[i], e.Kind)
		assert.Equal(t, "ana", e.UserID)
		assert.NotEmpty(t, e.ID)
	}
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenStore(StoreConfig{Path: dir})
	require.NoError(t, err)
	l := New(store, nil)
	_, err = l.RecordEvent(ctx, "carla", "s1", KindEthicalChoice)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenStore(StoreConfig{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	l2 := New(reopened, nil)
	_, err = l2.RecordEvent(ctx, "carla", "s1", KindScenarioCompletion)
	require.NoError(t, err)

	state, err := l2.State(ctx, "carla")
	require.NoError(t, err)
	assert.Equal(t, 125, state.Points)
	assert.Equal(t, 2, state.EventCount)
}
