package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable Clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(clock Clock) *Manager {
	cfg := DefaultManagerConfig()
	cfg.Clock = clock
	return NewManager(cfg)
}

func TestCreateAndGet(t *testing.T) {
	m := newTestManager(SystemClock())
	defer m.Close()

	sess, err := m.Create("user-1", "catalina", "licitacion_municipal")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, "catalina", sess.Character)

	got, err := m.Get(sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, got.SessionID)
	assert.True(t, m.Known("user-1", sess.SessionID))
	assert.False(t, m.Known("user-2", sess.SessionID))
	assert.False(t, m.Known("user-1", "missing"))
}

func TestCreate_RequiresUser(t *testing.T) {
	m := newTestManager(SystemClock())
	defer m.Close()
	_, err := m.Create("", "catalina", "s1")
	assert.Error(t, err)

	_, err = m.Create("event/alice", "catalina", "s1")
	assert.Error(t, err)
}

func TestGet_ReturnsSnapshot(t *testing.T) {
	m := newTestManager(SystemClock())
	defer m.Close()

	sess, err := m.Create("user-1", "mentor", "s1")
	require.NoError(t, err)
	require.NoError(t, m.AppendTurn(sess.SessionID, Turn{Speaker: SpeakerUser, Text: "hola"}))

	snap, err := m.Get(sess.SessionID)
	require.NoError(t, err)
	snap.Turns[0].Text = "mutated"

	again, err := m.Get(sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "hola", again.Turns[0].Text)
}

func TestAppendTurn_MonotoneTimestamps(t *testing.T) {
	m := newTestManager(SystemClock())
	defer m.Close()

	sess, err := m.Create("user-1", "mentor", "s1")
	require.NoError(t, err)

	later := time.Now().UTC()
	earlier := later.Add(-time.Hour)
	require.NoError(t, m.AppendTurn(sess.SessionID, Turn{Speaker: SpeakerUser, Text: "first", Timestamp: later}))
	require.NoError(t, m.AppendTurn(sess.SessionID, Turn{Speaker: SpeakerCharacter, Text: "second", Timestamp: earlier}))

	got, err := m.Get(sess.SessionID)
	require.NoError(t, err)
	require.Len(t, got.Turns, 2)
	assert.False(t, got.Turns[1].Timestamp.Before(got.Turns[0].Timestamp))
}

func TestWithSession_SerializesConcurrentSubmits(t *testing.T) {
	m := newTestManager(SystemClock())
	defer m.Close()

	sess, err := m.Create("user-1", "mentor", "s1")
	require.NoError(t, err)

	const workers = 8
	var inside int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithSession(sess.SessionID, func(_ context.Context, s *Session) error {
				inside++
				// With the exclusive lock held no other worker runs here.
				s.Turns = append(s.Turns, Turn{Speaker: SpeakerUser, Text: "t", Timestamp: time.Now()})
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := m.Get(sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int32(workers), inside)
	assert.Len(t, got.Turns, workers)
}

func TestWithSession_ErrorLeavesTurnsUntouched(t *testing.T) {
	m := newTestManager(SystemClock())
	defer m.Close()

	sess, err := m.Create("user-1", "mentor", "s1")
	require.NoError(t, err)

	boom := errors.New("backend down")
	err = m.WithSession(sess.SessionID, func(context.Context, *Session) error { return boom })
	assert.ErrorIs(t, err, boom)

	got, err := m.Get(sess.SessionID)
	require.NoError(t, err)
	assert.Empty(t, got.Turns)
}

func TestCancel_PropagatesToInFlightWork(t *testing.T) {
	m := newTestManager(SystemClock())
	defer m.Close()

	sess, err := m.Create("user-1", "mentor", "s1")
	require.NoError(t, err)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.WithSession(sess.SessionID, func(ctx context.Context, _ *Session) error {
			close(started)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return errors.New("cancellation never arrived")
			}
		})
	}()

	<-started
	m.Cancel(sess.SessionID)
	assert.ErrorIs(t, <-done, context.Canceled)

	_, err = m.Get(sess.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSweepOnce_EvictsIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cfg := DefaultManagerConfig()
	cfg.Clock = clock
	var evicted []string
	cfg.OnEvicted = func(s *Session) { evicted = append(evicted, s.SessionID) }
	m := NewManager(cfg)
	defer m.Close()

	stale, err := m.Create("user-1", "mentor", "s1")
	require.NoError(t, err)

	clock.Advance(23 * time.Hour)
	fresh, err := m.Create("user-2", "catalina", "s2")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour) // stale is now 25h idle, fresh 2h
	assert.Equal(t, 1, m.SweepOnce())
	assert.Equal(t, []string{stale.SessionID}, evicted)

	_, err = m.Get(stale.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(fresh.SessionID)
	assert.NoError(t, err)
	assert.Equal(t, 1, m.Count())
}

func TestWithSession_CancelledSessionRefusesWork(t *testing.T) {
	m := newTestManager(SystemClock())
	defer m.Close()

	sess, err := m.Create("user-1", "mentor", "s1")
	require.NoError(t, err)
	m.Cancel(sess.SessionID)

	err = m.WithSession(sess.SessionID, func(context.Context, *Session) error { return nil })
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
