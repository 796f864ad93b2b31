package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentCreateConvergesOnOneSession(t *testing.T) {
	r := NewRegistry()

	const goroutines = 32
	results := make([]*Session, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Create(ModeTournament, "match-session-1", "tour-1")
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, r.Count())
	for _, s := range results {
		assert.Same(t, results[0], s, "every caller observes the same instance")
	}
}

func TestCreateMintsIDWhenAbsent(t *testing.T) {
	r := NewRegistry()
	a := r.Create(ModeRemote, "", "")
	b := r.Create(ModeRemote, "", "")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, r.Count())
}

func TestSeatAssignmentAndThirdBindRejected(t *testing.T) {
	r := NewRegistry()
	s := r.Create(ModeRemote, "", "")

	first, err := s.Bind(11)
	require.NoError(t, err)
	assert.Equal(t, SideLeft, first.Side)

	second, err := s.Bind(22)
	require.NoError(t, err)
	assert.Equal(t, SideRight, second.Side)

	_, err = s.Bind(33)
	require.ErrorIs(t, err, ErrSessionFull)

	// The rejection must not disturb the existing seats.
	assert.Equal(t, 2, s.SeatCount())
	left, right, ok := s.Players()
	require.True(t, ok)
	assert.Equal(t, int64(11), left)
	assert.Equal(t, int64(22), right)
	r.Delete(s.ID)
}

func TestAutoStartOnceBothSeatsBound(t *testing.T) {
	r := NewRegistry()
	s := r.Create(ModeRemote, "", "")

	_, err := s.Bind(1)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, s.Status(), "one seat does not start the match")

	_, err = s.Bind(2)
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, s.Status())
	r.Delete(s.ID)
}

func TestLastDisconnectStopsTickSchedule(t *testing.T) {
	r := NewRegistry()
	s := r.Create(ModeTournament, "", "tour-1")

	a, err := s.Bind(1)
	require.NoError(t, err)
	b, err := s.Bind(2)
	require.NoError(t, err)
	require.Equal(t, StatusPlaying, s.Status())

	s.Unbind(a)
	assert.Equal(t, StatusPlaying, s.Status(), "one seat remaining keeps playing")

	s.Unbind(b)
	assert.Equal(t, StatusPaused, s.Status())
	s.mu.Lock()
	assert.Nil(t, s.stop, "no tick schedule with zero live connections")
	s.mu.Unlock()

	// Paused is re-enterable via explicit start.
	require.NoError(t, s.Start())
	assert.Equal(t, StatusPlaying, s.Status())
	s.Stop()
	r.Delete(s.ID)
}

func TestSnapshotsBroadcastWhilePlaying(t *testing.T) {
	r := NewRegistry()
	s := r.Create(ModeRemote, "", "")
	seat, err := s.Bind(1)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	select {
	case frame := <-seat.Send:
		assert.Contains(t, string(frame), `"type":"state"`)
	case <-time.After(time.Second):
		t.Fatal("no state frame within a second of starting")
	}
	r.Delete(s.ID)
}

func TestDeleteReleasesSeats(t *testing.T) {
	r := NewRegistry()
	s := r.Create(ModeRemote, "", "")
	seat, err := s.Bind(1)
	require.NoError(t, err)

	r.Delete(s.ID)
	select {
	case <-seat.Done():
	case <-time.After(time.Second):
		t.Fatal("seat not released on registry delete")
	}
	_, ok := r.Get(s.ID)
	assert.False(t, ok)
}

func TestReapRemovesIdleSessions(t *testing.T) {
	r := NewRegistry()
	idle := r.Create(ModeRemote, "idle", "")
	busy := r.Create(ModeRemote, "busy", "")
	_, err := busy.Bind(1)
	require.NoError(t, err)

	idle.mu.Lock()
	idle.lastActive = time.Now().Add(-10 * time.Minute)
	idle.mu.Unlock()

	assert.Equal(t, 1, r.Reap(5*time.Minute))
	_, ok := r.Get("idle")
	assert.False(t, ok)
	_, ok = r.Get("busy")
	assert.True(t, ok, "sessions with live connections are never reaped")
	r.Delete("busy")
}
