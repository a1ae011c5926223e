package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsTouchAndSweep(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessions()
	s.now = func() time.Time { return now }

	a := s.Create("alice", 1)
	b := s.Create("bob", 2)
	assert.NotEqual(t, a.ID, b.ID)

	now = now.Add(20 * time.Second)
	require.True(t, s.Touch(a.ID))
	assert.False(t, s.Touch("missing"))

	now = now.Add(15 * time.Second)
	assert.Equal(t, 1, s.Sweep(30*time.Second))

	_, ok := s.Get(b.ID)
	assert.False(t, ok)
	got, ok := s.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Name)
}

func TestWordBankNeverRepeatsLast(t *testing.T) {
	b := NewWordBank([]string{"cat", "dog"}, 42)
	prev := b.Pick()
	for i := 0; i < 50; i++ {
		w := b.Pick()
		assert.NotEqual(t, prev, w)
		prev = w
	}

	single := NewWordBank([]string{"sun"}, 1)
	assert.Equal(t, "sun", single.Pick())
	assert.Equal(t, "sun", single.Pick())
}

func TestRoundTimeIncludesOverlay(t *testing.T) {
	cfg := DefaultLobbyConfig()
	assert.Equal(t, 65, cfg.roundTime(true))
	assert.Equal(t, 70, cfg.roundTime(false))
	assert.Equal(t, 2*time.Second, cfg.wordResend())
}
