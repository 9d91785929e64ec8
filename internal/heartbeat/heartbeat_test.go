package heartbeat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vctt94/holdemserver/internal/engine"
	"github.com/vctt94/holdemserver/internal/session"
)

func testConfig() engine.Config {
	return engine.Config{
		SmallBlind: 1, BigBlind: 2, StartingStack: 200, MaxPlayers: 6,
		TurnTimerMs: 30000, PhaseTransitionDelayMs: 100, RunoutDelayMs: 100,
		BotFillAfterMs: 10000, Category: engine.CategoryCash,
	}
}

func seatedSession(t *testing.T, gameID string) *session.Session {
	t.Helper()
	s := session.New(gameID, "AAAAA", testConfig(), true, "host-1")
	require.NoError(t, s.HostSelfSeat("host-1", 1))
	require.NoError(t, s.RequestSeat("alice", "Alice"))
	require.NoError(t, s.ApproveSeat("host-1", "alice"))
	_, err := s.StartGame("host-1")
	require.NoError(t, err)
	return s
}

func TestSweepOneAutoFoldsPastDeadline(t *testing.T) {
	s := seatedSession(t, "g1")
	s.Hand.Context().ActionDeadline = time.Now().Add(-10 * time.Second)

	effects := sweepOne(s)
	require.NotNil(t, s.Hand, "hand should still exist after one auto-fold, unless the round completed")
	require.NotEmpty(t, effects, "a past-deadline actor should produce at least one effect from the forced fold")
}

func TestSweepOneDoesNothingWithinDeadline(t *testing.T) {
	s := seatedSession(t, "g2")
	s.Hand.Context().ActionDeadline = time.Now().Add(time.Minute)

	effects := sweepOne(s)
	require.Empty(t, effects)
}

func TestSweepOneSkipsPausedGames(t *testing.T) {
	s := seatedSession(t, "g3")
	s.Hand.Context().ActionDeadline = time.Now().Add(-10 * time.Second)
	require.NoError(t, s.Pause("host-1"))

	effects := sweepOne(s)
	for _, e := range effects {
		require.NotEqual(t, engine.EffectEndGame, e.Kind, "a paused game should not also be flagged idle here")
	}
}

func TestIdleTooLongByStatus(t *testing.T) {
	s := session.New("g4", "BBBBB", testConfig(), true, "host-1")

	s.Status = session.SessionWaiting
	s.LastActivity = time.Now().Add(-maxWaitingIdle - time.Second)
	require.True(t, idleTooLong(s, time.Now()))

	s.LastActivity = time.Now()
	require.False(t, idleTooLong(s, time.Now()))

	s.Status = session.SessionStarting
	s.CreatedAt = time.Now().Add(-maxStartingAge - time.Second)
	require.True(t, idleTooLong(s, time.Now()))

	s.Status = session.SessionActive
	s.CreatedAt = time.Now()
	s.LastActivity = time.Now().Add(-maxActiveIdle - time.Second)
	require.True(t, idleTooLong(s, time.Now()))
}
