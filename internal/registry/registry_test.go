package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/stretchr/testify/require"

	"github.com/vctt94/holdemserver/internal/engine"
	"github.com/vctt94/holdemserver/internal/session"
	"github.com/vctt94/holdemserver/internal/store"
)

type fakeStore struct {
	mu    sync.Mutex
	rows  map[string]store.GameSnapshot
	saves int
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[string]store.GameSnapshot{}} }

func (f *fakeStore) SaveSnapshot(ctx context.Context, snap store.GameSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.rows[snap.GameID] = snap
	return nil
}

func (f *fakeStore) LoadSnapshot(ctx context.Context, gameID string) (*store.GameSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[gameID]
	if !ok {
		return nil, store.NewNotFoundError(gameID)
	}
	return &row, nil
}

func (f *fakeStore) DeleteSnapshot(ctx context.Context, gameID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, gameID)
	return nil
}

func (f *fakeStore) ListActiveGameIDs(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeStore) DeductChips(ctx context.Context, playerID string, amount int64, idempotencyKey string) error {
	return nil
}
func (f *fakeStore) PayoutChips(ctx context.Context, playerID string, amount int64, idempotencyKey string) error {
	return nil
}
func (f *fakeStore) AppendHandHistory(ctx context.Context, rec store.HandHistoryRecord) error {
	return nil
}
func (f *fakeStore) StartGameFromQueue(ctx context.Context, gameID, joinCode string, playerIDs []string) error {
	return nil
}
func (f *fakeStore) Close() error { return nil }

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []engine.Event
	views  map[string]session.SessionView
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{views: map[string]session.SessionView{}}
}

func (f *fakeBroadcaster) BroadcastEvent(gameID string, ev engine.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeBroadcaster) SendView(gameID, viewerID string, view session.SessionView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views[viewerID] = view
}

func (f *fakeBroadcaster) viewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.views)
}

func testConfig() engine.Config {
	return engine.Config{
		SmallBlind: 1, BigBlind: 2, StartingStack: 200, MaxPlayers: 6,
		TurnTimerMs: 30000, PhaseTransitionDelayMs: 100, RunoutDelayMs: 100,
		BotFillAfterMs: 10000, Category: engine.CategoryCash,
	}
}

func newTestRegistry() (*Registry, *fakeStore, *fakeBroadcaster) {
	st := newFakeStore()
	bc := newFakeBroadcaster()
	reg := New(st, bc, slog.Disabled, 64, 2)
	return reg, st, bc
}

func TestCreateAndViewResidentGame(t *testing.T) {
	reg, _, _ := newTestRegistry()
	defer reg.Close()

	s := session.New("g1", "AAAAA", testConfig(), true, "host-1")
	require.NoError(t, s.HostSelfSeat("host-1", 1))
	reg.Create(s)

	view, err := reg.View(context.Background(), "g1", "host-1")
	require.NoError(t, err)
	require.Equal(t, "g1", view.GameID)
}

func TestViewRehydratesFromStore(t *testing.T) {
	reg, st, _ := newTestRegistry()
	defer reg.Close()

	s := session.New("g2", "BBBBB", testConfig(), true, "host-1")
	require.NoError(t, s.HostSelfSeat("host-1", 1))
	snap, err := session.ToStoreSnapshot(s)
	require.NoError(t, err)
	require.NoError(t, st.SaveSnapshot(context.Background(), snap))

	view, err := reg.View(context.Background(), "g2", "host-1")
	require.NoError(t, err)
	require.Equal(t, "g2", view.GameID)
}

func TestViewUnknownGameIsNotFound(t *testing.T) {
	reg, _, _ := newTestRegistry()
	defer reg.Close()
	_, err := reg.View(context.Background(), "missing", "nobody")
	require.Error(t, err)
}

func TestDispatchBroadcastsEventsAndViews(t *testing.T) {
	reg, _, bc := newTestRegistry()
	defer reg.Close()

	s := session.New("g3", "CCCCC", testConfig(), true, "host-1")
	require.NoError(t, s.HostSelfSeat("host-1", 1))
	require.NoError(t, s.RequestSeat("alice", "Alice"))
	require.NoError(t, s.ApproveSeat("host-1", "alice"))
	_, err := s.StartGame("host-1")
	require.NoError(t, err)
	reg.Create(s)

	seat := s.Hand.Context().CurrentActorSeat
	require.NoError(t, reg.Dispatch(context.Background(), "g3", engine.Action{Seat: seat, Kind: engine.ActionFold}))

	require.Eventually(t, func() bool { return bc.viewCount() > 0 }, time.Second, 5*time.Millisecond)
}

func TestGenerateJoinCodeAvoidsCollision(t *testing.T) {
	reg, _, _ := newTestRegistry()
	defer reg.Close()

	s := session.New("g4", "EXIST", testConfig(), true, "host-1")
	reg.Create(s)

	for i := 0; i < 20; i++ {
		code, err := reg.GenerateJoinCode()
		require.NoError(t, err)
		require.Len(t, code, 5)
		require.NotEqual(t, "EXIST", code)
	}
}

func TestResidentGameIDsAndSweepGame(t *testing.T) {
	reg, _, _ := newTestRegistry()
	defer reg.Close()

	s := session.New("g5", "FFFFF", testConfig(), true, "host-1")
	reg.Create(s)

	ids := reg.ResidentGameIDs()
	require.Contains(t, ids, "g5")

	called := false
	reg.SweepGame("g5", func(s *session.Session) []engine.Effect {
		called = true
		return nil
	})
	require.True(t, called)

	reg.SweepGame("nonexistent", func(s *session.Session) []engine.Effect {
		t.Fatal("should never be called for a non-resident game")
		return nil
	})
}
