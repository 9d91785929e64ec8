package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSaveAndLoadSnapshotRoundTrips(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	snap := GameSnapshot{
		GameID: "g1", JoinCode: "ABCDE", Status: "active", HostID: "host-1",
		IsPrivate: true, ConfigJSON: `{"smallBlind":1}`, PlayersJSON: `[]`,
		HandJSON: "", HistoryJSON: `[]`,
	}
	require.NoError(t, st.SaveSnapshot(ctx, snap))

	loaded, err := st.LoadSnapshot(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, snap.JoinCode, loaded.JoinCode)
	require.Equal(t, snap.Status, loaded.Status)
	require.True(t, loaded.IsPrivate)

	snap.Status = "finished"
	require.NoError(t, st.SaveSnapshot(ctx, snap))
	loaded, err = st.LoadSnapshot(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, "finished", loaded.Status)
}

func TestLoadSnapshotNotFound(t *testing.T) {
	st := openTestStore(t)
	_, err := st.LoadSnapshot(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestDeleteSnapshot(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.SaveSnapshot(ctx, GameSnapshot{GameID: "g2", Status: "active", PlayersJSON: "[]", ConfigJSON: "{}", HistoryJSON: "[]"}))
	require.NoError(t, st.DeleteSnapshot(ctx, "g2"))
	_, err := st.LoadSnapshot(ctx, "g2")
	require.True(t, IsNotFound(err))
}

func TestListActiveGameIDsExcludesFinished(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.SaveSnapshot(ctx, GameSnapshot{GameID: "active-1", Status: "active", PlayersJSON: "[]", ConfigJSON: "{}", HistoryJSON: "[]"}))
	require.NoError(t, st.SaveSnapshot(ctx, GameSnapshot{GameID: "done-1", Status: "finished", PlayersJSON: "[]", ConfigJSON: "{}", HistoryJSON: "[]"}))

	ids, err := st.ListActiveGameIDs(ctx)
	require.NoError(t, err)
	require.Contains(t, ids, "active-1")
	require.NotContains(t, ids, "done-1")
}

func TestDeductAndPayoutChipsAreIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.DeductChips(ctx, "alice", 50, "key-1"))
	require.NoError(t, st.DeductChips(ctx, "alice", 50, "key-1")) // retried, must not double-charge

	var balance int64
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT balance FROM player_balances WHERE player_id = ?`, "alice").Scan(&balance))
	require.Equal(t, int64(-50), balance)

	require.NoError(t, st.PayoutChips(ctx, "alice", 200, "key-2"))
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT balance FROM player_balances WHERE player_id = ?`, "alice").Scan(&balance))
	require.Equal(t, int64(150), balance)
}

func TestAppendHandHistory(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	err := st.AppendHandHistory(ctx, HandHistoryRecord{GameID: "g1", HandNumber: 1, PayloadJSON: `{"winner":"alice"}`})
	require.NoError(t, err)

	var count int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hand_histories WHERE game_id = ?`, "g1").Scan(&count))
	require.Equal(t, 1, count)
}

func TestStartGameFromQueueRejectsDuplicateReservation(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.StartGameFromQueue(ctx, "new-game", "ZZZZZ", []string{"alice", "bob"}))

	loaded, err := st.LoadSnapshot(ctx, "new-game")
	require.NoError(t, err)
	require.Equal(t, "ZZZZZ", loaded.JoinCode)
	require.Equal(t, "starting", loaded.Status)

	err = st.StartGameFromQueue(ctx, "new-game", "YYYYY", []string{"carol"})
	require.Error(t, err)
}
