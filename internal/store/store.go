// Package store defines the durable-store contract (spec 6): persistence is
// an external dependency the registry talks to through this interface, with
// a SQLite reference implementation for local/single-node deployment.
package store

import (
	"context"
	"time"
)

// GameSnapshot is the full on-disk representation of one session, written by
// a PERSIST effect and read back during rehydration (spec 4.H).
type GameSnapshot struct {
	GameID       string
	JoinCode     string
	Status       string
	HostID       string
	IsPrivate    bool
	IsPaused     bool
	ConfigJSON   string // engine.Config, JSON-encoded
	PlayersJSON  string // []session.Player, JSON-encoded
	HandJSON     string // *engine.HandContext, JSON-encoded; empty before the first hand
	HistoryJSON  string // []string hand-history log, JSON-encoded
	UpdatedAt    time.Time
}

// HandHistoryRecord is one completed hand's audit-log entry (spec 1's
// "hand-history encoding" remains a client/external concern; this is the
// server-side append-only ledger it would later be encoded from).
type HandHistoryRecord struct {
	GameID     string
	HandNumber int
	PayloadJSON string
	RecordedAt time.Time
}

// Store is the durable-store contract of spec 6: every mutation a session
// can cause on persistent state goes through here, with deduct/payout framed
// as idempotent so a retried effect after a crash never double-applies.
type Store interface {
	SaveSnapshot(ctx context.Context, snap GameSnapshot) error
	LoadSnapshot(ctx context.Context, gameID string) (*GameSnapshot, error)
	DeleteSnapshot(ctx context.Context, gameID string) error
	ListActiveGameIDs(ctx context.Context) ([]string, error)

	// DeductChips and PayoutChips key on idempotencyKey so a retried call
	// (spec 4.F's persistence retry queue) after a partial failure is a no-op.
	DeductChips(ctx context.Context, playerID string, amount int64, idempotencyKey string) error
	PayoutChips(ctx context.Context, playerID string, amount int64, idempotencyKey string) error

	AppendHandHistory(ctx context.Context, rec HandHistoryRecord) error

	// StartGameFromQueue atomically reserves a table row under the given game
	// ID and join code (spec 4.G matchmaking, spec 6 "start_game_from_queue").
	// The player IDs are not recorded in the row, no buy-ins are deducted, and
	// no check is made that the players are free of other games.
	StartGameFromQueue(ctx context.Context, gameID, joinCode string, playerIDs []string) error

	Close() error
}

// notFoundError is returned by LoadSnapshot when no row exists for the game;
// callers test for it with IsNotFound.
type notFoundError struct{ gameID string }

func (e *notFoundError) Error() string { return "store: no snapshot for game " + e.gameID }

func NewNotFoundError(gameID string) error { return &notFoundError{gameID: gameID} }

func IsNotFound(err error) bool {
	_, ok := err.(*notFoundError)
	return ok
}
