package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the reference Store implementation (spec 6), grounded on
// the database/sql + mattn/go-sqlite3 pattern: one file, WAL-friendly,
// fine for a single registry process.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates (or reopens) a SQLite-backed store at path, creating its
// schema if missing.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS games (
			game_id TEXT PRIMARY KEY,
			join_code TEXT NOT NULL,
			status TEXT NOT NULL,
			host_id TEXT NOT NULL,
			is_private BOOLEAN NOT NULL DEFAULT FALSE,
			is_paused BOOLEAN NOT NULL DEFAULT FALSE,
			config_json TEXT NOT NULL DEFAULT '{}',
			players_json TEXT NOT NULL DEFAULT '[]',
			hand_json TEXT NOT NULL DEFAULT '',
			history_json TEXT NOT NULL DEFAULT '[]',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chip_ledger (
			idempotency_key TEXT PRIMARY KEY,
			player_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			kind TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS hand_histories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id TEXT NOT NULL,
			hand_number INTEGER NOT NULL,
			payload_json TEXT NOT NULL,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS player_balances (
			player_id TEXT PRIMARY KEY,
			balance INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap GameSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO games (game_id, join_code, status, host_id, is_private, is_paused, config_json, players_json, hand_json, history_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			join_code=excluded.join_code, status=excluded.status, host_id=excluded.host_id,
			is_private=excluded.is_private, is_paused=excluded.is_paused,
			config_json=excluded.config_json, players_json=excluded.players_json,
			hand_json=excluded.hand_json, history_json=excluded.history_json, updated_at=excluded.updated_at
	`, snap.GameID, snap.JoinCode, snap.Status, snap.HostID, snap.IsPrivate, snap.IsPaused,
		snap.ConfigJSON, snap.PlayersJSON, snap.HandJSON, snap.HistoryJSON, time.Now())
	return err
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, gameID string) (*GameSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT game_id, join_code, status, host_id, is_private, is_paused, config_json, players_json, hand_json, history_json, updated_at
		FROM games WHERE game_id = ?`, gameID)

	var snap GameSnapshot
	err := row.Scan(&snap.GameID, &snap.JoinCode, &snap.Status, &snap.HostID, &snap.IsPrivate, &snap.IsPaused,
		&snap.ConfigJSON, &snap.PlayersJSON, &snap.HandJSON, &snap.HistoryJSON, &snap.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError(gameID)
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, gameID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE game_id = ?`, gameID)
	return err
}

func (s *SQLiteStore) ListActiveGameIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT game_id FROM games WHERE status != 'finished'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeductChips and PayoutChips are idempotent on idempotencyKey: a second
// call with the same key after a crash mid-retry is a deliberate no-op
// rather than a double-charge.
func (s *SQLiteStore) DeductChips(ctx context.Context, playerID string, amount int64, idempotencyKey string) error {
	return s.applyLedgerEntry(ctx, playerID, -amount, "deduct", idempotencyKey)
}

func (s *SQLiteStore) PayoutChips(ctx context.Context, playerID string, amount int64, idempotencyKey string) error {
	return s.applyLedgerEntry(ctx, playerID, amount, "payout", idempotencyKey)
}

func (s *SQLiteStore) applyLedgerEntry(ctx context.Context, playerID string, delta int64, kind, idempotencyKey string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var already string
	err = tx.QueryRowContext(ctx, `SELECT idempotency_key FROM chip_ledger WHERE idempotency_key = ?`, idempotencyKey).Scan(&already)
	if err == nil {
		return tx.Commit() // already applied, nothing to do
	}
	if err != sql.ErrNoRows {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO player_balances (player_id, balance) VALUES (?, ?)
		ON CONFLICT(player_id) DO UPDATE SET balance = balance + excluded.balance
	`, playerID, delta); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chip_ledger (idempotency_key, player_id, amount, kind) VALUES (?, ?, ?, ?)
	`, idempotencyKey, playerID, delta, kind); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) AppendHandHistory(ctx context.Context, rec HandHistoryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hand_histories (game_id, hand_number, payload_json, recorded_at) VALUES (?, ?, ?, ?)
	`, rec.GameID, rec.HandNumber, rec.PayloadJSON, time.Now())
	return err
}

// StartGameFromQueue writes a 'starting' row for gameID and joinCode in one
// transaction (spec 4.G): if the game_id already exists this is a conflict,
// never a silent overwrite. playerIDs is not stored; the row's players_json
// stays "[]" until the session itself is persisted.
func (s *SQLiteStore) StartGameFromQueue(ctx context.Context, gameID, joinCode string, playerIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT game_id FROM games WHERE game_id = ?`, gameID).Scan(&existing)
	if err == nil {
		return fmt.Errorf("store: game %s already reserved", gameID)
	}
	if err != sql.ErrNoRows {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO games (game_id, join_code, status, host_id, players_json, updated_at)
		VALUES (?, ?, 'starting', '', '[]', ?)
	`, gameID, joinCode, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
