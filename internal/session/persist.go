package session

import (
	"encoding/json"
	"fmt"

	"github.com/vctt94/holdemserver/internal/engine"
	"github.com/vctt94/holdemserver/internal/store"
)

// Snapshot is the JSON-friendly projection of a Session used by the store
// (spec 4.H): every exported field round-trips, the lifecycle state
// function itself does not (it is rederived from Status on Restore).
type Snapshot struct {
	GameID          string
	JoinCode        string
	Status          SessionStatus
	HostID          string
	IsPrivate       bool
	IsPaused        bool
	Config          engine.Config
	Players         []*Player
	PendingRequests []*PendingRequest
	Hand            *engine.HandContext
	History         []string
}

// ToSnapshot captures the session's full persistent state.
func (s *Session) ToSnapshot() Snapshot {
	var players []*Player
	for _, p := range s.Players {
		players = append(players, p)
	}
	var hand *engine.HandContext
	if s.Hand != nil {
		hand = s.Hand.Context()
	}
	return Snapshot{
		GameID: s.GameID, JoinCode: s.JoinCode, Status: s.Status, HostID: s.HostID,
		IsPrivate: s.IsPrivate, IsPaused: s.IsPaused, Config: s.Config,
		Players: players, PendingRequests: s.PendingRequests, Hand: hand, History: s.History,
	}
}

// MarshalSnapshot encodes ToSnapshot's result as a single JSON blob; FromJSON
// is its inverse.
func (s *Session) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(s.ToSnapshot())
}

// Restore rebuilds a Session from a previously captured Snapshot (spec 4.H
// "just-in-time rehydration"): the lifecycle state machine is re-entered at
// whatever state function corresponds to the persisted Status rather than
// replayed through waiting/starting.
func Restore(snap Snapshot) *Session {
	s := &Session{
		GameID: snap.GameID, JoinCode: snap.JoinCode, Status: snap.Status, HostID: snap.HostID,
		IsPrivate: snap.IsPrivate, IsPaused: snap.IsPaused, Config: snap.Config,
		Players: map[string]*Player{}, PendingRequests: snap.PendingRequests, History: snap.History,
	}
	for _, p := range snap.Players {
		s.Players[p.ID] = p
	}
	if snap.Hand != nil {
		s.Hand = engine.ReattachHand(snap.Hand)
	}
	s.lifecycle = newLifecycleMachine(s)
	return s
}

// FromJSON parses a store-persisted snapshot blob.
func FromJSON(data []byte) (*Session, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("session: decode snapshot: %w", err)
	}
	return Restore(snap), nil
}

// ToStoreSnapshot flattens a Session into the store's row shape, encoding
// each nested field to its own JSON column. Shared by the registry's
// rehydration path and the offline pokerctl tool so both write the same
// on-disk representation.
func ToStoreSnapshot(s *Session) (store.GameSnapshot, error) {
	snap := s.ToSnapshot()
	cfgJSON, err := json.Marshal(snap.Config)
	if err != nil {
		return store.GameSnapshot{}, fmt.Errorf("encode config: %w", err)
	}
	playersJSON, err := json.Marshal(snap.Players)
	if err != nil {
		return store.GameSnapshot{}, fmt.Errorf("encode players: %w", err)
	}
	historyJSON, err := json.Marshal(snap.History)
	if err != nil {
		return store.GameSnapshot{}, fmt.Errorf("encode history: %w", err)
	}
	var handJSON []byte
	if snap.Hand != nil {
		handJSON, err = json.Marshal(snap.Hand)
		if err != nil {
			return store.GameSnapshot{}, fmt.Errorf("encode hand: %w", err)
		}
	}
	return store.GameSnapshot{
		GameID:      snap.GameID,
		JoinCode:    snap.JoinCode,
		Status:      string(snap.Status),
		HostID:      snap.HostID,
		IsPrivate:   snap.IsPrivate,
		IsPaused:    snap.IsPaused,
		ConfigJSON:  string(cfgJSON),
		PlayersJSON: string(playersJSON),
		HandJSON:    string(handJSON),
		HistoryJSON: string(historyJSON),
	}, nil
}

// FromStoreSnapshot is the inverse of ToStoreSnapshot.
func FromStoreSnapshot(row store.GameSnapshot) (*Session, error) {
	var snap Snapshot
	snap.GameID, snap.JoinCode, snap.Status, snap.HostID = row.GameID, row.JoinCode, SessionStatus(row.Status), row.HostID
	snap.IsPrivate, snap.IsPaused = row.IsPrivate, row.IsPaused

	if err := json.Unmarshal([]byte(row.ConfigJSON), &snap.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := json.Unmarshal([]byte(row.PlayersJSON), &snap.Players); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	if row.HistoryJSON != "" {
		if err := json.Unmarshal([]byte(row.HistoryJSON), &snap.History); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
	}
	if row.HandJSON != "" {
		snap.Hand = &engine.HandContext{}
		if err := json.Unmarshal([]byte(row.HandJSON), snap.Hand); err != nil {
			return nil, fmt.Errorf("decode hand: %w", err)
		}
	}
	return Restore(snap), nil
}
