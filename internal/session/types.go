// Package session implements the Game Session (spec 4.D): a hosted table's
// identity, roster, config, and private-game control plane.
package session

import (
	"time"

	"github.com/vctt94/holdemserver/internal/engine"
	"github.com/vctt94/holdemserver/internal/statemachine"
)

// Status is a player's status within a session (spec 3).
type Status string

const (
	StatusSeated              Status = "SEATED"
	StatusWaitingForNextHand   Status = "WAITING_FOR_NEXT_HAND"
	StatusActive               Status = "ACTIVE"
	StatusDisconnected          Status = "DISCONNECTED"
	StatusLeft                  Status = "LEFT"
	StatusRemoved                Status = "REMOVED"
	StatusEliminated              Status = "ELIMINATED"
)

// Player is spec 3's Player, scoped to one session.
type Player struct {
	ID              string
	DisplayName     string
	IsBot           bool
	IsHost          bool
	Seat            int
	Chips           int64
	Status          Status
	RevealedCards   map[int]bool // hole-card index -> revealed
	LastAction      time.Time
	DisconnectedAt  time.Time
	JoinedAt        time.Time
}

func NewPlayer(id, displayName string, seat int, startingStack int64, isBot bool) *Player {
	return &Player{
		ID:            id,
		DisplayName:   displayName,
		IsBot:         isBot,
		Seat:          seat,
		Chips:         startingStack,
		Status:        StatusWaitingForNextHand,
		RevealedCards: map[int]bool{},
		JoinedAt:      time.Now(),
	}
}

// PendingRequest is spec 3's pendingRequests entry.
type PendingRequest struct {
	UserID      string
	DisplayName string
	Kind        string // "join"
	RequestedAt time.Time
}

// Status values for the session itself (spec 3).
type SessionStatus string

const (
	SessionWaiting  SessionStatus = "waiting"
	SessionStarting SessionStatus = "starting"
	SessionActive   SessionStatus = "active"
	SessionFinished SessionStatus = "finished"
)

// Session is spec 3's Session: one hosted table.
type Session struct {
	GameID   string
	JoinCode string
	Status   SessionStatus

	Players         map[string]*Player // by player id
	Spectators      map[string]bool
	PendingRequests []*PendingRequest

	HostID    string
	IsPrivate bool
	IsPaused  bool

	Config  engine.Config
	Hand    *engine.Hand // nil until the first preflop begins
	History []string     // append-only hand-history log

	CreatedAt    time.Time
	LastActivity time.Time

	lifecycle *statemachine.Machine[Session]
}

// New creates a fresh session in `waiting` (private) or `starting` (matched) status.
func New(gameID, joinCode string, cfg engine.Config, isPrivate bool, hostID string) *Session {
	s := &Session{
		GameID:      gameID,
		JoinCode:    joinCode,
		Players:     map[string]*Player{},
		Spectators:  map[string]bool{},
		HostID:      hostID,
		IsPrivate:   isPrivate,
		Config:      cfg,
		CreatedAt:   time.Now(),
		LastActivity: time.Now(),
	}
	if isPrivate {
		s.Status = SessionWaiting
	} else {
		s.Status = SessionStarting
	}
	s.lifecycle = newLifecycleMachine(s)
	return s
}

func newLifecycleMachine(s *Session) *statemachine.Machine[Session] {
	return statemachine.New(s, stateFor(s.Status))
}

func stateFor(status SessionStatus) statemachine.StateFn[Session] {
	switch status {
	case SessionWaiting:
		return stateWaiting
	case SessionStarting:
		return stateStarting
	case SessionActive:
		return stateActive
	default:
		return stateFinished
	}
}

// The four functions below mirror spec 3's lifecycle narration as an actual
// state-function chain (the reference's Rob-Pike pattern, generalized to the
// session rather than the hand): each inspects s.Status (set by the caller
// before Dispatch) and returns the function for the next legal state.
func stateWaiting(s *Session) statemachine.StateFn[Session] {
	if s.Status == SessionActive {
		return stateActive
	}
	if s.Status == SessionFinished {
		return stateFinished
	}
	return stateWaiting
}

func stateStarting(s *Session) statemachine.StateFn[Session] {
	if s.Status == SessionActive {
		return stateActive
	}
	if s.Status == SessionFinished {
		return stateFinished
	}
	return stateStarting
}

func stateActive(s *Session) statemachine.StateFn[Session] {
	if s.Status == SessionFinished {
		return stateFinished
	}
	return stateActive
}

func stateFinished(s *Session) statemachine.StateFn[Session] {
	return stateFinished
}

// transitionTo moves the session to a new status and dispatches the
// lifecycle machine so Current() reflects it.
func (s *Session) transitionTo(status SessionStatus) {
	s.Status = status
	s.lifecycle.Dispatch()
	s.LastActivity = time.Now()
}

// SeatedPlayers returns players in seat order who are not LEFT/REMOVED.
func (s *Session) SeatedPlayers() []*Player {
	var out []*Player
	for _, p := range s.Players {
		if p.Status == StatusLeft || p.Status == StatusRemoved {
			continue
		}
		out = append(out, p)
	}
	sortBySeat(out)
	return out
}

func sortBySeat(players []*Player) {
	for i := 1; i < len(players); i++ {
		for j := i; j > 0 && players[j].Seat < players[j-1].Seat; j-- {
			players[j], players[j-1] = players[j-1], players[j]
		}
	}
}

// handParticipants builds the engine.Participant slice for the next hand
// from every seated player with chips, preserving hole cards is not needed
// here since DealPreflop resets them.
func (s *Session) handParticipants() []*engine.Participant {
	var out []*engine.Participant
	for _, p := range s.SeatedPlayers() {
		if p.Chips <= 0 {
			continue
		}
		out = append(out, &engine.Participant{Seat: p.Seat, PlayerID: p.ID, Chips: p.Chips, EligibleToBet: true})
	}
	return out
}

// syncChipsFromHand writes each participant's post-hand chip count back onto
// the durable Player record, and marks busted players ELIMINATED.
func (s *Session) syncChipsFromHand() {
	if s.Hand == nil {
		return
	}
	for _, part := range s.Hand.Context().Participants {
		p := s.playerAtSeat(part.Seat)
		if p == nil {
			continue
		}
		p.Chips = part.Chips
		if p.Chips <= 0 && p.Status == StatusActive {
			p.Status = StatusEliminated
		}
	}
}

func (s *Session) playerAtSeat(seat int) *Player {
	for _, p := range s.Players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}
