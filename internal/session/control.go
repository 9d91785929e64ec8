package session

import (
	"fmt"
	"time"

	"github.com/vctt94/holdemserver/internal/engine"
)

// requireHost enforces spec 4.D's private control plane: every admin
// operation is rejected with Unauthorized unless issued by the current host.
func (s *Session) requireHost(callerID string) error {
	if callerID != s.HostID {
		return fmt.Errorf("session: %w", errUnauthorized)
	}
	return nil
}

// ApproveSeat seats a pending join request at the first empty seat, crediting
// the session's configured starting stack (spec 4.D "APPROVE": "seats the
// guest at the first empty seat with status WAITING_FOR_NEXT_HAND").
func (s *Session) ApproveSeat(hostID string, requesterID string) error {
	if err := s.requireHost(hostID); err != nil {
		return err
	}
	idx := s.findPendingIndex(requesterID)
	if idx < 0 {
		return fmt.Errorf("session: %w", errNoSuchPending)
	}
	if len(s.Players) >= s.Config.MaxPlayers {
		return fmt.Errorf("session: table is full")
	}
	seat := s.firstEmptySeat()
	if seat < 0 {
		return fmt.Errorf("session: no empty seat available")
	}
	req := s.PendingRequests[idx]
	s.Players[req.UserID] = NewPlayer(req.UserID, req.DisplayName, seat, s.Config.StartingStack, false)
	s.PendingRequests = append(s.PendingRequests[:idx], s.PendingRequests[idx+1:]...)
	s.LastActivity = nowOrStub()
	return nil
}

// firstEmptySeat returns the lowest seat number (1-indexed, spec 3) not
// currently occupied, or -1 if the table's seats are all taken.
func (s *Session) firstEmptySeat() int {
	taken := make(map[int]bool, len(s.Players))
	for _, p := range s.Players {
		taken[p.Seat] = true
	}
	for seat := 1; seat <= s.Config.MaxPlayers; seat++ {
		if !taken[seat] {
			return seat
		}
	}
	return -1
}

// RejectSeat discards a pending join request (spec 4.D "REJECT").
func (s *Session) RejectSeat(hostID string, requesterID string) error {
	if err := s.requireHost(hostID); err != nil {
		return err
	}
	idx := s.findPendingIndex(requesterID)
	if idx < 0 {
		return fmt.Errorf("session: %w", errNoSuchPending)
	}
	s.PendingRequests = append(s.PendingRequests[:idx], s.PendingRequests[idx+1:]...)
	return nil
}

func (s *Session) findPendingIndex(userID string) int {
	for i, r := range s.PendingRequests {
		if r.UserID == userID {
			return i
		}
	}
	return -1
}

// Kick removes a seated player (spec 4.D "KICK"). A player still active in
// the current hand is folded out first rather than pulled mid-hand.
func (s *Session) Kick(hostID string, targetID string) error {
	if err := s.requireHost(hostID); err != nil {
		return err
	}
	p, ok := s.Players[targetID]
	if !ok {
		return fmt.Errorf("session: %w", errUnknownPlayer)
	}
	if s.Hand != nil {
		if part := s.Hand.Context().BySeat(p.Seat); part != nil && !part.Folded {
			part.Folded = true
		}
	}
	p.Status = StatusRemoved
	s.LastActivity = nowOrStub()
	return nil
}

// SetStack overrides a seated player's chip count between hands (spec 4.D
// "SET_STACK"); rejected while that player is in an active hand so chip
// conservation (Invariant 1) is never violated mid-hand.
func (s *Session) SetStack(hostID string, targetID string, amount int64) error {
	if err := s.requireHost(hostID); err != nil {
		return err
	}
	p, ok := s.Players[targetID]
	if !ok {
		return fmt.Errorf("session: %w", errUnknownPlayer)
	}
	if s.Hand != nil && s.Hand.Context().Phase != engine.PhaseComplete && s.Hand.Context().Phase != engine.PhaseWaiting {
		if part := s.Hand.Context().BySeat(p.Seat); part != nil {
			return fmt.Errorf("session: cannot set stack while seat %d is in a hand", p.Seat)
		}
	}
	if amount < 0 {
		return fmt.Errorf("session: stack cannot be negative")
	}
	p.Chips = amount
	return nil
}

// SetBlinds changes the session's blind levels for hands dealt from now on
// (spec 4.D "SET_BLINDS"); does not affect a hand already in progress.
func (s *Session) SetBlinds(hostID string, smallBlind, bigBlind int64) error {
	if err := s.requireHost(hostID); err != nil {
		return err
	}
	if smallBlind <= 0 || bigBlind <= smallBlind {
		return fmt.Errorf("session: invalid blind levels")
	}
	s.Config.SmallBlind = smallBlind
	s.Config.BigBlind = bigBlind
	return nil
}

// Pause freezes the table: no new hand starts and action deadlines stop
// being enforced by the heartbeat (spec 4.D "PAUSE" / 4.F). The current
// actor's deadline is cleared rather than left stale, so their turn is
// preserved without the heartbeat auto-folding them on resume.
func (s *Session) Pause(hostID string) error {
	if err := s.requireHost(hostID); err != nil {
		return err
	}
	s.IsPaused = true
	if s.Hand != nil {
		s.Hand.Context().ActionDeadline = time.Time{}
	}
	return nil
}

// Resume lifts a pause (spec 4.D "RESUME" / scenario S6): if a hand is still
// waiting on an actor, their deadline is re-armed and a fresh
// turn_timer_started event/effect is returned for the caller to broadcast
// and schedule, rather than leaving the stale pre-pause deadline in place.
func (s *Session) Resume(hostID string) (engine.Result, error) {
	if err := s.requireHost(hostID); err != nil {
		return engine.Result{}, err
	}
	s.IsPaused = false
	s.LastActivity = nowOrStub()

	var res engine.Result
	if s.Hand != nil && s.Hand.Context().CurrentActorSeat != engine.NoSeat {
		ctx := s.Hand.Context()
		ev, eff := engine.ResumeTurnTimer(ctx)
		res = engine.Result{Context: ctx, Events: []engine.Event{ev}, Effects: []engine.Effect{eff}}
	}
	return res, nil
}

// StartGame forces the first hand in a private game regardless of the
// configured auto-start behavior (spec 4.D "START_GAME").
func (s *Session) StartGame(hostID string) (engine.Result, error) {
	if err := s.requireHost(hostID); err != nil {
		return engine.Result{}, err
	}
	res, started := s.MaybeStartHand()
	if !started {
		return engine.Result{}, fmt.Errorf("session: not enough players with chips to start")
	}
	return res, nil
}

// HostSelfSeat lets the host take a seat at their own table without going
// through the join-request flow (spec 4.D "host_self_seat").
func (s *Session) HostSelfSeat(hostID string, seat int) error {
	if _, already := s.Players[hostID]; already {
		return fmt.Errorf("session: %w", errAlreadySeated)
	}
	for _, p := range s.Players {
		if p.Seat == seat {
			return fmt.Errorf("session: %w", errSeatTaken)
		}
	}
	p := NewPlayer(hostID, "host", seat, s.Config.StartingStack, false)
	p.IsHost = true
	s.Players[hostID] = p
	return nil
}

// RevealCard lets a player voluntarily show a hole card after a hand
// reaches showdown or folds face-up (spec 4.D "reveal(index)").
func (s *Session) RevealCard(playerID string, cardIndex int) error {
	p, ok := s.Players[playerID]
	if !ok {
		return fmt.Errorf("session: %w", errUnknownPlayer)
	}
	if s.Hand == nil {
		return fmt.Errorf("session: %w", errNotInGame)
	}
	part := s.Hand.Context().BySeat(p.Seat)
	if part == nil || cardIndex < 0 || cardIndex >= len(part.HoleCards) {
		return fmt.Errorf("session: invalid card index %d", cardIndex)
	}
	p.RevealedCards[cardIndex] = true
	return nil
}

// SucceedHost promotes the longest-seated connected non-bot player to host
// when the current host disconnects or leaves (spec 9 supplemented feature).
func (s *Session) SucceedHost() (newHostID string, ok bool) {
	var candidate *Player
	for _, p := range s.SeatedPlayers() {
		if p.IsBot || p.ID == s.HostID {
			continue
		}
		if p.Status == StatusLeft || p.Status == StatusRemoved || p.Status == StatusDisconnected {
			continue
		}
		if candidate == nil || p.JoinedAt.Before(candidate.JoinedAt) {
			candidate = p
		}
	}
	if candidate == nil {
		return "", false
	}
	if old, ok := s.Players[s.HostID]; ok {
		old.IsHost = false
	}
	s.HostID = candidate.ID
	candidate.IsHost = true
	return candidate.ID, true
}
