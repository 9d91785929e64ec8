package session

import (
	"fmt"

	"github.com/vctt94/holdemserver/internal/engine"
)

// AddPlayers assigns unique seats 1..maxPlayers to new players (spec 4.D
// addPlayers), rejecting if a seat is already taken or the table is full.
func (s *Session) AddPlayers(newPlayers []*Player) error {
	taken := map[int]bool{}
	for _, p := range s.Players {
		taken[p.Seat] = true
	}
	for _, np := range newPlayers {
		if len(s.Players) >= s.Config.MaxPlayers {
			return fmt.Errorf("session: table is full")
		}
		if taken[np.Seat] {
			return fmt.Errorf("session: seat %d already taken", np.Seat)
		}
		taken[np.Seat] = true
		s.Players[np.ID] = np
	}
	s.LastActivity = nowOrStub()
	return nil
}

// RequestSeat appends a join request (spec 4.D requestSeat).
func (s *Session) RequestSeat(userID, displayName string) error {
	if _, seated := s.Players[userID]; seated {
		return fmt.Errorf("session: %w", errAlreadySeated)
	}
	for _, r := range s.PendingRequests {
		if r.UserID == userID {
			return fmt.Errorf("session: %w", errAlreadyRequested)
		}
	}
	s.PendingRequests = append(s.PendingRequests, &PendingRequest{
		UserID: userID, DisplayName: displayName, Kind: "join", RequestedAt: nowOrStub(),
	})
	return nil
}

// MaybeStartHand begins the first (or next) hand if at least two seated
// players have chips and the session is not paused (spec 4.C "waiting ->
// preflop").
func (s *Session) MaybeStartHand() (engine.Result, bool) {
	if s.IsPaused {
		return engine.Result{}, false
	}
	participants := s.handParticipants()
	if len(participants) < 2 {
		return engine.Result{}, false
	}
	res, err := s.startHand()
	if err != nil {
		return engine.Result{}, false
	}
	return res, true
}

func (s *Session) startHand() (engine.Result, error) {
	participants := s.handParticipants()
	if len(participants) < 2 {
		return engine.Result{}, fmt.Errorf("session: not enough players with chips")
	}
	button := 0
	handNum := 0
	if s.Hand != nil {
		button = s.Hand.Context().ButtonSeat
		handNum = s.Hand.Context().HandNumber
	}
	s.Hand = engine.NewHand(participants, button, handNum, s.Config)
	s.transitionTo(SessionActive)
	for _, p := range s.SeatedPlayers() {
		if p.Status == StatusWaitingForNextHand {
			p.Status = StatusActive
		}
	}
	return s.Hand.DealPreflop(), nil
}

// HandleAction applies one betting action and, if it completes the round,
// reconciles pots and reports whatever follow-on effect the hand needs
// (immediate showdown, or a SCHEDULE_TRANSITION for the next street).
func (s *Session) HandleAction(action engine.Action) (engine.Result, error) {
	if s.Hand == nil {
		return engine.Result{}, fmt.Errorf("session: %w", errNotInGame)
	}
	res, complete, err := s.Hand.Apply(action)
	if err != nil {
		return engine.Result{}, err
	}
	s.LastActivity = nowOrStub()
	if !complete {
		return res, nil
	}

	endRes := s.Hand.EndRound()
	merged := mergeResults(res, endRes)

	if endRes.Context.Phase == engine.PhaseShowdown && len(endRes.Effects) == 0 {
		merged = mergeResults(merged, s.finishShowdown())
	}
	return merged, nil
}

// AdvancePhase is invoked by the Effect Processor when a SCHEDULE_TRANSITION
// effect fires (spec 4.E): deals the next street, or re-enters preflop for
// the next hand.
func (s *Session) AdvancePhase(target engine.Phase) (engine.Result, error) {
	if s.Hand == nil && target != engine.PhasePreflop {
		return engine.Result{}, fmt.Errorf("session: %w", errNotInGame)
	}

	switch target {
	case engine.PhaseFlop, engine.PhaseTurn, engine.PhaseRiver:
		res := s.Hand.DealStreet(target)
		if res.Context.CurrentActorSeat == engine.NoSeat {
			// Runout: nobody can act, keep the board moving automatically.
			res = mergeResults(res, s.Hand.EndRound())
			if s.Hand.Context().Phase == engine.PhaseShowdown {
				res = mergeResults(res, s.finishShowdown())
			}
		}
		return res, nil

	case engine.PhaseShowdown:
		return s.finishShowdown(), nil

	case engine.PhasePreflop:
		if s.IsPaused {
			return engine.Result{}, nil
		}
		res, started := s.MaybeStartHand()
		if !started {
			s.transitionTo(SessionFinished)
			return engine.Result{Events: []engine.Event{{Type: "GAME_FINISHED", Data: map[string]any{"reason": "last_player_standing"}}}}, nil
		}
		return res, nil

	default:
		return engine.Result{}, fmt.Errorf("session: unsupported phase transition %q", target)
	}
}

func (s *Session) finishShowdown() engine.Result {
	res := s.Hand.Showdown()
	s.syncChipsFromHand()

	if s.Hand.Complete() {
		res.Effects = append(res.Effects, engine.Effect{
			Kind: engine.EffectScheduleTransition, TargetPhase: engine.PhasePreflop, DelayMs: s.Config.PhaseTransitionDelayMs,
		})
	} else {
		res.Effects = append(res.Effects, engine.Effect{Kind: engine.EffectEndGame, Reason: "last_player_standing"})
	}
	return res
}

func mergeResults(a, b engine.Result) engine.Result {
	out := a
	out.Context = b.Context
	out.Events = append(append([]engine.Event{}, a.Events...), b.Events...)
	out.Effects = append(append([]engine.Effect{}, a.Effects...), b.Effects...)
	return out
}
