package engine

import (
	"sort"
	"time"

	"github.com/vctt94/holdemserver/internal/cards"
)

// Hand drives one hand of the state machine in spec 4.C: deal -> preflop ->
// flop -> turn -> river -> showdown -> complete, with runout as a side
// branch when all remaining players are all-in. It wraps a *HandContext and
// exposes pure-ish transition methods, each returning the spec's
// {events, effects} alongside mutating the context (design note 9: the
// session applies/owns the resulting context; only the engine call itself is
// impure, there is no separate onEnter callback chain as in the reference).
type Hand struct {
	ctx *HandContext
}

// NewHand seeds a fresh HandContext from the given seated participants (each
// with Chips already set to their stack entering the hand) and the prior
// hand's button seat (0 if this is the first hand).
func NewHand(participants []*Participant, priorButtonSeat int, handNumber int, cfg Config) *Hand {
	sort.Slice(participants, func(i, j int) bool { return participants[i].Seat < participants[j].Seat })
	return &Hand{ctx: &HandContext{
		HandNumber:       handNumber,
		ButtonSeat:       priorButtonSeat,
		Phase:            PhaseWaiting,
		CurrentActorSeat: NoSeat,
		LastAggressorSeat: NoSeat,
		Participants:     participants,
		Config:           cfg,
	}}
}

// Context returns the live hand context (for session snapshotting/persistence).
func (h *Hand) Context() *HandContext { return h.ctx }

// ReattachHand wraps a HandContext decoded from a persisted snapshot back
// into a *Hand (spec 4.H rehydration): the context itself round-trips
// through JSON verbatim, only the Hand wrapper needs reconstructing.
func ReattachHand(ctx *HandContext) *Hand {
	return &Hand{ctx: ctx}
}

func (h *Hand) activeSeats() []int {
	var seats []int
	for _, p := range h.ctx.Participants {
		if p.Chips > 0 {
			seats = append(seats, p.Seat)
		}
	}
	return seats
}

// DealPreflop is spec 4.C's "preflop onEnter".
func (h *Hand) DealPreflop() Result {
	ctx := h.ctx
	active := h.activeSeats()

	ctx.HandNumber++
	ctx.ButtonSeat = nextEligibleSeat(ctx, ctx.ButtonSeat)
	ctx.CommunityCards = nil
	ctx.Pots = nil
	for _, p := range ctx.Participants {
		p.Folded = false
		p.AllIn = p.Chips <= 0
		p.HasActed = false
		p.HoleCards = nil
		p.CurrentBet = 0
		p.TotalBet = 0
		p.HandValue = nil
		p.HandDescription = ""
		p.EligibleToBet = p.Chips > 0
	}

	deck := cards.NewShuffledDeck()
	ctx.Deck = deck
	dealOrder := clockwise(ctx, ctx.ButtonSeat)
	for round := 0; round < 2; round++ {
		for _, seat := range dealOrder {
			p := ctx.BySeat(seat)
			if p.Chips <= 0 {
				continue
			}
			p.HoleCards = append(p.HoleCards, deck.Deal(1)...)
		}
	}

	events := postBlinds(ctx, active)

	ctx.MinRaise = 2 * ctx.Config.BigBlind
	ctx.Phase = PhasePreflop
	ctx.FirstActorSeat = firstPreflopActor(ctx, active)
	ctx.CurrentActorSeat = ctx.FirstActorSeat
	setDeadline(ctx)

	events = append(events, Event{Type: "DEAL_STREET", Data: map[string]any{"round": "preflop"}})
	return Result{Context: ctx, Events: events, Effects: []Effect{startTurnTimer(ctx)}}
}

// postBlinds posts small/big blind per spec 4.C, including the heads-up
// special case (button is SB and acts first preflop) and the "blinds that
// don't cover the nominal amount go all-in" rule.
func postBlinds(ctx *HandContext, active []int) []Event {
	var events []Event
	order := clockwise(ctx, ctx.ButtonSeat)

	var sbSeat, bbSeat int
	if len(active) == 2 {
		// Heads-up: the button is the small blind.
		sbSeat = ctx.ButtonSeat
		bbSeat = otherSeat(active, sbSeat)
	} else {
		sbSeat = order[0]
		bbSeat = order[1]
	}

	sb := ctx.BySeat(sbSeat)
	postBlind(sb, ctx.Config.SmallBlind)
	events = append(events, Event{Type: "PLAYER_ACTION", Data: map[string]any{"seat": sbSeat, "action": "post_sb", "amount": sb.CurrentBet}})

	bb := ctx.BySeat(bbSeat)
	postBlind(bb, ctx.Config.BigBlind)
	events = append(events, Event{Type: "PLAYER_ACTION", Data: map[string]any{"seat": bbSeat, "action": "post_bb", "amount": bb.CurrentBet}})

	return events
}

func postBlind(p *Participant, amount int64) {
	post := min64(amount, p.Chips)
	moveToPot(p, post)
	if p.Chips == 0 {
		p.AllIn = true
	}
}

func otherSeat(active []int, exclude int) int {
	for _, s := range active {
		if s != exclude {
			return s
		}
	}
	return exclude
}

// firstPreflopActor: heads-up the button/SB acts first; otherwise the first
// eligible seat left of the big blind (UTG).
func firstPreflopActor(ctx *HandContext, active []int) int {
	if len(active) == 2 {
		return ctx.ButtonSeat
	}
	order := clockwise(ctx, ctx.ButtonSeat)
	bbSeat := order[1]
	for _, seat := range clockwise(ctx, bbSeat) {
		if eligiblePredicate(ctx.BySeat(seat)) {
			return seat
		}
	}
	return NoSeat
}

// DealStreet deals the flop/turn/river's community cards (spec 4.C), burning
// one card first, and resets betting state for the round.
func (h *Hand) DealStreet(phase Phase) Result {
	ctx := h.ctx
	ctx.Deck.Burn()

	var n int
	switch phase {
	case PhaseFlop:
		n = 3
	case PhaseTurn, PhaseRiver:
		n = 1
	}
	ctx.CommunityCards = append(ctx.CommunityCards, ctx.Deck.Deal(n)...)

	for _, p := range ctx.Participants {
		p.CurrentBet = 0
		if !p.AllIn && !p.Folded {
			p.EligibleToBet = true
		}
	}
	ctx.MinRaise = ctx.Config.BigBlind
	ctx.LastAggressorSeat = NoSeat
	ctx.Phase = phase

	eligibleCount := 0
	for _, p := range ctx.Participants {
		if eligiblePredicate(p) {
			eligibleCount++
		}
	}
	if eligibleCount < 2 {
		ctx.CurrentActorSeat = NoSeat
	} else {
		ctx.CurrentActorSeat = firstActorClockwiseFromButton(ctx)
		ctx.FirstActorSeat = ctx.CurrentActorSeat
		setDeadline(ctx)
	}

	events := []Event{{Type: "DEAL_STREET", Data: map[string]any{"round": string(phase), "cards": ctx.CommunityCards}}}
	var effects []Effect
	if ctx.CurrentActorSeat != NoSeat {
		effects = append(effects, startTurnTimer(ctx))
	}
	return Result{Context: ctx, Events: events, Effects: effects}
}

func firstActorClockwiseFromButton(ctx *HandContext) int {
	for _, seat := range clockwise(ctx, ctx.ButtonSeat) {
		if eligiblePredicate(ctx.BySeat(seat)) {
			return seat
		}
	}
	return NoSeat
}

// Apply runs one betting action through the round engine and reports whether
// the round is now complete, so the caller knows to reconcile pots and
// advance the phase.
func (h *Hand) Apply(action Action) (Result, bool, error) {
	events, err := ApplyAction(h.ctx, action)
	if err != nil {
		return Result{}, false, err
	}
	complete := RoundComplete(h.ctx)
	var effects []Effect
	if !complete {
		setDeadline(h.ctx)
		effects = append(effects, startTurnTimer(h.ctx))
	} else {
		h.ctx.ActionDeadline = time.Time{}
	}
	return Result{Context: h.ctx, Events: events, Effects: effects}, complete, nil
}

// EndRound reconciles pots after a completed betting round and decides what
// happens next per spec 4.C: showdown if one player remains, runout if
// everyone left is all-in, otherwise schedule the next street.
func (h *Hand) EndRound() Result {
	ctx := h.ctx
	ReturnUncalledBet(ctx)
	ReconcilePots(ctx)

	nonFolded := nonFoldedSeats(ctx)
	if len(nonFolded) == 1 {
		ctx.Phase = PhaseShowdown
		return Result{Context: ctx, Events: []Event{{Type: "HAND_RUNOUT", Data: map[string]any{"winnerSeat": nonFolded[0]}}}}
	}

	if allRemainingAllIn(ctx) {
		next := nextStreet(ctx.Phase)
		ctx.Phase = PhaseRunout
		return Result{Context: ctx, Effects: []Effect{{Kind: EffectScheduleTransition, TargetPhase: next, DelayMs: ctx.Config.RunoutDelayMs}}}
	}

	return Result{Context: ctx, Effects: []Effect{{Kind: EffectScheduleTransition, TargetPhase: nextStreet(ctx.Phase), DelayMs: ctx.Config.PhaseTransitionDelayMs}}}
}

func nextStreet(phase Phase) Phase {
	switch phase {
	case PhasePreflop:
		return PhaseFlop
	case PhaseFlop:
		return PhaseTurn
	case PhaseTurn:
		return PhaseRiver
	case PhaseRiver:
		return PhaseShowdown
	default:
		return PhaseShowdown
	}
}

func nonFoldedSeats(ctx *HandContext) []int {
	var seats []int
	for _, p := range ctx.Participants {
		if !p.Folded {
			seats = append(seats, p.Seat)
		}
	}
	return seats
}

func allRemainingAllIn(ctx *HandContext) bool {
	active := 0
	for _, p := range ctx.Participants {
		if p.Folded {
			continue
		}
		active++
		if !p.AllIn && p.Chips > 0 {
			return false
		}
	}
	return active > 1
}

func clockwise(ctx *HandContext, from int) []int {
	return SeatsClockwiseFrom(ctx, from)
}

func nextEligibleSeat(ctx *HandContext, from int) int {
	for _, seat := range clockwise(ctx, from) {
		if ctx.BySeat(seat).Chips > 0 {
			return seat
		}
	}
	return from
}

func startTurnTimer(ctx *HandContext) Effect {
	return Effect{Kind: EffectScheduleTransition, DelayMs: ctx.Config.TurnTimerMs, Reason: "turn_timer"}
}

func setDeadline(ctx *HandContext) {
	if ctx.CurrentActorSeat == NoSeat {
		ctx.ActionDeadline = time.Time{}
		return
	}
	ctx.ActionDeadline = time.Now().Add(time.Duration(ctx.Config.TurnTimerMs) * time.Millisecond)
}

// ResumeTurnTimer re-arms the action deadline for whichever seat is still
// the current actor and reissues the turn_timer_started event (spec 4.D
// "RESUME" / scenario S6): PAUSE freezes the deadline without forfeiting the
// actor's turn, so on RESUME the clock must restart fresh rather than pick
// up an already-elapsed one.
func ResumeTurnTimer(ctx *HandContext) (Event, Effect) {
	setDeadline(ctx)
	ev := Event{Type: "turn_timer_started", Data: map[string]any{
		"activeSeat": ctx.CurrentActorSeat,
		"deadline":   ctx.ActionDeadline,
		"duration":   ctx.Config.TurnTimerMs,
	}}
	return ev, startTurnTimer(ctx)
}
