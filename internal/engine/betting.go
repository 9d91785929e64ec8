package engine

import "fmt"

// ApplyAction validates and applies one betting action (spec 4.B), mutating
// ctx in place and returning the events it produced. It does not advance
// phases; the caller (Hand, see hand.go) checks RoundComplete afterwards and
// drives the phase transition.
func ApplyAction(ctx *HandContext, action Action) ([]Event, error) {
	p := ctx.BySeat(action.Seat)
	if p == nil {
		return nil, newError(CodeNotInGame, fmt.Sprintf("no participant at seat %d", action.Seat))
	}
	if ctx.CurrentActorSeat != action.Seat {
		return nil, newError(CodeNotYourTurn, fmt.Sprintf("seat %d is not the current actor", action.Seat))
	}
	if p.Folded || p.AllIn {
		return nil, newError(CodeInvalidAction, "folded or all-in players cannot act")
	}

	toCall := toCallFor(ctx, p)

	var events []Event
	switch action.Kind {
	case ActionFold:
		p.Folded = true
		p.EligibleToBet = false
		if ctx.LastAggressorSeat == p.Seat {
			ctx.LastAggressorSeat = NoSeat
		}
		events = append(events, Event{Type: "PLAYER_ACTION", Data: map[string]any{"seat": p.Seat, "action": "fold"}})

	case ActionCheck:
		if toCall != 0 {
			return nil, newError(CodeInvalidAction, "cannot check when a bet is outstanding")
		}
		p.EligibleToBet = false
		events = append(events, Event{Type: "PLAYER_ACTION", Data: map[string]any{"seat": p.Seat, "action": "check"}})

	case ActionCall:
		if toCall <= 0 {
			return nil, newError(CodeInvalidAction, "nothing to call")
		}
		if toCall > p.Chips {
			return nil, newError(CodeInvalidAction, "insufficient chips to call")
		}
		amount := min64(toCall, p.Chips)
		moveToPot(p, amount)
		p.EligibleToBet = false
		if p.Chips == 0 {
			p.AllIn = true
		}
		events = append(events, Event{Type: "PLAYER_ACTION", Data: map[string]any{"seat": p.Seat, "action": "call", "amount": amount}})

	case ActionBet:
		if toCall != 0 {
			return nil, newError(CodeInvalidAction, "cannot bet when a call is owed; use raise")
		}
		if action.Amount < ctx.MinRaise {
			return nil, newError(CodeInvalidAction, "bet below minimum raise")
		}
		if action.Amount > p.Chips {
			return nil, newError(CodeInvalidAction, "bet exceeds chip stack")
		}
		if isStandingAggressor(ctx, p) {
			return nil, newError(CodeInvalidAction, "last aggressor cannot act again while still active")
		}
		moveToPot(p, action.Amount)
		ctx.MinRaise = max64(ctx.MinRaise, action.Amount)
		ctx.LastAggressorSeat = p.Seat
		p.EligibleToBet = false
		reopenAction(ctx, p)
		events = append(events, Event{Type: "PLAYER_ACTION", Data: map[string]any{"seat": p.Seat, "action": "bet", "amount": action.Amount}})

	case ActionRaise:
		if toCall <= 0 {
			return nil, newError(CodeInvalidAction, "cannot raise with nothing to call")
		}
		if action.Amount < ctx.MinRaise {
			return nil, newError(CodeInvalidAction, "raise increment below minimum raise")
		}
		total := toCall + action.Amount
		if total > p.Chips {
			return nil, newError(CodeInvalidAction, "raise exceeds chip stack")
		}
		if isStandingAggressor(ctx, p) {
			return nil, newError(CodeInvalidAction, "last aggressor cannot act again while still active")
		}
		moveToPot(p, total)
		ctx.MinRaise = max64(ctx.MinRaise, 2*action.Amount)
		ctx.LastAggressorSeat = p.Seat
		p.EligibleToBet = false
		reopenAction(ctx, p)
		events = append(events, Event{Type: "PLAYER_ACTION", Data: map[string]any{"seat": p.Seat, "action": "raise", "amount": action.Amount}})

	case ActionAllIn:
		if p.Chips <= 0 {
			return nil, newError(CodeInvalidAction, "no chips to push all-in")
		}
		priorMax := maxCurrentBet(ctx)
		amount := p.Chips
		moveToPot(p, amount)
		p.AllIn = true
		p.EligibleToBet = false
		if p.CurrentBet > priorMax {
			raiseBy := p.CurrentBet - priorMax
			ctx.MinRaise = max64(ctx.MinRaise, raiseBy)
			ctx.LastAggressorSeat = p.Seat
			reopenAction(ctx, p)
		}
		events = append(events, Event{Type: "PLAYER_ACTION", Data: map[string]any{"seat": p.Seat, "action": "allin", "amount": amount}})

	default:
		return nil, newError(CodeInvalidAction, fmt.Sprintf("unknown action kind %q", action.Kind))
	}

	p.HasActed = true
	ctx.CurrentActorSeat = nextActor(ctx)
	return events, nil
}

func toCallFor(ctx *HandContext, p *Participant) int64 {
	return maxCurrentBet(ctx) - p.CurrentBet
}

func maxCurrentBet(ctx *HandContext) int64 {
	var m int64
	for _, p := range ctx.Participants {
		if p.CurrentBet > m {
			m = p.CurrentBet
		}
	}
	return m
}

func moveToPot(p *Participant, amount int64) {
	p.Chips -= amount
	p.CurrentBet += amount
	p.TotalBet += amount
}

// isStandingAggressor rejects the degenerate case of the last aggressor
// opening or re-raising themselves while they're still the active party
// everyone else has already matched.
func isStandingAggressor(ctx *HandContext, p *Participant) bool {
	return ctx.LastAggressorSeat == p.Seat
}

// reopenAction marks every other non-folded, non-all-in player eligible to
// act again after a bet/raise/all-in-that-raises (spec 4.B).
func reopenAction(ctx *HandContext, actor *Participant) {
	for _, p := range ctx.Participants {
		if p.Seat == actor.Seat {
			continue
		}
		if p.Folded || p.AllIn {
			continue
		}
		p.EligibleToBet = true
	}
}

// nextActor returns the next clockwise seat satisfying the eligibility
// predicate (not folded, not all-in, chips>0, eligibleToBet), or NoSeat.
func nextActor(ctx *HandContext) int {
	n := len(ctx.Participants)
	if n == 0 {
		return NoSeat
	}
	startIdx := indexOfSeat(ctx, ctx.CurrentActorSeat)
	if startIdx == -1 {
		startIdx = 0
	}
	for i := 1; i <= n; i++ {
		p := ctx.Participants[(startIdx+i)%n]
		if eligiblePredicate(p) {
			return p.Seat
		}
	}
	return NoSeat
}

func eligiblePredicate(p *Participant) bool {
	return !p.Folded && !p.AllIn && p.Chips > 0 && p.EligibleToBet
}

func indexOfSeat(ctx *HandContext, seat int) int {
	for i, p := range ctx.Participants {
		if p.Seat == seat {
			return i
		}
	}
	return -1
}

// RoundComplete reports whether the current betting round is over: spec 4.B
// "(a) currentActorSeat = null, or (b) only one non-folded player remains
// with chips, or (c) no seat satisfies the eligibility predicate."
func RoundComplete(ctx *HandContext) bool {
	if ctx.CurrentActorSeat == NoSeat {
		return true
	}
	nonFoldedWithChips := 0
	anyEligible := false
	for _, p := range ctx.Participants {
		if !p.Folded {
			nonFoldedWithChips++
		}
		if eligiblePredicate(p) {
			anyEligible = true
		}
	}
	if nonFoldedWithChips <= 1 {
		return true
	}
	return !anyEligible
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
