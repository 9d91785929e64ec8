package engine

import "github.com/vctt94/holdemserver/internal/cards"

// Showdown is spec 4.C's showdown onEnter: award every pot, highest index
// first. The order makes no difference to the chips awarded (each pot's
// eligible set is independent); it sets the order of the SHOWDOWN_RESULT
// events.
func (h *Hand) Showdown() Result {
	ctx := h.ctx
	var events []Event

	nonFolded := nonFoldedSeats(ctx)
	if len(nonFolded) == 1 {
		winner := nonFolded[0]
		for _, pot := range ctx.Pots {
			ctx.BySeat(winner).Chips += pot.Amount
		}
		events = append(events, Event{Type: "HAND_RUNOUT", Data: map[string]any{"winnerSeat": winner}})
		ctx.Pots = nil
		ctx.Phase = PhaseComplete
		return Result{Context: ctx, Events: events}
	}

	for _, p := range ctx.Participants {
		if p.Folded {
			continue
		}
		value, err := cards.Evaluate(append(append([]cards.Card{}, p.HoleCards...), ctx.CommunityCards...))
		if err != nil {
			continue
		}
		v := value
		p.HandValue = &v
		p.HandDescription = v.Category.String()
	}

	for i := len(ctx.Pots) - 1; i >= 0; i-- {
		pot := ctx.Pots[i]
		winners := bestEligibleHands(ctx, pot)
		shares := DistributePot(ctx, pot, winners)
		for seat, amount := range shares {
			ctx.BySeat(seat).Chips += amount
		}
		events = append(events, Event{Type: "SHOWDOWN_RESULT", Data: map[string]any{
			"potAmount": pot.Amount,
			"winners":   winners,
			"shares":    shares,
		}})
	}

	ctx.Pots = nil
	ctx.Phase = PhaseComplete
	return Result{Context: ctx, Events: events}
}

// bestEligibleHands returns the seats of the best (possibly tied) hand among
// a pot's eligible, non-folded contributors.
func bestEligibleHands(ctx *HandContext, pot Pot) []int {
	var best *cards.Value
	var winners []int
	for seat := range pot.Eligible {
		p := ctx.BySeat(seat)
		if p == nil || p.Folded || p.HandValue == nil {
			continue
		}
		switch {
		case best == nil || cards.Compare(*p.HandValue, *best) > 0:
			best = p.HandValue
			winners = []int{seat}
		case cards.Compare(*p.HandValue, *best) == 0:
			winners = append(winners, seat)
		}
	}
	return winners
}

// Complete reports whether at least two players still have chips, i.e.
// whether the next hand's preflop can start (true) or the game ends (false)
// (spec 4.C "complete"); the caller performs the transition.
func (h *Hand) Complete() (startNext bool) {
	count := 0
	for _, p := range h.ctx.Participants {
		if p.Chips > 0 {
			count++
		}
	}
	return count >= 2
}
