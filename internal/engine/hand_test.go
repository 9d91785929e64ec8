package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sixMaxConfig() Config {
	return Config{
		SmallBlind:             1,
		BigBlind:               2,
		StartingStack:          200,
		MaxPlayers:             6,
		TurnTimerMs:            30000,
		PhaseTransitionDelayMs: 500,
		RunoutDelayMs:          1000,
		BotFillAfterMs:         10000,
		Category:               CategoryCash,
	}
}

func participantsAtStacks(stacks map[int]int64) []*Participant {
	var out []*Participant
	for seat, chips := range stacks {
		out = append(out, &Participant{Seat: seat, PlayerID: seatID(seat), Chips: chips, EligibleToBet: true})
	}
	return out
}

func seatID(seat int) string {
	return string(rune('A' + seat - 1))
}

// S1 — Blinds and first preflop.
func TestS1BlindsAndFirstPreflop(t *testing.T) {
	stacks := map[int]int64{1: 200, 2: 200, 3: 200, 4: 200, 5: 200, 6: 200}
	// Prior button 5: DealPreflop advances it to seat 6.
	h := NewHand(participantsAtStacks(stacks), 5, 0, sixMaxConfig())

	res := h.DealPreflop()
	ctx := res.Context

	require.Equal(t, int64(1), ctx.BySeat(1).CurrentBet, "seat 1 (SB) posts 1")
	require.Equal(t, int64(2), ctx.BySeat(2).CurrentBet, "seat 2 (BB) posts 2")
	require.Equal(t, 3, ctx.CurrentActorSeat, "first actor is seat 3")
	require.Equal(t, int64(4), ctx.MinRaise)
}

// S2 — Heads-up button acts first preflop.
func TestS2HeadsUpButtonActsFirst(t *testing.T) {
	stacks := map[int]int64{1: 200, 2: 200}
	// Prior button 2: DealPreflop advances it to seat 1.
	h := NewHand(participantsAtStacks(stacks), 2, 0, sixMaxConfig())

	res := h.DealPreflop()
	ctx := res.Context
	require.Equal(t, 1, ctx.ButtonSeat)
	require.Equal(t, int64(1), ctx.BySeat(1).CurrentBet, "button/seat 1 posts sb")
	require.Equal(t, int64(2), ctx.BySeat(2).CurrentBet, "seat 2 posts bb")
	require.Equal(t, 1, ctx.CurrentActorSeat, "button acts first preflop heads-up")

	// Complete the preflop round: seat1 calls, seat2 checks.
	_, complete, err := h.Apply(Action{Seat: 1, Kind: ActionCall})
	require.NoError(t, err)
	require.False(t, complete)
	_, complete, err = h.Apply(Action{Seat: 2, Kind: ActionCheck})
	require.NoError(t, err)
	require.True(t, complete)

	h.EndRound()
	flopRes := h.DealStreet(PhaseFlop)
	require.Equal(t, 2, flopRes.Context.CurrentActorSeat, "seat 2 acts first on the flop")
}

// S3 — Side-pot formation.
func TestS3SidePotFormation(t *testing.T) {
	stacks := map[int]int64{1: 50, 2: 100, 3: 200}
	h := NewHand(participantsAtStacks(stacks), 3, 0, sixMaxConfig())
	h.DealPreflop()
	ctx := h.Context()

	// Override the posted blinds with a clean all-in preflop scenario by
	// resetting bets, then pushing everyone all-in for their full stack.
	for _, p := range ctx.Participants {
		p.Chips += p.CurrentBet
		p.CurrentBet = 0
		p.TotalBet = 0
		p.AllIn = false
	}
	ctx.BySeat(1).Chips = 50
	ctx.BySeat(2).Chips = 100
	ctx.BySeat(3).Chips = 200

	for _, seat := range []int{1, 2, 3} {
		p := ctx.BySeat(seat)
		amount := p.Chips
		moveToPot(p, amount)
		p.AllIn = true
	}

	// Seat 3's 100 above seat 2's all-in is uncalled and is refunded before
	// reconciliation, as EndRound does.
	ReturnUncalledBet(ctx)
	ReconcilePots(ctx)
	require.Len(t, ctx.Pots, 2)
	require.Equal(t, int64(150), ctx.Pots[0].Amount)
	require.True(t, ctx.Pots[0].Eligible[1] && ctx.Pots[0].Eligible[2] && ctx.Pots[0].Eligible[3])
	require.Equal(t, int64(100), ctx.Pots[1].Amount)
	require.False(t, ctx.Pots[1].Eligible[1])
	require.True(t, ctx.Pots[1].Eligible[2] && ctx.Pots[1].Eligible[3])
}

// S4 — Tie and remainder.
func TestS4TieAndRemainder(t *testing.T) {
	stacks := map[int]int64{1: 200, 2: 200, 3: 200}
	h := NewHand(participantsAtStacks(stacks), 1, 0, sixMaxConfig())
	ctx := h.Context()
	ctx.ButtonSeat = 1

	pot := Pot{Amount: 7, Eligible: map[int]bool{2: true, 3: true}}
	shares := DistributePot(ctx, pot, []int{2, 3})

	require.Equal(t, int64(4), shares[2], "seat 2 is closest clockwise from the button (seat 1)")
	require.Equal(t, int64(3), shares[3])
}

func TestRoundCompletesWhenAllButOneFold(t *testing.T) {
	stacks := map[int]int64{1: 200, 2: 200, 3: 200}
	// Prior button 2: button 3, blinds 1 and 2, seat 3 acts first.
	h := NewHand(participantsAtStacks(stacks), 2, 0, sixMaxConfig())
	h.DealPreflop()

	_, complete, err := h.Apply(Action{Seat: 3, Kind: ActionFold})
	require.NoError(t, err)
	require.False(t, complete)
	_, complete, err = h.Apply(Action{Seat: 1, Kind: ActionFold})
	require.NoError(t, err)
	require.True(t, complete)
}

// A bet (or raise) must drop the actor's own EligibleToBet, or action that
// folds/calls back around to them reopens their turn a second time.
func TestBetThenCallsAroundClosesRound(t *testing.T) {
	stacks := map[int]int64{1: 200, 2: 200, 3: 200}
	h := NewHand(participantsAtStacks(stacks), 3, 0, sixMaxConfig())
	ctx := h.Context()
	h.DealPreflop()

	for {
		seat := ctx.CurrentActorSeat
		p := ctx.BySeat(seat)
		kind := ActionCheck
		if toCallFor(ctx, p) > 0 {
			kind = ActionCall
		}
		_, complete, err := h.Apply(Action{Seat: seat, Kind: kind})
		require.NoError(t, err)
		if complete {
			break
		}
	}
	h.EndRound()
	h.DealStreet(PhaseFlop)

	bettor := ctx.CurrentActorSeat
	_, complete, err := h.Apply(Action{Seat: bettor, Kind: ActionBet, Amount: 2})
	require.NoError(t, err)
	require.False(t, complete)
	require.False(t, ctx.BySeat(bettor).EligibleToBet, "bettor must not remain eligible to act again")
	require.NotEqual(t, bettor, ctx.CurrentActorSeat, "turn passes to the next seat, not back to the bettor")

	for ctx.CurrentActorSeat != NoSeat {
		seat := ctx.CurrentActorSeat
		_, complete, err = h.Apply(Action{Seat: seat, Kind: ActionCall})
		require.NoError(t, err)
		if complete {
			break
		}
	}
	require.True(t, complete, "round closes once every other seat has called the bet, without looping back to the bettor")
}

func TestRejectsActionOutOfTurn(t *testing.T) {
	stacks := map[int]int64{1: 200, 2: 200, 3: 200}
	// Prior button 2: button 3, so seat 3 (not seat 1) acts first.
	h := NewHand(participantsAtStacks(stacks), 2, 0, sixMaxConfig())
	h.DealPreflop()

	_, _, err := h.Apply(Action{Seat: 1, Kind: ActionCall})
	require.Error(t, err)
	engErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, CodeNotYourTurn, engErr.Code)
}
