package engine

import "sort"

// ReconcilePots performs spec 4.B's end-of-round pot reconciliation: sorts
// distinct positive contribution levels ascending, builds one pot per level
// with eligible = contributed >= level && !folded, folds folded players'
// contributions into the lowest-level pot they reached, merges the result
// into ctx.Pots, and resets per-round state.
//
// This replaces the reference pot.go's CreateSidePots/DistributePots, which
// iterated a map for remainder distribution (nondeterministic) and treated
// the "final pot above the highest all-in" as a special case rather than
// just another level.
func ReconcilePots(ctx *HandContext) {
	levels := contributionLevels(ctx)
	if len(levels) == 0 {
		ctx.resetRoundBets()
		return
	}

	var pots []Pot
	var prev int64
	for _, level := range levels {
		pot := Pot{Eligible: map[int]bool{}}
		for _, p := range ctx.Participants {
			contributed := p.CurrentBet
			if contributed <= prev {
				continue
			}
			capped := contributed
			if capped > level {
				capped = level
			}
			pot.Amount += capped - prev
			if contributed >= level && !p.Folded {
				pot.Eligible[p.Seat] = true
			}
		}
		if pot.Amount > 0 {
			pots = append(pots, pot)
		}
		prev = level
	}

	ctx.Pots = mergePots(ctx.Pots, pots)
	ctx.resetRoundBets()
}

func contributionLevels(ctx *HandContext) []int64 {
	seen := map[int64]bool{}
	for _, p := range ctx.Participants {
		if p.CurrentBet > 0 {
			seen[p.CurrentBet] = true
		}
	}
	levels := make([]int64, 0, len(seen))
	for l := range seen {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

// mergePots appends newly-reconciled pots onto the existing pot list, merging
// into the last existing pot if its eligibility set is identical (keeps the
// pot list from growing across multiple betting rounds of the same hand when
// nobody has gone further all-in).
func mergePots(existing []Pot, fresh []Pot) []Pot {
	if len(existing) == 0 {
		return fresh
	}
	if len(fresh) == 0 {
		return existing
	}
	last := existing[len(existing)-1]
	if sameEligibility(last.Eligible, fresh[0].Eligible) {
		merged := append([]Pot(nil), existing[:len(existing)-1]...)
		fresh[0].Amount += last.Amount
		return append(merged, fresh...)
	}
	return append(existing, fresh...)
}

func sameEligibility(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for seat := range a {
		if !b[seat] {
			return false
		}
	}
	return true
}

func (ctx *HandContext) resetRoundBets() {
	for _, p := range ctx.Participants {
		p.CurrentBet = 0
		if !p.Folded && !p.AllIn {
			p.EligibleToBet = false
		}
	}
	ctx.MinRaise = ctx.Config.BigBlind
	ctx.LastAggressorSeat = NoSeat
}

// ReturnUncalledBet refunds the gap between the two highest current bets to
// whoever made the uncalled raise, before pots are reconciled.
func ReturnUncalledBet(ctx *HandContext) {
	var highest, secondHighest int64
	var highestSeat int = NoSeat
	for _, p := range ctx.Participants {
		if p.CurrentBet > highest {
			secondHighest = highest
			highest = p.CurrentBet
			highestSeat = p.Seat
		} else if p.CurrentBet > secondHighest {
			secondHighest = p.CurrentBet
		}
	}
	if highestSeat == NoSeat || highest <= secondHighest {
		return
	}
	uncalled := highest - secondHighest
	p := ctx.BySeat(highestSeat)
	p.Chips += uncalled
	p.CurrentBet -= uncalled
	p.TotalBet -= uncalled
}

// SeatsClockwiseFrom returns participant seats in clockwise order starting
// immediately after `from`, used both for turn order and for the
// closest-clockwise-from-button remainder rule at showdown (spec 4.C, 8-S4).
func SeatsClockwiseFrom(ctx *HandContext, from int) []int {
	n := len(ctx.Participants)
	seats := make([]int, n)
	for i, p := range ctx.Participants {
		seats[i] = p.Seat
	}
	sort.Ints(seats)

	startIdx := 0
	for i, s := range seats {
		if s > from {
			startIdx = i
			break
		}
		if i == n-1 {
			startIdx = 0
		}
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, seats[(startIdx+i)%n])
	}
	return out
}

// DistributePot splits one pot's amount evenly among winners, with the
// remainder going to the eligible winner closest clockwise from the button
// (spec 4.C, 8-S4) rather than an arbitrary/map-iteration-order pick.
func DistributePot(ctx *HandContext, pot Pot, winners []int) map[int]int64 {
	out := make(map[int]int64, len(winners))
	if len(winners) == 0 {
		return out
	}
	share := pot.Amount / int64(len(winners))
	remainder := pot.Amount % int64(len(winners))
	for _, seat := range winners {
		out[seat] = share
	}

	if remainder > 0 {
		winnerSet := make(map[int]bool, len(winners))
		for _, s := range winners {
			winnerSet[s] = true
		}
		for _, seat := range SeatsClockwiseFrom(ctx, ctx.ButtonSeat) {
			if winnerSet[seat] {
				out[seat] += remainder
				break
			}
		}
	}
	return out
}
