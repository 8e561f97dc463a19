package holdem

import "sort"

// buildPots rebuilds the pot breakdown from every player's cumulative
// TotalContributed for the hand, using the canonical ascending-cap-level
// side-pot algorithm: sort distinct non-zero contribution levels, and
// for each level form a pot containing the incremental contribution from
// everyone who reached at least that level, eligible to everyone who
// reached it without folding. A player who folded still contributes
// their chips to whatever pots they funded, but is never eligible to win
// them (spec.md §4.1 canonical side-pot construction).
//
// It also resolves the uncalled-bet refund: if the single highest
// contributor's amount exceeds the second-highest contributor's amount,
// the excess above the second-highest level is returned to them rather
// than forming a pot nobody else could have called.
func buildPots(players map[PlayerID]Player, seatOrder []PlayerID) ([]Pot, map[PlayerID]int64) {
	type contrib struct {
		id     PlayerID
		amount int64
		folded bool
	}
	var contribs []contrib
	for _, id := range seatOrder {
		p, ok := players[id]
		if !ok || p.TotalContributed == 0 {
			continue
		}
		contribs = append(contribs, contrib{id: id, amount: p.TotalContributed, folded: p.Folded})
	}

	refunds := map[PlayerID]int64{}
	if len(contribs) == 0 {
		return nil, refunds
	}

	sorted := append([]contrib(nil), contribs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].amount < sorted[j].amount })

	if len(sorted) >= 1 {
		top := sorted[len(sorted)-1]
		var second int64
		if len(sorted) >= 2 {
			second = sorted[len(sorted)-2].amount
		}
		if top.amount > second {
			refunds[top.id] = top.amount - second
			for i := range contribs {
				if contribs[i].id == top.id {
					contribs[i].amount = second
				}
			}
			for i := range sorted {
				if sorted[i].id == top.id {
					sorted[i].amount = second
				}
			}
		}
	}

	// distinct contribution levels, ascending, excluding zero.
	levelSet := map[int64]bool{}
	for _, c := range sorted {
		if c.amount > 0 {
			levelSet[c.amount] = true
		}
	}
	var levels []int64
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	byID := map[PlayerID]contrib{}
	for _, c := range contribs {
		byID[c.id] = c
	}

	var pots []Pot
	var prevLevel int64
	for _, level := range levels {
		delta := level - prevLevel
		var amount int64
		eligible := map[PlayerID]bool{}
		for _, id := range seatOrder {
			c, ok := byID[id]
			if !ok || c.amount < level {
				continue
			}
			amount += delta
			if !c.folded {
				eligible[id] = true
			}
		}
		if amount > 0 {
			pots = append(pots, Pot{Amount: amount, Eligible: eligible})
		}
		prevLevel = level
	}
	return pots, refunds
}
