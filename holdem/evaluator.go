package holdem

import "holdem-lite/card"

// HandCategory is one of the nine standard Hold'em hand categories,
// ordered low to high so int comparison doubles as rank comparison.
type HandCategory int

const (
	HighCard HandCategory = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

// HandRank is a fully ordered hand strength: compare Category first,
// then Tiebreak lexicographically (both descending by convention, so a
// plain slice comparison already expresses "better hand").
type HandRank struct {
	Category HandCategory
	Tiebreak [5]int
}

// CompareHandRank returns >0 if a beats b, <0 if b beats a, 0 on a tie.
func CompareHandRank(a, b HandRank) int {
	if a.Category != b.Category {
		return int(a.Category) - int(b.Category)
	}
	for i := 0; i < len(a.Tiebreak); i++ {
		if a.Tiebreak[i] != b.Tiebreak[i] {
			return a.Tiebreak[i] - b.Tiebreak[i]
		}
	}
	return 0
}

// EvalBest7 picks the best 5-card hand out of up to 7 cards (2 hole + 5
// board), trying every 5-card combination directly rather than a
// perfect-hash lookup table — the lookup tables the Cactus-Kev approach
// needs are not reconstructible from anything in this tree, and a direct
// evaluator is the more literal reading of "ordered tiebreaker vector"
// in the first place.
func EvalBest7(cards []card.Card) HandRank {
	best := HandRank{Category: -1}
	n := len(cards)
	idx := make([]int, 5)
	var combo func(start, depth int)
	combo = func(start, depth int) {
		if depth == 5 {
			five := [5]card.Card{cards[idx[0]], cards[idx[1]], cards[idx[2]], cards[idx[3]], cards[idx[4]]}
			r := evalFive(five)
			if best.Category == -1 || CompareHandRank(r, best) > 0 {
				best = r
			}
			return
		}
		for i := start; i < n; i++ {
			idx[depth] = i
			combo(i+1, depth+1)
		}
	}
	combo(0, 0)
	return best
}

// evalFive scores exactly five cards.
func evalFive(five [5]card.Card) HandRank {
	ranks := make([]int, 5)
	counts := map[int]int{}
	suits := map[card.Suit]int{}
	for i, c := range five {
		r := c.HandRealVal() // A=14
		ranks[i] = r
		counts[r]++
		suits[c.Suit()]++
	}

	isFlush := false
	for _, n := range suits {
		if n == 5 {
			isFlush = true
		}
	}

	sortedDesc := append([]int(nil), ranks...)
	sortDescInts(sortedDesc)

	straightHigh, isStraight := straightHighCard(sortedDesc)

	if isStraight && isFlush {
		return HandRank{Category: StraightFlush, Tiebreak: [5]int{straightHigh}}
	}

	// group by count then by rank descending: quads/trips/pairs first.
	var groups []rankCount
	for r, c := range counts {
		groups = append(groups, rankCount{r, c})
	}
	sortGroups(groups)

	switch {
	case groups[0].count == 4:
		kicker := groups[1].rank
		return HandRank{Category: FourOfAKind, Tiebreak: [5]int{groups[0].rank, kicker}}
	case groups[0].count == 3 && len(groups) > 1 && groups[1].count >= 2:
		return HandRank{Category: FullHouse, Tiebreak: [5]int{groups[0].rank, groups[1].rank}}
	case isFlush:
		var tb [5]int
		copy(tb[:], sortedDesc)
		return HandRank{Category: Flush, Tiebreak: tb}
	case isStraight:
		return HandRank{Category: Straight, Tiebreak: [5]int{straightHigh}}
	case groups[0].count == 3:
		kickers := kickersFromGroups(groups[1:])
		return HandRank{Category: ThreeOfAKind, Tiebreak: [5]int{groups[0].rank, kickers[0], kickers[1]}}
	case groups[0].count == 2 && len(groups) > 1 && groups[1].count == 2:
		hi, lo := groups[0].rank, groups[1].rank
		if lo > hi {
			hi, lo = lo, hi
		}
		kicker := groups[2].rank
		return HandRank{Category: TwoPair, Tiebreak: [5]int{hi, lo, kicker}}
	case groups[0].count == 2:
		kickers := kickersFromGroups(groups[1:])
		return HandRank{Category: OnePair, Tiebreak: [5]int{groups[0].rank, kickers[0], kickers[1], kickers[2]}}
	default:
		var tb [5]int
		copy(tb[:], sortedDesc)
		return HandRank{Category: HighCard, Tiebreak: tb}
	}
}

// straightHighCard reports the high card of a straight within five
// descending-sorted, already-deduplication-safe ranks (5 distinct
// values are assumed; duplicates mean it cannot be a straight). Handles
// the wheel (A-2-3-4-5), scored as a 5-high straight.
func straightHighCard(sortedDesc []int) (int, bool) {
	uniq := dedupSorted(sortedDesc)
	if len(uniq) != 5 {
		return 0, false
	}
	if uniq[0]-uniq[4] == 4 {
		return uniq[0], true
	}
	// wheel: A(14),5,4,3,2
	if uniq[0] == 14 && uniq[1] == 5 && uniq[2] == 4 && uniq[3] == 3 && uniq[4] == 2 {
		return 5, true
	}
	return 0, false
}

func dedupSorted(sortedDesc []int) []int {
	out := make([]int, 0, len(sortedDesc))
	for i, v := range sortedDesc {
		if i == 0 || v != sortedDesc[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func sortDescInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] < s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// rankCount is one rank's occurrence count within a five-card hand.
type rankCount struct{ rank, count int }

func sortGroups(groups []rankCount) {
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0; j-- {
			a, b := groups[j-1], groups[j]
			if a.count < b.count || (a.count == b.count && a.rank < b.rank) {
				groups[j-1], groups[j] = groups[j], groups[j-1]
			} else {
				break
			}
		}
	}
}

func kickersFromGroups(rest []rankCount) [3]int {
	var flat []int
	for _, g := range rest {
		for i := 0; i < g.count; i++ {
			flat = append(flat, g.rank)
		}
	}
	sortDescInts(flat)
	var out [3]int
	for i := 0; i < 3 && i < len(flat); i++ {
		out[i] = flat[i]
	}
	return out
}
