package holdem

import (
	"testing"

	"holdem-lite/card"
)

func deckWithPrefix(prefix []card.Card) DeckSource {
	full := card.FullDeck()
	used := map[card.Card]bool{}
	for _, c := range prefix {
		used[c] = true
	}
	out := append([]card.Card(nil), prefix...)
	for _, c := range full {
		if !used[c] {
			out = append(out, c)
		}
	}
	return fixedDeck(out)
}

func mustCard(t *testing.T, s string) card.Card {
	t.Helper()
	c, err := card.ParseWire(s)
	if err != nil {
		t.Fatalf("bad card %q: %v", s, err)
	}
	return c
}

func newReadyTable(t *testing.T, n int) Table {
	t.Helper()
	tbl := Create("t1", Config{MaxSeats: 6, SmallBlind: 10, BigBlind: 20, StartingStack: 1000})
	for i := 0; i < n; i++ {
		id := PlayerID(string(rune('A' + i)))
		var err error
		tbl, _, err = AddPlayer(tbl, id, string(id), 1000)
		if err != nil {
			t.Fatalf("seat %d: %v", i, err)
		}
		tbl, _, err = SetReady(tbl, id, true)
		if err != nil {
			t.Fatalf("ready %d: %v", i, err)
		}
	}
	return tbl
}

func TestHeadsUpDealerPostsSmallBlind(t *testing.T) {
	tbl := newReadyTable(t, 2)
	deck := deckWithPrefix([]card.Card{
		mustCard(t, "As"), mustCard(t, "Ks"), // seat order [1,0] each get 1 card per round
		mustCard(t, "2h"), mustCard(t, "3h"),
	})
	tbl, events, err := StartHand(tbl, deck)
	if err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	if tbl.DealerSeat != 0 {
		t.Fatalf("expected dealer seat 0, got %d", tbl.DealerSeat)
	}
	dealerID := tbl.Seats[tbl.DealerSeat]
	dealer := tbl.Players[dealerID]
	if dealer.StreetBet != tbl.SmallBlind {
		t.Fatalf("heads-up dealer should post the small blind, got %d want %d", dealer.StreetBet, tbl.SmallBlind)
	}
	if tbl.ActivePlayerID != dealerID {
		t.Fatalf("heads-up preflop action should start on the dealer/SB")
	}
	foundDeal := false
	for _, ev := range events {
		if ev.Type == EventDeal {
			foundDeal = true
		}
	}
	if !foundDeal {
		t.Fatalf("expected a DEAL event in the hand-start batch")
	}
}

func TestMinRaiseReopensAction(t *testing.T) {
	tbl := newReadyTable(t, 3)
	deck := deckWithPrefix(nil)
	tbl, _, err := StartHand(tbl, deck)
	if err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	// Preflop 3-handed: dealer acts first, raises to 60 (a full raise of 40 over the 20 BB).
	dealerID := tbl.ActivePlayerID
	tbl, _, err = ProcessAction(tbl, dealerID, ActionRaise, 60)
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if tbl.CurrentHighBet != 60 {
		t.Fatalf("expected high bet 60, got %d", tbl.CurrentHighBet)
	}
	if tbl.LastRaise != 40 {
		t.Fatalf("expected last raise increment 40, got %d", tbl.LastRaise)
	}
	if tbl.MinRaiseIncrement() != 40 {
		t.Fatalf("min raise increment should now be 40, got %d", tbl.MinRaiseIncrement())
	}
}

func TestShortAllInDoesNotReopenAction(t *testing.T) {
	tbl := newReadyTable(t, 3)
	deck := deckWithPrefix(nil)
	tbl, _, err := StartHand(tbl, deck)
	if err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	dealerID := tbl.ActivePlayerID
	tbl, _, err = ProcessAction(tbl, dealerID, ActionRaise, 60)
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	next := tbl.ActivePlayerID

	// Shrink next player's stack so an all-in call is a short raise that
	// must not reopen action for the dealer who already acted.
	np := tbl.Players[next]
	np.Stack = 70 // with the 10 small blind already in, all-in reaches 80 total, a 20-chip raise over 60, below the 40 minimum
	tbl.Players[next] = np

	before := tbl.LastRaise
	tbl, _, err = ProcessAction(tbl, next, ActionAllIn, 70)
	if err != nil {
		t.Fatalf("all-in: %v", err)
	}
	if tbl.LastRaise != before {
		t.Fatalf("short all-in must not change the minimum raise increment: got %d want %d", tbl.LastRaise, before)
	}
	if tbl.RaiserSeat == tbl.SeatOf(next) {
		t.Fatalf("short all-in must not become the reopening raiser")
	}
}

func TestAllInSidePotSplitsCorrectly(t *testing.T) {
	tbl := newReadyTable(t, 3)
	// Give A a shorter stack than B and C so A's all-in caps a three-way
	// main pot and leaves a B/C side pot.
	for i, id := range []PlayerID{"A", "B", "C"} {
		p := tbl.Players[id]
		stacks := []int64{100, 300, 300}
		p.Stack = stacks[i]
		tbl.Players[id] = p
	}
	deck := deckWithPrefix([]card.Card{
		mustCard(t, "Ah"), mustCard(t, "Ad"),
		mustCard(t, "Kh"), mustCard(t, "Kd"),
		mustCard(t, "2c"), mustCard(t, "2d"),
		mustCard(t, "3s"), mustCard(t, "4s"), mustCard(t, "5s"), mustCard(t, "7h"), mustCard(t, "8h"),
	})
	tbl, _, err := StartHand(tbl, deck)
	if err != nil {
		t.Fatalf("StartHand: %v", err)
	}

	// Drive every player all-in preflop regardless of whose turn order
	// firstToActPreflop chose; ProcessAction enforces turn order itself.
	for !allFoldedOrAllIn(tbl) {
		id := tbl.ActivePlayerID
		if id == "" {
			break
		}
		p := tbl.Players[id]
		tbl, _, err = ProcessAction(tbl, id, ActionAllIn, p.StreetBet+p.Stack)
		if err != nil {
			t.Fatalf("all-in for %s: %v", id, err)
		}
	}

	total := int64(0)
	for _, p := range tbl.Players {
		total += p.Stack
	}
	if total != 700 {
		t.Fatalf("chip conservation violated: total stacks = %d, want 700", total)
	}
	// C holds Ad 2c against a 3s 4s 5s board: the wheel wins both pots.
	if c := tbl.Players["C"].Stack; c != 700 {
		t.Fatalf("C should win the main and the side pot: C stack = %d, want 700", c)
	}
}

func allFoldedOrAllIn(t Table) bool {
	active := 0
	for _, p := range t.Players {
		if p.InHand && !p.Folded && !p.AllIn {
			active++
		}
	}
	return active == 0
}

func TestEvalBest7StraightBeatsThreeOfAKind(t *testing.T) {
	hole := []card.Card{mustCard(t, "2h"), mustCard(t, "7c")}
	board := []card.Card{mustCard(t, "3h"), mustCard(t, "4h"), mustCard(t, "5h"), mustCard(t, "6s"), mustCard(t, "Kc")}
	straight := EvalBest7(append(append([]card.Card(nil), hole...), board...))
	if straight.Category != Straight {
		t.Fatalf("expected a straight, got category %d", straight.Category)
	}

	tripHole := []card.Card{mustCard(t, "Kd"), mustCard(t, "Ks")}
	trips := EvalBest7(append(append([]card.Card(nil), tripHole...), board...))
	if CompareHandRank(straight, trips) <= 0 {
		t.Fatalf("straight should beat trips")
	}
}

func TestEvalBest7WheelStraight(t *testing.T) {
	hole := []card.Card{mustCard(t, "Ah"), mustCard(t, "2c")}
	board := []card.Card{mustCard(t, "3h"), mustCard(t, "4s"), mustCard(t, "5d"), mustCard(t, "9c"), mustCard(t, "Kc")}
	r := EvalBest7(append(append([]card.Card(nil), hole...), board...))
	if r.Category != Straight {
		t.Fatalf("expected a wheel straight, got category %d", r.Category)
	}
	if r.Tiebreak[0] != 5 {
		t.Fatalf("wheel straight should be scored 5-high, got %d", r.Tiebreak[0])
	}
}
