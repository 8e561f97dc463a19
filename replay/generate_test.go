package replay

import (
	"testing"

	"holdem-lite/card"
	"holdem-lite/holdem"
)

func newTestTable(t *testing.T) holdem.Table {
	t.Helper()
	tbl := holdem.Create("replay_test", holdem.Config{
		MaxSeats:      6,
		SmallBlind:    50,
		BigBlind:      100,
		StartingStack: 10000,
	})
	for _, id := range []holdem.PlayerID{"a", "b", "c"} {
		var err error
		tbl, _, err = holdem.AddPlayer(tbl, id, string(id), 10000)
		if err != nil {
			t.Fatalf("add player %s: %v", id, err)
		}
	}
	for _, id := range []holdem.PlayerID{"a", "b", "c"} {
		var err error
		tbl, _, err = holdem.SetReady(tbl, id, true)
		if err != nil {
			t.Fatalf("ready %s: %v", id, err)
		}
	}
	return tbl
}

func playHandToEnd(t *testing.T, tbl holdem.Table, deck []card.Card) (holdem.Table, []holdem.Event) {
	t.Helper()
	tbl, events, err := holdem.StartHand(tbl, holdem.FixedDeck(deck))
	if err != nil {
		t.Fatalf("start hand: %v", err)
	}
	for tbl.HandInProgress {
		active := tbl.ActivePlayerID
		opts := holdem.LegalActions(tbl)
		opt, ok := holdem.HasAction(opts, holdem.ActionCheck)
		if !ok {
			opt, ok = holdem.HasAction(opts, holdem.ActionCall)
		}
		if !ok {
			opt, ok = holdem.HasAction(opts, holdem.ActionFold)
		}
		if !ok {
			t.Fatalf("no legal action found for %s", active)
		}
		var stepEvents []holdem.Event
		var err error
		tbl, stepEvents, err = holdem.ProcessAction(tbl, active, opt.Action, opt.MinAmount)
		if err != nil {
			t.Fatalf("process action %s for %s: %v", opt.Action, active, err)
		}
		events = append(events, stepEvents...)
	}
	return tbl, events
}

func TestBuildTapeAndVerify_RoundTrips(t *testing.T) {
	tbl := newTestTable(t)
	deck := card.FullDeck()

	final, events := playHandToEnd(t, tbl, deck)
	if final.HandInProgress {
		t.Fatalf("expected hand to be over")
	}

	tape, err := BuildTape(tbl.ID, "a", final.HandNumber, deck, events)
	if err != nil {
		t.Fatalf("BuildTape: %v", err)
	}
	if len(tape.Events) != len(events) {
		t.Fatalf("expected %d events in tape, got %d", len(events), len(tape.Events))
	}

	if err := Verify(tape, tbl); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_DetectsDivergentReplay(t *testing.T) {
	tbl := newTestTable(t)
	deck := card.FullDeck()

	_, events := playHandToEnd(t, tbl, deck)

	tape, err := BuildTape(tbl.ID, "a", 1, deck, events)
	if err != nil {
		t.Fatalf("BuildTape: %v", err)
	}

	actions, err := ExtractActions(tape)
	if err != nil {
		t.Fatalf("ExtractActions: %v", err)
	}
	if len(actions) == 0 {
		t.Fatalf("expected at least one recorded action")
	}
	actions[0].Action = holdem.ActionFold

	if err := verifyActions(tape, tbl, actions); err == nil {
		t.Fatalf("expected divergent replay to fail verification")
	}
}

// verifyActions is Verify with an explicit action slice, letting the
// divergence test substitute a tampered sequence without mutating tape.
func verifyActions(tape *ReplayTape, seated holdem.Table, actions []RecordedAction) error {
	final, _, err := Replay(seated, tape.Deck, actions)
	if err != nil {
		return err
	}
	want, err := finalStacks(tape)
	if err != nil {
		return err
	}
	for id, stack := range want {
		p, ok := final.Players[id]
		if !ok || p.Stack != stack {
			return &ReplayError{Reason: "stack_mismatch"}
		}
	}
	return nil
}
