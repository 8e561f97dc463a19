package table

import (
	"testing"
	"time"

	"holdem-lite/card"
	"holdem-lite/holdem"
)

func noopSend(holdem.PlayerID, []byte) {}

func newLeaveTestTable(t *testing.T) *Table {
	t.Helper()

	cfg := Config{
		Config: holdem.Config{
			MaxSeats:      6,
			SmallBlind:    50,
			BigBlind:      100,
			StartingStack: 1000,
		},
		MinPlayersToStart: 3,
	}
	tbl := New("leave_test", cfg, noopSend, PersistenceHooks{}, nil)
	t.Cleanup(tbl.Stop)

	ids := []holdem.PlayerID{"p1", "p2", "p3"}
	for _, id := range ids {
		if err := tbl.SubmitEvent(Event{Type: EventJoin, PlayerID: id, Name: string(id), Role: "player", BuyIn: 1000}); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	tbl.SetNextDeckSource(holdem.FixedDeck(card.FullDeck()))

	for _, id := range ids {
		if err := tbl.SubmitEvent(Event{Type: EventSetReady, PlayerID: id, Ready: true}); err != nil {
			t.Fatalf("ready %s: %v", id, err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if tbl.Snapshot().HandInProgress {
			return tbl
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hand never started")
	return nil
}

func TestLeaveDuringHand_FoldsAndRemovesImmediately(t *testing.T) {
	tbl := newLeaveTestTable(t)

	before := tbl.Snapshot()
	active := before.ActivePlayerID
	if active == "" {
		t.Fatalf("expected an active player once the hand started")
	}
	potBefore := before.TotalPot()

	if err := tbl.SubmitEvent(Event{Type: EventLeave, PlayerID: active}); err != nil {
		t.Fatalf("leave %s: %v", active, err)
	}

	after := tbl.Snapshot()
	if _, stillSeated := after.Players[active]; stillSeated {
		t.Fatalf("expected %s to be removed from the table after leaving mid-hand", active)
	}
	if after.TotalPot() != potBefore {
		t.Fatalf("expected chips already committed to stay in the pot: before=%d after=%d", potBefore, after.TotalPot())
	}
	if after.HandInProgress && after.ActivePlayerID == active {
		t.Fatalf("expected turn to advance away from the player who left")
	}
}

func TestLeaveDuringHand_RemovedSeatIsFreed(t *testing.T) {
	tbl := newLeaveTestTable(t)

	before := tbl.Snapshot()
	active := before.ActivePlayerID
	seat := before.SeatOf(active)

	if err := tbl.SubmitEvent(Event{Type: EventLeave, PlayerID: active}); err != nil {
		t.Fatalf("leave %s: %v", active, err)
	}

	after := tbl.Snapshot()
	if after.Seats[seat] != "" {
		t.Fatalf("expected seat %d to be vacated, got %q", seat, after.Seats[seat])
	}
}
