package session

import (
	"testing"

	"holdem-lite/card"
	"holdem-lite/holdem"
)

func twoCards(c1, c2 card.Card) []card.Card {
	return []card.Card{c1, c2}
}

func tableWithPlayers(stage holdem.Stage, inProgress bool, vis holdem.VisibilityPolicy, players ...holdem.Player) holdem.Table {
	t := holdem.Table{
		Stage:          stage,
		HandInProgress: inProgress,
		Visibility:     vis,
		Players:        make(map[holdem.PlayerID]holdem.Player),
		Seats:          make([]holdem.PlayerID, len(players)),
	}
	for i, p := range players {
		t.Players[p.ID] = p
		t.Seats[i] = p.ID
	}
	return t
}

func TestBuildView_OwnHoleCardsAlwaysVisible(t *testing.T) {
	hole := twoCards(card.CardSpadeA, card.CardHeartK)
	hero := holdem.Player{ID: "hero", Hole: hole}
	tbl := tableWithPlayers(holdem.StagePreFlop, true, holdem.VisibilityShowdown, hero)

	view := BuildView("t1", tbl, Viewer{PlayerID: "hero", IsPlayer: true}, nil)
	if len(view.Players) != 1 || len(view.Players[0].HoleCards) != 2 {
		t.Fatalf("expected the hero to see their own hole cards, got %+v", view.Players)
	}
}

func TestBuildView_OtherPlayersHoleCardsRedactedDuringPlay(t *testing.T) {
	hole := twoCards(card.CardSpadeA, card.CardHeartK)
	hero := holdem.Player{ID: "hero", Hole: hole}
	villain := holdem.Player{ID: "villain", Hole: twoCards(card.CardClubQ, card.CardDiamondJ)}
	tbl := tableWithPlayers(holdem.StagePreFlop, true, holdem.VisibilityShowdown, hero, villain)

	view := BuildView("t1", tbl, Viewer{PlayerID: "hero", IsPlayer: true}, nil)
	for _, pv := range view.Players {
		if pv.PlayerID == "villain" && pv.HoleCards != nil {
			t.Fatalf("expected villain's hole cards redacted, got %v", pv.HoleCards)
		}
	}
}

func TestBuildView_ShowdownRevealsNonFoldedOnly(t *testing.T) {
	winner := holdem.Player{ID: "winner", Hole: twoCards(card.CardSpadeA, card.CardHeartK)}
	folded := holdem.Player{ID: "folded", Hole: twoCards(card.CardClub2, card.CardDiamond3), Folded: true}
	tbl := tableWithPlayers(holdem.StageShowdown, true, holdem.VisibilityShowdown, winner, folded)

	view := BuildView("t1", tbl, Viewer{}, nil)
	for _, pv := range view.Players {
		switch pv.PlayerID {
		case "winner":
			if len(pv.HoleCards) != 2 {
				t.Fatalf("expected winner's hole cards revealed at showdown")
			}
		case "folded":
			if pv.HoleCards != nil {
				t.Fatalf("expected folded player's hole cards to stay hidden at showdown")
			}
		}
	}
}

func TestBuildView_ImmediateVisibilityAlwaysRevealsToSpectator(t *testing.T) {
	p := holdem.Player{ID: "p1", Hole: twoCards(card.CardSpadeA, card.CardHeartK)}
	tbl := tableWithPlayers(holdem.StagePreFlop, true, holdem.VisibilityImmediate, p)

	view := BuildView("t1", tbl, Viewer{IsPlayer: false, Visibility: holdem.VisibilityImmediate}, nil)
	if len(view.Players) != 1 || len(view.Players[0].HoleCards) != 2 {
		t.Fatalf("expected immediate visibility to reveal hole cards to a spectator")
	}
}

func TestBuildView_DelayedSpectatorSeesPreviousHandDuringNewHand(t *testing.T) {
	prevWinner := holdem.Player{ID: "p1", Hole: twoCards(card.CardSpadeA, card.CardHeartK)}
	prevFolded := holdem.Player{ID: "p2", Hole: twoCards(card.CardClub2, card.CardDiamond3), Folded: true}
	previous := tableWithPlayers(holdem.StageShowdown, false, holdem.VisibilityDelayed, prevWinner, prevFolded)

	// A new hand has started: same players, fresh (different) hole cards,
	// HandInProgress back to true.
	newP1 := holdem.Player{ID: "p1", Hole: twoCards(card.CardSpade9, card.CardHeart9)}
	newP2 := holdem.Player{ID: "p2", Hole: twoCards(card.CardClub4, card.CardDiamond5)}
	live := tableWithPlayers(holdem.StagePreFlop, true, holdem.VisibilityDelayed, newP1, newP2)

	viewer := Viewer{IsPlayer: false, Visibility: holdem.VisibilityDelayed}
	view := BuildView("t1", live, viewer, &previous)

	for _, pv := range view.Players {
		switch pv.PlayerID {
		case "p1":
			if len(pv.HoleCards) != 2 || pv.HoleCards[0] != prevWinner.Hole[0] {
				t.Fatalf("expected p1's previous-hand cards to carry over, got %v", pv.HoleCards)
			}
		case "p2":
			if pv.HoleCards != nil {
				t.Fatalf("expected p2 (folded last hand) to stay hidden, got %v", pv.HoleCards)
			}
		}
	}
}

func TestBuildView_DelayedSpectatorBlankWithNoPreviousHand(t *testing.T) {
	p := holdem.Player{ID: "p1", Hole: twoCards(card.CardSpadeA, card.CardHeartK)}
	tbl := tableWithPlayers(holdem.StagePreFlop, true, holdem.VisibilityDelayed, p)

	viewer := Viewer{IsPlayer: false, Visibility: holdem.VisibilityDelayed}
	view := BuildView("t1", tbl, viewer, nil)
	if view.Players[0].HoleCards != nil {
		t.Fatalf("expected no hole cards with no previous hand to fall back to")
	}
}

func TestBuildView_DelayedSpectatorSeesJustFinishedHandLiveUntilNextDeal(t *testing.T) {
	p := holdem.Player{ID: "p1", Hole: twoCards(card.CardSpadeA, card.CardHeartK)}
	// Hand just ended: HandInProgress is false, no new hand dealt yet.
	tbl := tableWithPlayers(holdem.StageShowdown, false, holdem.VisibilityDelayed, p)

	viewer := Viewer{IsPlayer: false, Visibility: holdem.VisibilityDelayed}
	view := BuildView("t1", tbl, viewer, nil)
	if len(view.Players[0].HoleCards) != 2 {
		t.Fatalf("expected the just-finished hand's cards visible directly from the live table")
	}
}
