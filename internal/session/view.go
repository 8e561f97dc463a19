// Package session owns connection identity, reconnect tokens, and the
// per-viewer personalized projection of engine state (spec.md §4.3).
// Projection is deliberately separate from the holdem package: the
// engine always holds full ground truth, and which hole cards a given
// viewer may see is a property of who is asking, not of the hand.
package session

import (
	"holdem-lite/card"
	"holdem-lite/holdem"
	"holdem-lite/internal/protocol"
)

// Viewer identifies who a projection is being built for.
type Viewer struct {
	PlayerID   holdem.PlayerID // "" for a pure spectator connection
	IsPlayer   bool
	Visibility holdem.VisibilityPolicy
}

// BuildView projects t for viewer, redacting hole cards per spec.md
// §4.3: a viewer always sees their own hole cards; others' hole cards
// are visible only at SHOWDOWN, or always under an `immediate`
// visibility policy, or never under `showdown` (default). previous is
// the last hand's final state (nil if none yet): under `delayed`
// visibility, a spectator keeps seeing previous's non-folded hole cards
// for the duration of the hand currently in progress in t, rather than
// going blank the moment the new hand's deal resets t's hole cards.
func BuildView(gameID string, t holdem.Table, viewer Viewer, previous *holdem.Table) protocol.GameStateView {
	view := protocol.GameStateView{
		GameID:         gameID,
		HandNumber:     t.HandNumber,
		Stage:          t.Stage.String(),
		DealerSeat:     t.DealerSeat,
		CommunityCards: copyCards(t.Community),
		CurrentHighBet: t.CurrentHighBet,
	}
	if t.ActivePlayerID != "" {
		view.ActivePlayerID = string(t.ActivePlayerID)
	}
	for _, pot := range t.Pots {
		pv := protocol.PotView{Amount: pot.Amount}
		for id := range pot.Eligible {
			pv.Eligible = append(pv.Eligible, string(id))
		}
		view.Pots = append(view.Pots, pv)
	}

	for _, seatID := range t.Seats {
		if seatID == "" {
			continue
		}
		p, ok := t.Players[seatID]
		if !ok {
			continue
		}
		pv := protocol.PlayerView{
			PlayerID:  string(p.ID),
			Name:      p.Name,
			Seat:      p.Seat,
			Stack:     p.Stack,
			StreetBet: p.StreetBet,
			Folded:    p.Folded,
			AllIn:     p.AllIn,
			Connected: p.Connected,
		}
		if canSeeHole(t, p, viewer) {
			pv.HoleCards = copyCards(p.Hole)
		} else if cards, ok := delayedPreviousHole(t, p, viewer, previous); ok {
			pv.HoleCards = cards
		}
		view.Players = append(view.Players, pv)
	}
	return view
}

// canSeeHole reports whether viewer may see p's actual hole cards for
// the hand currently in progress in t. It never looks at a previous
// hand; DEAL event redaction (which always carries the new hand's
// cards) also uses this and must not leak through a stale frozen hand.
func canSeeHole(t holdem.Table, p holdem.Player, viewer Viewer) bool {
	if viewer.IsPlayer && viewer.PlayerID == p.ID {
		return true
	}
	if t.Stage == holdem.StageShowdown && !p.Folded {
		return true
	}
	if !viewer.IsPlayer {
		switch viewer.Visibility {
		case holdem.VisibilityImmediate:
			return true
		case holdem.VisibilityDelayed:
			return !t.HandInProgress && !p.Folded
		default:
			return false
		}
	}
	return false
}

// delayedPreviousHole returns the frozen previous hand's hole cards for
// p under `delayed` visibility while a new hand is in progress in t, so
// a spectator's view keeps showing the last completed hand instead of
// going blank the instant the new hand's deal resets t's hole cards.
// The ok result is false whenever the fallback doesn't apply (wrong
// policy, no hand running yet, no previous hand, or p folded last hand).
func delayedPreviousHole(t holdem.Table, p holdem.Player, viewer Viewer, previous *holdem.Table) ([]card.Card, bool) {
	if viewer.IsPlayer || viewer.Visibility != holdem.VisibilityDelayed {
		return nil, false
	}
	if !t.HandInProgress || previous == nil {
		return nil, false
	}
	prevP, ok := previous.Players[p.ID]
	if !ok || prevP.Folded {
		return nil, false
	}
	return copyCards(prevP.Hole), true
}

func copyCards[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
