// Package replay builds and re-drives hand-history bundles. It never
// touches the network: a bundle is the ordered event log the
// orchestrator already produced for one hand, wrapped with just enough
// metadata (table id, hero, starting deck) to reconstruct or re-verify
// it later. The persistence hand-history sink (internal/ledger) does not
// store these; it keeps its own event rows. This package only knows how
// to build and replay them.
package replay

import (
	"encoding/json"

	"holdem-lite/card"
	"holdem-lite/holdem"
)

// ReplayTape is one hand's complete, self-contained event log.
type ReplayTape struct {
	TapeVersion int               `json:"tapeVersion"`
	TableID     string            `json:"tableId"`
	HandNumber  int               `json:"handNumber"`
	HeroID      holdem.PlayerID   `json:"heroId,omitempty"`
	Deck        []card.Card       `json:"deck"`
	Events      []ReplayEvent     `json:"events"`
}

// ReplayEvent is one holdem.Event with its payload pre-marshaled to
// JSON, so a tape survives round-tripping through a store that doesn't
// know the engine's payload types.
type ReplayEvent struct {
	Type    holdem.EventType `json:"type"`
	Seq     uint64           `json:"seq"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

// RecordedAction is the minimal information needed to re-drive one
// PLAYER_ACTION step of a hand through ProcessAction.
type RecordedAction struct {
	PlayerID holdem.PlayerID
	Action   holdem.ActionType
	Amount   int64
}
