package session

import (
	"holdem-lite/holdem"
	"holdem-lite/internal/protocol"
)

// BuildEventView redacts an engine event for one viewer before it is
// embedded in a gameState message. Only DEAL carries hole cards that
// need redaction; every other event payload is already public
// information (actions, street cards, pot results).
func BuildEventView(t holdem.Table, ev holdem.Event, viewer Viewer) protocol.EventView {
	out := protocol.EventView{Type: string(ev.Type)}
	switch payload := ev.Payload.(type) {
	case holdem.DealPayload:
		out.Payload = redactDeal(t, payload, viewer)
	default:
		out.Payload = ev.Payload
	}
	return out
}

type dealView struct {
	HoleCards map[string][]string `json:"holeCards"`
}

func redactDeal(t holdem.Table, payload holdem.DealPayload, viewer Viewer) dealView {
	out := dealView{HoleCards: map[string][]string{}}
	for id, cards := range payload.HoleCards {
		p := t.Players[id]
		if !canSeeHole(t, p, viewer) {
			continue
		}
		wire := make([]string, len(cards))
		for i, c := range cards {
			wire[i] = c.WireString()
		}
		out.HoleCards[string(id)] = wire
	}
	return out
}
