package replay

import (
	"encoding/json"
	"fmt"

	"holdem-lite/card"
	"holdem-lite/holdem"
)

// TapeVersion is bumped whenever ReplayTape's shape changes in a way
// that breaks older stored bundles.
const TapeVersion = 1

// BuildTape captures one hand's event log into a self-contained,
// JSON-native bundle for the hand-history sink. deck is the exact
// shuffle StartHand consumed for the hand (holdem.FixedDeck replays it
// bit-for-bit); log is that hand's slice of Table.Log, from its
// HAND_START event through its HAND_END event.
func BuildTape(tableID string, heroID holdem.PlayerID, handNumber int, deck []card.Card, log []holdem.Event) (*ReplayTape, error) {
	tape := &ReplayTape{
		TapeVersion: TapeVersion,
		TableID:     tableID,
		HandNumber:  handNumber,
		HeroID:      heroID,
		Deck:        append([]card.Card(nil), deck...),
		Events:      make([]ReplayEvent, 0, len(log)),
	}
	for i, ev := range log {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal event %d (%s): %w", i, ev.Type, err)
		}
		tape.Events = append(tape.Events, ReplayEvent{
			Type:    ev.Type,
			Seq:     uint64(i + 1),
			Payload: raw,
		})
	}
	return tape, nil
}

// ExtractActions pulls the ordered PLAYER_ACTION steps out of a tape,
// discarding everything ProcessAction derives on its own (blinds,
// street deals, showdown, hand end). Re-driving just these against a
// freshly started hand on the same deck must reproduce the tape's
// recorded outcome.
func ExtractActions(tape *ReplayTape) ([]RecordedAction, error) {
	var out []RecordedAction
	for i, ev := range tape.Events {
		if ev.Type != holdem.EventPlayerAction {
			continue
		}
		var payload holdem.PlayerActionPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal action event %d: %w", i, err)
		}
		out = append(out, RecordedAction{
			PlayerID: payload.PlayerID,
			Action:   payload.Action,
			Amount:   payload.Amount,
		})
	}
	return out, nil
}

// Replay re-drives one hand from a lobby-seated, not-yet-started table
// through the given deck and action sequence, returning the resulting
// table and the full event log playback produced. There is no separate
// "apply a logged event" pathway: this exercises the same StartHand /
// ProcessAction entry points a live table does, since those already are
// the engine's only state transitions.
func Replay(seated holdem.Table, deck []card.Card, actions []RecordedAction) (holdem.Table, []holdem.Event, error) {
	t, events, err := holdem.StartHand(seated, holdem.FixedDeck(deck))
	if err != nil {
		return t, nil, fmt.Errorf("start hand: %w", err)
	}

	for i, a := range actions {
		var stepEvents []holdem.Event
		t, stepEvents, err = holdem.ProcessAction(t, a.PlayerID, a.Action, a.Amount)
		if err != nil {
			return t, events, &ReplayError{
				StepIndex: i,
				Reason:    "action_rejected",
				Message:   err.Error(),
				Expected: &ExpectedState{
					PlayerID:     t.ActivePlayerID,
					LegalActions: holdem.LegalActions(t),
					Stage:        t.Stage.String(),
				},
			}
		}
		events = append(events, stepEvents...)
	}
	return t, events, nil
}

// Verify re-drives a tape's recorded actions from a fresh, identically
// seated table and reports a ReplayError if the replayed ending stacks
// don't match the tape's recorded HAND_END payload. This is the concrete
// check behind the determinism property: replaying an event log against
// the initial state reproduces the final state exactly.
func Verify(tape *ReplayTape, seated holdem.Table) error {
	actions, err := ExtractActions(tape)
	if err != nil {
		return err
	}
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
		if !ok {
			return &ReplayError{Reason: "player_missing", Message: fmt.Sprintf("player %s absent after replay", id)}
		}
		if p.Stack != stack {
			return &ReplayError{
				Reason:  "stack_mismatch",
				Message: fmt.Sprintf("player %s: recorded stack %d, replayed stack %d", id, stack, p.Stack),
			}
		}
	}
	return nil
}

func finalStacks(tape *ReplayTape) (map[holdem.PlayerID]int64, error) {
	for i := len(tape.Events) - 1; i >= 0; i-- {
		ev := tape.Events[i]
		if ev.Type != holdem.EventHandEnd {
			continue
		}
		var payload holdem.HandEndPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal hand-end event: %w", err)
		}
		return payload.Stacks, nil
	}
	return nil, fmt.Errorf("tape has no HAND_END event")
}
