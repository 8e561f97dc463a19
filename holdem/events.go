package holdem

import "holdem-lite/card"

// EventType enumerates the ordered event catalog every transition emits.
// The orchestrator persists these to the hand-history sink and the
// session layer turns them into personalized wire messages; the engine
// itself treats them as an opaque append-only log.
type EventType string

const (
	EventPlayerJoined    EventType = "PLAYER_JOINED"
	EventPlayerLeft      EventType = "PLAYER_LEFT"
	EventPlayerReady     EventType = "PLAYER_READY"
	EventHandStart       EventType = "HAND_START"
	EventBlindsPosted    EventType = "BLINDS_POSTED"
	EventDeal            EventType = "DEAL"
	EventPlayerAction    EventType = "PLAYER_ACTION"
	EventPlayerTimeout   EventType = "PLAYER_TIMEOUT"
	EventFlop            EventType = "FLOP"
	EventTurn            EventType = "TURN"
	EventRiver           EventType = "RIVER"
	EventShowdown        EventType = "SHOWDOWN"
	EventPlayerRevealed  EventType = "PLAYER_REVEALED"
	EventHandEnd         EventType = "HAND_END"
	EventPlayerConnected EventType = "PLAYER_CONNECTED"
	EventPlayerOffline   EventType = "PLAYER_OFFLINE"
)

// Event is one entry of a hand's event log. Payload is a concrete,
// type-specific struct below; the session layer type-switches on it when
// building a per-viewer projection.
type Event struct {
	Type    EventType
	Payload interface{}
}

// PlayerJoinedPayload / PlayerLeftPayload carry seat bookkeeping, not
// chip state, since they can happen outside a hand.
type PlayerJoinedPayload struct {
	PlayerID PlayerID
	Seat     int
}

type PlayerLeftPayload struct {
	PlayerID PlayerID
	Seat     int
}

type HandStartPayload struct {
	HandNumber int
	DealerSeat int
	Seats      []PlayerID
}

type BlindsPostedPayload struct {
	SmallBlindSeat   int
	BigBlindSeat     int
	SmallBlindAmount int64
	BigBlindAmount   int64
}

// DealPayload.HoleCards maps a player to their two hole cards; the
// session layer redacts this per-viewer, the engine itself deals to
// everyone.
type DealPayload struct {
	HoleCards map[PlayerID][]card.Card
}

type PlayerActionPayload struct {
	PlayerID PlayerID
	Seat     int
	Action   ActionType
	Amount   int64
}

type PlayerTimeoutPayload struct {
	PlayerID PlayerID
	Seat     int
	Forced   ActionType
}

type StreetPayload struct {
	Stage     Stage
	Community []card.Card
}

type ShowdownEntry struct {
	PlayerID PlayerID
	Hole     []card.Card
	Category HandCategory
}

type ShowdownPayload struct {
	Entries []ShowdownEntry
}

type PotResultPayload struct {
	PotIndex int
	Amount   int64
	Winners  []PlayerID
}

type HandEndPayload struct {
	HandNumber int
	PotResults []PotResultPayload
	Stacks     map[PlayerID]int64
}

type PlayerConnectedPayload struct {
	PlayerID PlayerID
}

type PlayerOfflinePayload struct {
	PlayerID PlayerID
}

type PlayerRevealedPayload struct {
	PlayerID PlayerID
	Hole     []card.Card
}

func (t *Table) emit(typ EventType, payload interface{}) {
	t.Log = append(t.Log, Event{Type: typ, Payload: payload})
}
