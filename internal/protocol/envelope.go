// Package protocol implements the wire format from spec.md §4.4/§6: every
// message is a JSON object {"action": "...", "payload": {...}}. This
// replaces the teacher's protobuf ServerEnvelope/ClientEnvelope — the
// spec mandates JSON, and the .proto-generated package the teacher's
// codec.go depends on (holdem-lite/apps/server/gen) does not exist
// anywhere in the retrieved reference pack.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the outer shape of every inbound and outbound message.
type Envelope struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Client -> server action names (spec.md §6.2).
const (
	ActionIdentify     = "identify"
	ActionListGames    = "listGames"
	ActionJoinGame     = "joinGame"
	ActionReady        = "ready"
	ActionPlayerAction = "playerAction"
	ActionRevealCards  = "revealCards"
	ActionChat         = "chat"
	ActionLeaveGame    = "leaveGame"
)

// Server -> client action names (spec.md §6.3).
const (
	ActionIdentified  = "identified"
	ActionGameList    = "gameList"
	ActionGameJoined  = "gameJoined"
	ActionGameState   = "gameState"
	ActionTimeWarning = "timeWarning"
	ActionGameOver    = "gameOver"
	ActionChatMessage = "chatMessage"
	ActionError       = "error"
)

// Error codes (spec.md §6.4).
const (
	ErrInvalidAction  = "INVALID_ACTION"
	ErrOutOfTurn      = "OUT_OF_TURN"
	ErrInvalidAmount  = "INVALID_AMOUNT"
	ErrNotInGame      = "NOT_IN_GAME"
	ErrGameNotFound   = "GAME_NOT_FOUND"
	ErrGameFull       = "GAME_FULL"
	ErrAlreadyInGame  = "ALREADY_IN_GAME"
	ErrNotIdentified  = "NOT_IDENTIFIED"
	ErrInvalidMessage = "INVALID_MESSAGE"
)

// Encode marshals an outbound action+payload pair into an Envelope.
func Encode(action string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", action, err)
	}
	return json.Marshal(Envelope{Action: action, Payload: raw})
}

// Decode unmarshals an inbound frame into its envelope; callers then
// unmarshal Payload into the struct matching Action.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Action == "" {
		return Envelope{}, fmt.Errorf("missing action")
	}
	return env, nil
}

// ErrorPayload is the payload of an `error` server message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func EncodeError(code, message string) []byte {
	b, _ := Encode(ActionError, ErrorPayload{Code: code, Message: message})
	return b
}
