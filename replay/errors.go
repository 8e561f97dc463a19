package replay

import (
	"fmt"

	"holdem-lite/holdem"
)

// ReplayError reports where a replay diverged from the recorded tape:
// either the action log itself is malformed, or re-driving it against
// the engine produced a different outcome than what was recorded.
type ReplayError struct {
	StepIndex int            `json:"stepIndex"`
	Reason    string         `json:"reason"`
	Message   string         `json:"message"`
	Expected  *ExpectedState `json:"expected,omitempty"`
}

// ExpectedState reports what was legal at the point of divergence, the
// same shape a client's actionRequest prompt would carry.
type ExpectedState struct {
	PlayerID     holdem.PlayerID       `json:"playerId"`
	LegalActions []holdem.ActionOption `json:"legalActions,omitempty"`
	Stage        string                `json:"stage,omitempty"`
}

func (e *ReplayError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("replay error(step=%d reason=%s): %s", e.StepIndex, e.Reason, e.Message)
}
