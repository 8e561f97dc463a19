package npc

import (
	"holdem-lite/card"
	"holdem-lite/holdem"
)

// GameView is a read-only projection of the table state visible to a bot
// at the moment it is asked to act.
type GameView struct {
	Stage        holdem.Stage
	HoleCards    []card.Card
	Community    []card.Card
	Pot          int64
	CurrentBet   int64
	MyBet        int64
	MyStack      int64
	LegalActions []holdem.ActionType
	MinRaise     int64
	ActiveCount  int
	Street       int // 0=preflop, 1=flop, 2=turn, 3=river
}

// Decision is what a BrainDecider returns.
type Decision struct {
	Action holdem.ActionType
	Amount int64
}

// BrainDecider is the core interface every bot strategy implements. The
// engine and orchestrator never depend on this package directly — a bot
// is just another playerAction source feeding holdem.ProcessAction, the
// same as a human client (spec.md treats bot strategies as an external
// collaborator, §1).
type BrainDecider interface {
	Decide(view GameView) Decision
	Name() string
}
