package npc

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"holdem-lite/holdem"
)

// NPCInstance is an active bot seated at a table.
type NPCInstance struct {
	PlayerID   holdem.PlayerID
	Persona    *NPCPersona
	Brain      BrainDecider
	ThinkDelay time.Duration
}

// Manager creates bot identities and turns a table snapshot into a
// decision. It holds no reference to any table or engine state — the
// orchestrator owns that — so a single Manager can serve every table.
type Manager struct {
	registry  *PersonaRegistry
	instances map[holdem.PlayerID]*NPCInstance
	mu        sync.RWMutex
	rng       *rand.Rand
	nextID    int
}

// NewManager creates a bot manager backed by the given persona registry.
func NewManager(registry *PersonaRegistry) *Manager {
	return &Manager{
		registry:  registry,
		instances: make(map[holdem.PlayerID]*NPCInstance),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Registry returns the underlying PersonaRegistry.
func (m *Manager) Registry() *PersonaRegistry {
	return m.registry
}

// Spawn mints a fresh bot PlayerID and brain for persona. The caller
// (the table orchestrator) still has to call holdem.AddPlayer with the
// returned id — Manager only owns decision-making, not table seating.
func (m *Manager) Spawn(persona *NPCPersona) *NPCInstance {
	m.mu.Lock()
	m.nextID++
	id := holdem.PlayerID(botIDPrefix + strconv.Itoa(m.nextID))
	seed := m.rng.Int63()
	baseMs := 2000 + int(persona.Brain.Randomness*3000)
	jitterMs := m.rng.Intn(2000)
	m.mu.Unlock()

	inst := &NPCInstance{
		PlayerID:   id,
		Persona:    persona,
		Brain:      NewRuleBrain(persona, seed),
		ThinkDelay: time.Duration(baseMs+jitterMs) * time.Millisecond,
	}

	m.mu.Lock()
	m.instances[id] = inst
	m.mu.Unlock()
	return inst
}

// Decide asks the bot seated as id what to do, given its current view.
func (m *Manager) Decide(id holdem.PlayerID, view GameView) Decision {
	m.mu.RLock()
	inst := m.instances[id]
	m.mu.RUnlock()
	if inst == nil {
		return Decision{Action: holdem.ActionFold}
	}
	return inst.Brain.Decide(view)
}

// IsBot reports whether id belongs to a bot spawned by this manager.
func (m *Manager) IsBot(id holdem.PlayerID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[id] != nil
}

// Despawn drops tracking for a bot that has left a table.
func (m *Manager) Despawn(id holdem.PlayerID) {
	m.mu.Lock()
	delete(m.instances, id)
	m.mu.Unlock()
}

// ThinkDelay returns the simulated thinking pause before a bot acts.
func (m *Manager) ThinkDelay(id holdem.PlayerID) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if inst := m.instances[id]; inst != nil {
		return inst.ThinkDelay
	}
	return time.Second
}

// Name returns the bot's persona name, or "" if id is not a known bot.
func (m *Manager) Name(id holdem.PlayerID) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if inst := m.instances[id]; inst != nil {
		return inst.Persona.Name
	}
	return ""
}

// BuildView projects a Table into the narrow GameView a bot's brain
// reasons over, from the given seat's perspective.
func BuildView(t holdem.Table, id holdem.PlayerID, legal []holdem.ActionType, minRaise int64) GameView {
	view := GameView{
		Stage:        t.Stage,
		Community:    t.Community,
		CurrentBet:   t.CurrentHighBet,
		MinRaise:     minRaise,
		LegalActions: legal,
		Street:       int(t.Stage),
	}
	view.Pot = t.TotalPot()
	if p, ok := t.Players[id]; ok {
		view.HoleCards = p.Hole
		view.MyBet = p.StreetBet
		view.MyStack = p.Stack
	}
	for _, p := range t.Players {
		if !p.Folded && p.InHand {
			view.ActiveCount++
		}
	}
	return view
}

const botIDPrefix = "bot-"
