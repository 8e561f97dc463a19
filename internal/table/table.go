// Package table owns exactly one engine state per active table plus the
// wall-clock concerns the pure holdem engine deliberately knows nothing
// about: action timers, the inter-hand delay, bot scheduling, and
// broadcasting personalized projections to every connected viewer.
//
// Every table runs as a single actor goroutine so engine mutation is
// always serialized: connection I/O happens on independent goroutines
// and hands off to the owning table by sending an Event through
// SubmitEvent, never by touching engine state directly.
package table

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"holdem-lite/holdem"
	"holdem-lite/holdem/npc"
	"holdem-lite/internal/protocol"
	"holdem-lite/internal/session"
)

const (
	defaultActionTimeout     = 30 * time.Second
	defaultHandDelay         = 3 * time.Second
	defaultMinPlayersToStart = 2
	tickInterval             = 250 * time.Millisecond
)

// ErrTableClosed is returned by SubmitEvent once the table has stopped.
var ErrTableClosed = fmt.Errorf("table is closed")

// ErrStaleHand is returned when a playerAction names a handNumber other
// than the one currently in progress (spec.md §5 ordering guarantees).
var ErrStaleHand = fmt.Errorf("action refers to a hand that is no longer current")

// Config parameterizes a table beyond what holdem.Config already covers.
type Config struct {
	holdem.Config
	ActionTimeout     time.Duration
	HandDelay         time.Duration
	MinPlayersToStart int
}

func (c Config) withDefaults() Config {
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = defaultActionTimeout
	}
	if c.HandDelay <= 0 {
		c.HandDelay = defaultHandDelay
	}
	if c.MinPlayersToStart <= 0 {
		c.MinPlayersToStart = defaultMinPlayersToStart
	}
	return c
}

// PersistenceHooks lets the lobby wire a table's transitions into the
// ledger without this package depending on ledger's user-account
// bookkeeping. Failures in either hook are logged by the caller and
// never abort a hand (spec.md §4.2 "failures logged, never abort").
type PersistenceHooks struct {
	AppendLiveEvent func(handID string, seq uint64, eventType string, serverTsMs int64, encoded []byte)
	OnHandEnd       func(handID string, events []holdem.Event, final holdem.Table)
}

// HandEndHook is a post-settlement callback, e.g. lobby bookkeeping that
// needs to know a hand just finished independent of persistence.
type HandEndHook func(final holdem.Table, events []holdem.Event)

// viewerEntry tracks one connected or spectating identity.
type viewerEntry struct {
	viewer    session.Viewer
	connected bool
}

// Table is one actively-orchestrated poker table.
type Table struct {
	ID     string
	Config Config

	mu                sync.RWMutex
	state             holdem.Table
	lastCompletedHand *holdem.Table // frozen at HAND_END; nil until the table's first hand ends
	viewers           map[holdem.PlayerID]*viewerEntry
	closed            bool
	reason            string

	events chan Event
	done   chan struct{}
	stop   sync.Once

	turnHand    int
	turnPlayer  holdem.PlayerID
	turnLogLen  int
	deadline    time.Time
	warned50    bool
	warned80    bool
	nextHandAt  time.Time
	emptySince  time.Time

	nextDeck holdem.DeckSource

	send     func(id holdem.PlayerID, data []byte)
	persist  PersistenceHooks
	handID   string
	handSeq  uint64

	npcManager   *npc.Manager
	handEndHooks []HandEndHook
}

// EventType enumerates the actor's inbound message catalog.
type EventType int

const (
	EventJoin EventType = iota
	EventLeave
	EventSetReady
	EventSetConnected
	EventAction
	EventReveal
	EventAddBot
	EventStartHand
	EventTick
	EventClose
)

// Event is one message handed to the table's actor goroutine.
type Event struct {
	Type       EventType
	PlayerID   holdem.PlayerID
	Name       string
	Role       string // "player" | "spectator", for EventJoin
	BuyIn      int64
	Ready      bool
	Connected  bool
	Action     holdem.ActionType
	Amount     int64
	HandNumber int
	Persona    *npc.NPCPersona
	Response   chan error
}

// New creates a table and starts its actor goroutine. send delivers an
// already-encoded wire frame to one viewer; persist is optional (a
// zero-value PersistenceHooks disables persistence); npcMgr is optional.
func New(id string, cfg Config, send func(id holdem.PlayerID, data []byte), persist PersistenceHooks, npcMgr *npc.Manager) *Table {
	cfg = cfg.withDefaults()
	t := &Table{
		ID:         id,
		Config:     cfg,
		state:      holdem.Create(id, cfg.Config),
		viewers:    make(map[holdem.PlayerID]*viewerEntry),
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
		send:       send,
		persist:    persist,
		npcManager: npcMgr,
		emptySince: time.Now(),
	}
	go t.run()
	log.Printf("[Table %s] created (max=%d, blinds=%d/%d)", id, cfg.MaxSeats, cfg.SmallBlind, cfg.BigBlind)
	return t
}

func (t *Table) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case e := <-t.events:
			err := t.handleEvent(e)
			if e.Response != nil {
				e.Response <- err
			}
		case <-ticker.C:
			t.mu.Lock()
			t.tick()
			t.mu.Unlock()
		case <-t.done:
			log.Printf("[Table %s] actor stopped", t.ID)
			return
		}
	}
}

func (t *Table) handleEvent(e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed && e.Type != EventClose {
		return ErrTableClosed
	}

	switch e.Type {
	case EventJoin:
		return t.handleJoin(e.PlayerID, e.Name, e.Role, e.BuyIn)
	case EventLeave:
		return t.handleLeave(e.PlayerID)
	case EventSetReady:
		return t.handleSetReady(e.PlayerID, e.Ready)
	case EventSetConnected:
		return t.handleSetConnected(e.PlayerID, e.Connected)
	case EventAction:
		return t.handleAction(e.PlayerID, e.HandNumber, e.Action, e.Amount)
	case EventReveal:
		return t.handleReveal(e.PlayerID, e.HandNumber)
	case EventAddBot:
		return t.handleAddBot(e.Persona, e.BuyIn)
	case EventStartHand:
		return t.tryStartHand()
	case EventClose:
		t.stopLocked("closed")
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

// SubmitEvent hands e to the table's actor and blocks for the result.
func (t *Table) SubmitEvent(e Event) error {
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrTableClosed
	}
	select {
	case t.events <- e:
	case <-t.done:
		return ErrTableClosed
	}
	select {
	case err := <-e.Response:
		return err
	case <-t.done:
		return ErrTableClosed
	}
}

// --- event handlers (caller holds t.mu) ---

func (t *Table) handleJoin(id holdem.PlayerID, name, role string, buyIn int64) error {
	if role == "spectator" {
		t.viewers[id] = &viewerEntry{viewer: session.Viewer{PlayerID: id, IsPlayer: false, Visibility: t.Config.Visibility}, connected: true}
		return nil
	}
	nt, evs, err := holdem.AddPlayer(t.state, id, name, buyIn)
	if err != nil {
		return err
	}
	t.viewers[id] = &viewerEntry{viewer: session.Viewer{PlayerID: id, IsPlayer: true, Visibility: t.Config.Visibility}, connected: true}
	t.commit(nt, evs)
	return nil
}

func (t *Table) handleLeave(id holdem.PlayerID) error {
	if _, isPlayer := t.state.Players[id]; isPlayer {
		nt, evs, err := holdem.RemovePlayer(t.state, id)
		if err != nil {
			return err
		}
		t.commit(nt, evs)
	}
	delete(t.viewers, id)
	if t.npcManager != nil {
		t.npcManager.Despawn(id)
	}
	return nil
}

func (t *Table) handleSetReady(id holdem.PlayerID, ready bool) error {
	nt, evs, err := holdem.SetReady(t.state, id, ready)
	if err != nil {
		return err
	}
	t.commit(nt, evs)
	return t.tryStartHand()
}

func (t *Table) handleSetConnected(id holdem.PlayerID, connected bool) error {
	if v, ok := t.viewers[id]; ok {
		v.connected = connected
	}
	if _, isPlayer := t.state.Players[id]; !isPlayer {
		return nil
	}
	nt, evs, err := holdem.SetConnected(t.state, id, connected)
	if err != nil {
		return err
	}
	t.commit(nt, evs)
	return nil
}

func (t *Table) handleAction(id holdem.PlayerID, handNumber int, action holdem.ActionType, amount int64) error {
	if handNumber != 0 && handNumber != t.state.HandNumber {
		return ErrStaleHand
	}
	nt, evs, err := holdem.ProcessAction(t.state, id, action, amount)
	if err != nil {
		return err
	}
	t.commit(nt, evs)
	return nil
}

func (t *Table) handleReveal(id holdem.PlayerID, handNumber int) error {
	if handNumber != 0 && handNumber != t.state.HandNumber {
		return ErrStaleHand
	}
	nt, evs, err := holdem.RevealHand(t.state, id)
	if err != nil {
		return err
	}
	t.commit(nt, evs)
	return nil
}

func (t *Table) handleAddBot(persona *npc.NPCPersona, buyIn int64) error {
	if t.npcManager == nil {
		return fmt.Errorf("table has no bot manager configured")
	}
	inst := t.npcManager.Spawn(persona)
	return t.handleJoin(inst.PlayerID, inst.Persona.Name, "player", buyIn)
}

// tryStartHand starts a hand if the ready gate is satisfied; it is a
// no-op (not an error) when the gate isn't met yet, since it is called
// opportunistically after every seating/readiness change and every tick.
func (t *Table) tryStartHand() error {
	if t.state.HandInProgress {
		return nil
	}
	if !t.nextHandAt.IsZero() && time.Now().Before(t.nextHandAt) {
		return nil
	}
	ready := 0
	for _, p := range t.state.Players {
		if p.Ready && p.Stack > 0 {
			ready++
		}
	}
	if ready < t.Config.MinPlayersToStart {
		return nil
	}
	deckSrc := holdem.CryptoDeck()
	if t.nextDeck != nil {
		deckSrc = t.nextDeck
		t.nextDeck = nil
	}
	nt, evs, err := holdem.StartHand(t.state, deckSrc)
	if err != nil {
		return nil // not enough eligible seats right now; try again later
	}
	t.handID = fmt.Sprintf("%s-%d", t.ID, nt.HandNumber)
	t.handSeq = 0
	t.nextHandAt = time.Time{}
	t.commit(nt, evs)
	return nil
}

// commit applies a transition's resulting state, persists and broadcasts
// its events, resets the action timer for the new turn, schedules a bot
// decision if the new active player is a bot, and handles hand-end
// bookkeeping (inter-hand delay, bust detection, termination).
func (t *Table) commit(nt holdem.Table, evs []holdem.Event) {
	t.state = nt
	now := time.Now()

	for _, ev := range evs {
		t.handSeq++
		t.persistEvent(ev, now)
		if ev.Type == holdem.EventHandEnd {
			t.onHandEnd(ev, evs)
		}
	}

	key := struct {
		hand   int
		player holdem.PlayerID
		logLen int
	}{nt.HandNumber, nt.ActivePlayerID, len(nt.Log)}
	if nt.ActivePlayerID == "" {
		t.deadline = time.Time{}
	} else if key.hand != t.turnHand || key.player != t.turnPlayer || key.logLen != t.turnLogLen {
		t.turnHand, t.turnPlayer, t.turnLogLen = key.hand, key.player, key.logLen
		t.deadline = now.Add(t.Config.ActionTimeout)
		t.warned50, t.warned80 = false, false
		t.scheduleBotIfActive()
	}

	t.broadcastTransition(evs)
	t.updateEmptySinceLocked(now)
}

func (t *Table) onHandEnd(ev holdem.Event, batch []holdem.Event) {
	t.nextHandAt = time.Now().Add(t.Config.HandDelay)
	// Freeze this hand's final state so a `delayed`-visibility spectator
	// keeps seeing it (spec.md §4.3 "previous completed hand's final
	// view") once the next StartHand resets Community/Hole in t.state.
	frozen := t.state
	t.lastCompletedHand = &frozen
	for _, hook := range t.handEndHooks {
		hook(t.state, batch)
	}
	if t.persist.OnHandEnd != nil {
		handID := t.handID
		events := append([]holdem.Event(nil), batch...)
		final := t.state
		go t.persist.OnHandEnd(handID, events, final)
	}

	withChips := 0
	for _, p := range t.state.Players {
		if p.Stack > 0 {
			withChips++
		}
	}
	if withChips < t.Config.MinPlayersToStart {
		t.stopLocked("completed")
	}
}

func (t *Table) persistEvent(ev holdem.Event, now time.Time) {
	if t.persist.AppendLiveEvent == nil {
		return
	}
	encoded, err := json.Marshal(ev.Payload)
	if err != nil {
		log.Printf("[Table %s] encode event %s for persistence: %v", t.ID, ev.Type, err)
		return
	}
	handID, seq := t.handID, t.handSeq
	go t.persist.AppendLiveEvent(handID, seq, string(ev.Type), now.UnixMilli(), encoded)
}

// tick runs the wall-clock side of the table: action-timer warnings and
// default-action timeout, and opportunistic hand starts once the
// inter-hand delay has elapsed.
func (t *Table) tick() {
	if t.closed {
		return
	}
	if t.state.ActivePlayerID != "" && !t.deadline.IsZero() {
		t.checkActionTimer()
	}
	if err := t.tryStartHand(); err != nil {
		log.Printf("[Table %s] start hand: %v", t.ID, err)
	}
}

func (t *Table) checkActionTimer() {
	now := time.Now()
	remaining := t.deadline.Sub(now)
	total := t.Config.ActionTimeout

	if remaining <= 0 {
		t.applyTimeout()
		return
	}
	if !t.warned80 && remaining <= total/5 {
		t.warned80 = true
		t.sendTimeWarning(t.state.ActivePlayerID, remaining)
	} else if !t.warned50 && remaining <= total/2 {
		t.warned50 = true
		t.sendTimeWarning(t.state.ActivePlayerID, remaining)
	}
}

// applyTimeout synthesizes a default action for the player who let the
// clock run out: CHECK if legal, otherwise FOLD (spec.md §4.2).
func (t *Table) applyTimeout() {
	id := t.state.ActivePlayerID
	opts := holdem.LegalActions(t.state)
	action := holdem.ActionFold
	var amount int64
	if opt, ok := holdem.HasAction(opts, holdem.ActionCheck); ok {
		action = opt.Action
	}
	nt, evs, err := holdem.ProcessAction(t.state, id, action, amount)
	if err != nil {
		log.Printf("[Table %s] timeout default action for %s: %v", t.ID, id, err)
		return
	}
	timeoutEv := holdem.Event{Type: holdem.EventPlayerTimeout, Payload: holdem.PlayerTimeoutPayload{
		PlayerID: id, Seat: t.state.SeatOf(id), Forced: action,
	}}
	t.commit(nt, append([]holdem.Event{timeoutEv}, evs...))
}

func (t *Table) sendTimeWarning(id holdem.PlayerID, remaining time.Duration) {
	if t.send == nil {
		return
	}
	frame, err := protocol.Encode(protocol.ActionTimeWarning, protocol.TimeWarningPayload{RemainingMs: remaining.Milliseconds()})
	if err != nil {
		return
	}
	t.send(id, frame)
}

// --- NPC scheduling ---

func (t *Table) scheduleBotIfActive() {
	if t.npcManager == nil {
		return
	}
	id := t.state.ActivePlayerID
	if id == "" || !t.npcManager.IsBot(id) {
		return
	}
	key := struct {
		hand   int
		player holdem.PlayerID
		logLen int
	}{t.turnHand, t.turnPlayer, t.turnLogLen}
	delay := t.npcManager.ThinkDelay(id)
	time.AfterFunc(delay, func() {
		t.mu.Lock()
		stillCurrent := !t.closed && t.state.ActivePlayerID == id &&
			t.state.HandNumber == key.hand && len(t.state.Log) == key.logLen
		t.mu.Unlock()
		if !stillCurrent {
			return
		}
		t.actBot(id)
	})
}

func (t *Table) actBot(id holdem.PlayerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.state.ActivePlayerID != id {
		return
	}
	opts := holdem.LegalActions(t.state)
	legal := make([]holdem.ActionType, len(opts))
	var minRaise int64
	for i, o := range opts {
		legal[i] = o.Action
		if o.Action == holdem.ActionRaise {
			minRaise = o.MinAmount
		}
	}
	view := npc.BuildView(t.state, id, legal, minRaise)
	decision := t.npcManager.Decide(id, view)
	nt, evs, err := holdem.ProcessAction(t.state, id, decision.Action, decision.Amount)
	if err != nil {
		log.Printf("[Table %s] bot %s decision rejected: %v", t.ID, id, err)
		nt, evs, err = holdem.ProcessAction(t.state, id, holdem.ActionFold, 0)
		if err != nil {
			return
		}
	}
	t.commit(nt, evs)
}

// --- broadcast ---

func (t *Table) broadcastTransition(evs []holdem.Event) {
	if t.send == nil || len(evs) == 0 {
		return
	}
	for id, ve := range t.viewers {
		for _, ev := range evs {
			// A player's own PLAYER_CONNECTED goes only to the other
			// viewers; the reconnecting player gets SendReconnectView.
			if p, ok := ev.Payload.(holdem.PlayerConnectedPayload); ok && ev.Type == holdem.EventPlayerConnected && p.PlayerID == id {
				continue
			}
			gameState := session.BuildView(t.ID, t.state, ve.viewer, t.lastCompletedHand)
			payload := protocol.GameStatePayload{
				GameState: gameState,
				Event:     session.BuildEventView(t.state, ev, ve.viewer),
			}
			if ve.viewer.IsPlayer && ve.viewer.PlayerID == t.state.ActivePlayerID {
				payload.ActionRequest = t.buildActionRequest()
			}
			frame, err := protocol.Encode(protocol.ActionGameState, payload)
			if err != nil {
				log.Printf("[Table %s] encode gameState for %s: %v", t.ID, id, err)
				continue
			}
			t.send(id, frame)
		}
	}
}

func (t *Table) buildActionRequest() *protocol.ActionRequest {
	opts := holdem.LegalActions(t.state)
	out := &protocol.ActionRequest{DeadlineMs: time.Until(t.deadline).Milliseconds()}
	for _, o := range opts {
		out.LegalActions = append(out.LegalActions, protocol.ActionOption{
			Type: o.Action.String(), MinAmount: o.MinAmount, MaxAmount: o.MaxAmount,
		})
	}
	return out
}

// SendReconnectView sends id a one-off synthesized gameState: the full
// current view plus a synthetic PLAYER_JOINED event, giving a
// reconnecting seated player a clean resync point without replaying the
// mid-street events it missed (spec.md §4.3 "never a mid-street event
// which would imply animation"). A no-op for spectators and unknown
// viewers.
func (t *Table) SendReconnectView(id holdem.PlayerID) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.send == nil {
		return
	}
	ve, ok := t.viewers[id]
	if !ok || !ve.viewer.IsPlayer {
		return
	}

	syntheticEv := holdem.Event{
		Type:    holdem.EventPlayerJoined,
		Payload: holdem.PlayerJoinedPayload{PlayerID: id, Seat: t.state.SeatOf(id)},
	}
	payload := protocol.GameStatePayload{
		GameState: session.BuildView(t.ID, t.state, ve.viewer, t.lastCompletedHand),
		Event:     session.BuildEventView(t.state, syntheticEv, ve.viewer),
	}
	if id == t.state.ActivePlayerID {
		payload.ActionRequest = t.buildActionRequest()
	}
	frame, err := protocol.Encode(protocol.ActionGameState, payload)
	if err != nil {
		log.Printf("[Table %s] encode reconnect view for %s: %v", t.ID, id, err)
		return
	}
	t.send(id, frame)
}

func (t *Table) updateEmptySinceLocked(now time.Time) {
	if len(t.viewers) > 0 {
		t.emptySince = time.Time{}
		return
	}
	if t.emptySince.IsZero() {
		t.emptySince = now
	}
}

// --- lifecycle ---

func (t *Table) stopLocked(reason string) {
	if t.closed {
		return
	}
	t.closed = true
	t.reason = reason
	t.broadcastGameOver(reason)
	t.stop.Do(func() { close(t.done) })
}

func (t *Table) broadcastGameOver(reason string) {
	if t.send == nil {
		return
	}
	payload := protocol.GameOverPayload{GameID: t.ID, Reason: reason}
	for _, p := range t.state.Players {
		payload.Standings = append(payload.Standings, protocol.StandingEntry{PlayerID: string(p.ID), Stack: p.Stack})
	}
	frame, err := protocol.Encode(protocol.ActionGameOver, payload)
	if err != nil {
		return
	}
	for id := range t.viewers {
		t.send(id, frame)
	}
}

// Stop shuts down the table's actor and flushes a gameOver broadcast.
func (t *Table) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked("shutdown")
}

// IsClosed reports whether the table has stopped.
func (t *Table) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// IsIdleFor reports whether the table has had zero viewers for at least
// ttl, used by the lobby to reap abandoned tables.
func (t *Table) IsIdleFor(ttl time.Duration) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return true
	}
	if len(t.viewers) > 0 || t.emptySince.IsZero() {
		return false
	}
	return time.Since(t.emptySince) >= ttl
}

// Snapshot returns a copy of the current engine state.
func (t *Table) Snapshot() holdem.Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// PlayerCount returns the number of seated players (not spectators).
func (t *Table) PlayerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.state.Players)
}

// Viewers returns every identity currently attached to this table,
// seated or spectating, for fan-out of table-wide messages like chat.
func (t *Table) Viewers() []holdem.PlayerID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]holdem.PlayerID, 0, len(t.viewers))
	for id := range t.viewers {
		out = append(out, id)
	}
	return out
}

// BotCount returns how many seated players are bots.
func (t *Table) BotCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.npcManager == nil {
		return 0
	}
	n := 0
	for id := range t.state.Players {
		if t.npcManager.IsBot(id) {
			n++
		}
	}
	return n
}

// SetNextDeckSource injects a DeckSource consumed exactly once by the
// next StartHand (spec.md §4.2 deterministic replay hook for tests).
func (t *Table) SetNextDeckSource(src holdem.DeckSource) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextDeck = src
}

// AddHandEndHook registers a callback invoked with every hand's final
// state and full transition batch right after HAND_END.
func (t *Table) AddHandEndHook(hook HandEndHook) {
	if hook == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handEndHooks = append(t.handEndHooks, hook)
}
