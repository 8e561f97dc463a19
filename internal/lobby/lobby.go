// Package lobby is the table registry: it creates and tears down tables,
// and exposes the stable in-process interface an admin HTTP layer sits
// on top of (spec.md §6.5: list/create/delete, force-start, add-bot).
// It never touches engine state directly — every table operation goes
// through table.Table's own actor, same as a client connection would.
package lobby

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/google/uuid"

	"holdem-lite/holdem"
	"holdem-lite/holdem/npc"
	"holdem-lite/internal/ledger"
	"holdem-lite/internal/protocol"
	"holdem-lite/internal/table"
)

const (
	defaultIdleTableTTL    = 60 * time.Second
	defaultCleanupInterval = 30 * time.Second

	// summaryCacheSize bounds the listGames/admin-listing summary cache.
	// A few thousand entries comfortably covers any deployment this
	// in-process lobby is sized for.
	summaryCacheSize = 4096
)

// cachedSummary pairs a computed protocol.GameSummary with the table's
// event-log length at the time it was built. Table.Log only grows when
// something observable changes, so comparing lengths is a free staleness
// check: if the table hasn't logged a new event, the summary is still
// accurate and ListTables can skip recomputing it.
type cachedSummary struct {
	logLen  int
	summary protocol.GameSummary
}

// Lobby tracks every active table and periodically reaps idle ones.
type Lobby struct {
	mu     sync.RWMutex
	tables map[string]*table.Table

	defaultConfig table.Config
	send          func(id holdem.PlayerID, data []byte)

	idleTableTTL    time.Duration
	cleanupInterval time.Duration
	done            chan struct{}
	stopOnce        sync.Once

	ledgerSvc  ledger.Service
	npcManager *npc.Manager
	rng        *rand.Rand

	summaries *lru.Cache[string, cachedSummary]
}

// New creates a lobby. send delivers an encoded wire frame to one
// viewer; every table created here is wired to the same send func so
// the gateway only needs one connection registry for the whole server.
func New(send func(id holdem.PlayerID, data []byte), ledgerSvc ledger.Service, npcMgr *npc.Manager) *Lobby {
	summaries, err := lru.New[string, cachedSummary](summaryCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which summaryCacheSize never is.
		panic(err)
	}
	l := &Lobby{
		tables:    make(map[string]*table.Table),
		summaries: summaries,
		defaultConfig: table.Config{
			Config: holdem.Config{
				MaxSeats:      6,
				SmallBlind:    50,
				BigBlind:      100,
				StartingStack: 20000,
			},
		},
		send:            send,
		idleTableTTL:    defaultIdleTableTTL,
		cleanupInterval: defaultCleanupInterval,
		done:            make(chan struct{}),
		ledgerSvc:       ledgerSvc,
		npcManager:      npcMgr,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	go l.cleanupLoop()
	return l
}

// CreateTableOptions parameterizes CreateTable. AutoFillBots seats that
// many bots immediately; 0 leaves the table empty (spec.md's default —
// NPC seat-filling is an explicit admin choice, not always-on).
type CreateTableOptions struct {
	ID           string
	Config       table.Config
	AutoFillBots int
}

// CreateTable registers a new table (spec.md §6.5 "create").
func (l *Lobby) CreateTable(opts CreateTableOptions) (*table.Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := opts.Config
	if cfg.MaxSeats == 0 {
		cfg = l.defaultConfig
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := l.tables[id]; exists {
		return nil, fmt.Errorf("table %s already exists", id)
	}

	t := table.New(id, cfg, l.send, l.persistenceHooks(), l.npcManager)
	l.tables[id] = t

	if opts.AutoFillBots > 0 {
		l.fillTableWithBots(t, cfg, opts.AutoFillBots)
	}

	log.Printf("[Lobby] created table %s (autoFillBots=%d)", id, opts.AutoFillBots)
	return t, nil
}

// persistenceHooks wires a freshly created table's transitions into the
// ledger. AppendLiveEvent forwards straight through since table.go's
// hook signature was designed to match ledger.Service's exactly; OnHandEnd
// is left unset here because crediting a hand to a durable user_id
// requires the per-connection auth mapping the gateway owns, not the
// lobby. Nothing else sets OnHandEnd either, so no per-user hand history
// is written for live tables.
func (l *Lobby) persistenceHooks() table.PersistenceHooks {
	if l.ledgerSvc == nil {
		return table.PersistenceHooks{}
	}
	return table.PersistenceHooks{
		AppendLiveEvent: l.ledgerSvc.AppendLiveEvent,
	}
}

// fillTableWithBots seats up to n bots at empty seats, shuffling persona
// choice for variety across tables.
func (l *Lobby) fillTableWithBots(t *table.Table, cfg table.Config, n int) {
	if l.npcManager == nil {
		return
	}
	personas := l.npcManager.Registry().All()
	if len(personas) == 0 {
		return
	}
	shuffled := make([]*npc.NPCPersona, len(personas))
	copy(shuffled, personas)
	l.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	buyIn := cfg.StartingStack
	seated := 0
	for i := 0; seated < n && i < cfg.MaxSeats; i++ {
		persona := shuffled[i%len(shuffled)]
		if err := t.SubmitEvent(table.Event{Type: table.EventAddBot, Persona: persona, BuyIn: buyIn}); err != nil {
			log.Printf("[Lobby] add-bot %s on table %s: %v", persona.Name, t.ID, err)
			continue
		}
		seated++
	}
}

// DeleteTable stops and removes a table (spec.md §6.5 "delete").
func (l *Lobby) DeleteTable(id string) error {
	l.mu.Lock()
	t, ok := l.tables[id]
	if ok {
		delete(l.tables, id)
	}
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("table %s not found", id)
	}
	t.Stop()
	l.summaries.Remove(id)
	return nil
}

// ForceStart marks every seated player ready and starts a hand
// immediately regardless of actual readiness (spec.md §6.5 "force-start
// treats all seated players as ready").
func (l *Lobby) ForceStart(id string) error {
	t, ok := l.GetTable(id)
	if !ok {
		return fmt.Errorf("table %s not found", id)
	}
	for pid := range t.Snapshot().Players {
		if err := t.SubmitEvent(table.Event{Type: table.EventSetReady, PlayerID: pid, Ready: true}); err != nil {
			return err
		}
	}
	return t.SubmitEvent(table.Event{Type: table.EventStartHand})
}

// AddBot seats one bot at an existing table (spec.md §6.5 "add-bot").
func (l *Lobby) AddBot(id string, persona *npc.NPCPersona, buyIn int64) error {
	t, ok := l.GetTable(id)
	if !ok {
		return fmt.Errorf("table %s not found", id)
	}
	return t.SubmitEvent(table.Event{Type: table.EventAddBot, Persona: persona, BuyIn: buyIn})
}

// GetTable looks up a table by ID.
func (l *Lobby) GetTable(id string) (*table.Table, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tables[id]
	return t, ok
}

// ListTables returns a lightweight summary of every active table, ready
// to serve a `listGames` reply (spec.md §6.2).
func (l *Lobby) ListTables() []protocol.GameSummary {
	l.mu.RLock()
	tables := make([]*table.Table, 0, len(l.tables))
	for _, t := range l.tables {
		tables = append(tables, t)
	}
	l.mu.RUnlock()

	out := make([]protocol.GameSummary, 0, len(tables))
	for _, t := range tables {
		if t.IsClosed() {
			l.summaries.Remove(t.ID)
			continue
		}
		out = append(out, l.summaryFor(t))
	}
	return out
}

// summaryFor returns t's GameSummary, reusing the cached one if the
// table's event log hasn't grown since it was built. A poll-heavy admin
// dashboard hitting listGames/ListTables repeatedly then costs one map
// lookup per idle table instead of a fresh Snapshot + field walk.
func (l *Lobby) summaryFor(t *table.Table) protocol.GameSummary {
	snap := t.Snapshot()
	logLen := len(snap.Log)

	if cached, ok := l.summaries.Get(t.ID); ok && cached.logLen == logLen {
		return cached.summary
	}

	summary := protocol.GameSummary{
		GameID:     t.ID,
		Players:    t.PlayerCount(),
		MaxSeats:   snap.MaxSeats,
		BotCount:   t.BotCount(),
		SmallBlind: snap.SmallBlind,
		BigBlind:   snap.BigBlind,
	}
	l.summaries.Add(t.ID, cachedSummary{logLen: logLen, summary: summary})
	return summary
}

func (l *Lobby) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.CleanupIdleTables()
		case <-l.done:
			return
		}
	}
}

// CleanupIdleTables removes closed tables and tables with zero viewers
// for longer than idleTableTTL.
func (l *Lobby) CleanupIdleTables() int {
	l.mu.Lock()
	idle := make([]*table.Table, 0)
	for id, t := range l.tables {
		if t.IsClosed() || t.IsIdleFor(l.idleTableTTL) {
			delete(l.tables, id)
			idle = append(idle, t)
		}
	}
	l.mu.Unlock()

	for _, t := range idle {
		t.Stop()
		l.summaries.Remove(t.ID)
		log.Printf("[Lobby] removed idle/closed table %s", t.ID)
	}
	return len(idle)
}

// Stop shuts down lobby housekeeping and every remaining table.
func (l *Lobby) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)

		l.mu.Lock()
		tables := make([]*table.Table, 0, len(l.tables))
		for _, t := range l.tables {
			tables = append(tables, t)
		}
		l.tables = make(map[string]*table.Table)
		l.mu.Unlock()

		for _, t := range tables {
			t.Stop()
		}
	})
}
