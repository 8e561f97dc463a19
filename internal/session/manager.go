package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/google/uuid"

	"holdem-lite/holdem"
)

const tokenBytes = 32

// Role values recorded against a Session's current table, so a
// reconnect can tell a seated player from a spectator apart without
// asking the table (spec.md §4.3 "stale spectator sessions are
// discarded on reconnect").
const (
	RolePlayer    = "player"
	RoleSpectator = "spectator"
)

// ErrInvalidReconnectToken is returned by Identify when a non-empty
// reconnect token doesn't resolve to a session. The caller (gateway)
// turns this into an INVALID_MESSAGE reply rather than silently
// minting a fresh identity (spec.md §4.3/§7).
var ErrInvalidReconnectToken = errors.New("invalid reconnect token")

// Session is one identified connection's durable identity: a player
// keeps the same Session (and PlayerID) across reconnects, only the
// ConnID and token change.
type Session struct {
	PlayerID    holdem.PlayerID
	DisplayName string
	ConnID      string
	GameID      string // "" when not seated anywhere
	Role        string // "player" | "spectator", meaningless when GameID == ""
}

// Manager tracks identities and single-use reconnect tokens. It is
// narrower than the teacher's auth.Manager: no password, no long-lived
// bearer semantics — a reconnect token is consumed exactly once and a
// fresh one is issued on every successful identify (spec.md §4.3).
type Manager struct {
	mu            sync.Mutex
	tokenToPlayer map[string]holdem.PlayerID
	sessions      map[holdem.PlayerID]*Session
}

func NewManager() *Manager {
	return &Manager{
		tokenToPlayer: make(map[string]holdem.PlayerID),
		sessions:      make(map[holdem.PlayerID]*Session),
	}
}

// Identify mints a new identity, or restores one from a valid reconnect
// token. It returns the resolved session, the rotated token to hand
// back to the client, and the ConnID the session was previously bound
// to (so the caller can close the stale connection — spec.md §4.3
// "the former connection, if still open, is closed").
func (m *Manager) Identify(displayName, reconnectToken, newConnID string) (sess Session, token string, previousConnID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reconnectToken != "" {
		pid, ok := m.tokenToPlayer[reconnectToken]
		if !ok {
			return Session{}, "", "", ErrInvalidReconnectToken
		}
		delete(m.tokenToPlayer, reconnectToken) // single-use
		s := m.sessions[pid]
		previousConnID = s.ConnID
		s.ConnID = newConnID
		if displayName != "" {
			s.DisplayName = displayName
		}
		if s.Role == RoleSpectator {
			// Stale spectator sessions are discarded on reconnect: the
			// client rejoins as a fresh spectator if it wants back in.
			s.GameID = ""
			s.Role = ""
		}
		token = m.mintTokenLocked(pid)
		return *s, token, previousConnID, nil
	}

	pid := holdem.PlayerID(uuid.NewString())
	s := &Session{PlayerID: pid, DisplayName: displayName, ConnID: newConnID}
	m.sessions[pid] = s
	token = m.mintTokenLocked(pid)
	return *s, token, "", nil
}

func (m *Manager) mintTokenLocked(pid holdem.PlayerID) string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	m.tokenToPlayer[token] = pid
	return token
}

// Get returns the current session state for a player.
func (m *Manager) Get(pid holdem.PlayerID) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[pid]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// SetGame records (or clears, with "") which table a session is seated
// or spectating at, and as what role.
func (m *Manager) SetGame(pid holdem.PlayerID, gameID, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[pid]; ok {
		s.GameID = gameID
		s.Role = role
	}
}

// Remove drops a session entirely. The gateway does not call it: leaveGame
// clears the session's game with SetGame instead.
func (m *Manager) Remove(pid holdem.PlayerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, pid)
}
