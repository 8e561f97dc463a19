// Package gateway is the WebSocket transport: it terminates connections,
// decodes the JSON envelope (spec.md §6.1/§6.4), and translates each
// client action into an event handed to the owning table's actor. It
// never touches engine state directly.
package gateway

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"holdem-lite/holdem"
	"holdem-lite/internal/lobby"
	"holdem-lite/internal/protocol"
	"holdem-lite/internal/session"
	"holdem-lite/internal/table"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	readLimit  = 65536
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Connection is one WebSocket client. It is unidentified (PlayerID =="")
// until the client sends `identify` (spec.md §4.4 "NOT_IDENTIFIED gate").
type Connection struct {
	ID       string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time

	PlayerID holdem.PlayerID
	GameID   string
	Table    *table.Table
}

// Gateway owns every live connection and dispatches to the Lobby.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	byPlayer    map[holdem.PlayerID]*Connection
	nextConnID  uint64

	sessions *session.Manager
	lobby    *lobby.Lobby
}

// New creates a Gateway with no lobby attached yet. The lobby needs this
// Gateway's Send method to construct tables, and this Gateway needs the
// lobby to resolve joinGame/listGames — SetLobby breaks that cycle; call
// it once, right after lobby.New(gw.Send, ...).
func New(sessions *session.Manager) *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
		byPlayer:    make(map[holdem.PlayerID]*Connection),
		sessions:    sessions,
	}
}

// SetLobby attaches the lobby this gateway dispatches joinGame/listGames
// to. Must be called before serving any connection.
func (g *Gateway) SetLobby(lby *lobby.Lobby) {
	g.lobby = lby
}

// Send delivers an already-encoded frame to one player, dropping it if
// that player has no live connection or its send buffer is full (spec.md
// §5 "broadcast is best-effort, partial failures logged and non-
// blocking").
func (g *Gateway) Send(id holdem.PlayerID, data []byte) {
	g.mu.RLock()
	c := g.byPlayer[id]
	g.mu.RUnlock()
	if c == nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("[Gateway] send buffer full for player %s, dropping frame", id)
	}
}

// HandleWebSocket upgrades the request and starts the connection's pumps.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	connID := fmt.Sprintf("conn_%d", g.nextConnID)
	c := &Connection{
		ID:       connID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Gateway:  g,
		LastPing: time.Now(),
	}
	g.connections[connID] = c
	g.mu.Unlock()

	log.Printf("[Gateway] client connected: %s, total: %d", connID, len(g.connections))

	go c.writePump()
	go c.readPump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] read error: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.handleMessage(message)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		c.sendError(protocol.ErrInvalidMessage, err.Error())
		return
	}

	if env.Action != protocol.ActionIdentify && c.PlayerID == "" {
		c.sendError(protocol.ErrNotIdentified, "identify before sending "+env.Action)
		return
	}

	switch env.Action {
	case protocol.ActionIdentify:
		c.handleIdentify(env.Payload)
	case protocol.ActionListGames:
		c.handleListGames()
	case protocol.ActionJoinGame:
		c.handleJoinGame(env.Payload)
	case protocol.ActionReady:
		c.handleReady()
	case protocol.ActionPlayerAction:
		c.handlePlayerAction(env.Payload)
	case protocol.ActionRevealCards:
		c.handleRevealCards(env.Payload)
	case protocol.ActionChat:
		c.handleChat(env.Payload)
	case protocol.ActionLeaveGame:
		c.handleLeaveGame()
	default:
		c.sendError(protocol.ErrInvalidMessage, "unknown action "+env.Action)
	}
}

func (c *Connection) handleIdentify(raw []byte) {
	var req protocol.IdentifyPayload
	if err := json.Unmarshal(raw, &req); err != nil || strings.TrimSpace(req.DisplayName) == "" {
		c.sendError(protocol.ErrInvalidMessage, "displayName is required")
		return
	}

	sess, token, previousConnID, err := c.Gateway.sessions.Identify(req.DisplayName, req.ReconnectToken, c.ID)
	if err != nil {
		c.sendError(protocol.ErrInvalidMessage, err.Error())
		return
	}

	if sess.GameID == "" && c.Table != nil {
		// The session no longer names a table (a reconnecting spectator's
		// attachment is discarded), so detach this connection from it.
		c.Table.SubmitEvent(table.Event{Type: table.EventLeave, PlayerID: c.PlayerID})
		c.Table = nil
		c.GameID = ""
	}

	c.PlayerID = sess.PlayerID
	c.Gateway.bindPlayer(sess.PlayerID, c)
	if previousConnID != "" && previousConnID != c.ID {
		c.Gateway.closeConnection(previousConnID)
	}

	if sess.GameID != "" {
		if t, ok := c.Gateway.lobby.GetTable(sess.GameID); ok {
			c.GameID = sess.GameID
			c.Table = t
			t.SubmitEvent(table.Event{Type: table.EventSetConnected, PlayerID: sess.PlayerID, Connected: true})
			t.SendReconnectView(sess.PlayerID)
		}
	}

	c.reply(protocol.ActionIdentified, protocol.IdentifiedPayload{PlayerID: string(sess.PlayerID), ReconnectToken: token})
}

func (c *Connection) handleListGames() {
	c.reply(protocol.ActionGameList, protocol.GameListPayload{Games: c.Gateway.lobby.ListTables()})
}

func (c *Connection) handleJoinGame(raw []byte) {
	var req protocol.JoinGamePayload
	if err := json.Unmarshal(raw, &req); err != nil {
		c.sendError(protocol.ErrInvalidMessage, "malformed joinGame payload")
		return
	}
	if c.GameID != "" {
		c.sendError(protocol.ErrAlreadyInGame, "already in a game")
		return
	}
	t, ok := c.Gateway.lobby.GetTable(req.GameID)
	if !ok {
		c.sendError(protocol.ErrGameNotFound, "no such game")
		return
	}

	role := req.Role
	if role != session.RoleSpectator {
		role = session.RolePlayer
	}
	buyIn := t.Snapshot().StartingStack
	sess, _ := c.Gateway.sessions.Get(c.PlayerID)
	if err := t.SubmitEvent(table.Event{Type: table.EventJoin, PlayerID: c.PlayerID, Name: sess.DisplayName, Role: role, BuyIn: buyIn}); err != nil {
		c.sendError(protocol.ErrGameFull, err.Error())
		return
	}

	c.GameID = req.GameID
	c.Table = t
	c.Gateway.sessions.SetGame(c.PlayerID, req.GameID, role)

	seat := t.Snapshot().SeatOf(c.PlayerID)
	c.reply(protocol.ActionGameJoined, protocol.GameJoinedPayload{GameID: req.GameID, Seat: seat, Role: role})
}

func (c *Connection) handleReady() {
	if c.Table == nil {
		c.sendError(protocol.ErrNotInGame, "not in a game")
		return
	}
	if err := c.Table.SubmitEvent(table.Event{Type: table.EventSetReady, PlayerID: c.PlayerID, Ready: true}); err != nil {
		c.sendError(errorCodeFor(err), err.Error())
	}
}

func (c *Connection) handlePlayerAction(raw []byte) {
	if c.Table == nil {
		c.sendError(protocol.ErrNotInGame, "not in a game")
		return
	}
	var req protocol.PlayerActionPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		c.sendError(protocol.ErrInvalidMessage, "malformed playerAction payload")
		return
	}
	action, ok := actionTypeFromWire(req.Type)
	if !ok {
		c.sendError(protocol.ErrInvalidAction, "unknown action type "+req.Type)
		return
	}
	err := c.Table.SubmitEvent(table.Event{
		Type: table.EventAction, PlayerID: c.PlayerID, HandNumber: req.HandNumber,
		Action: action, Amount: req.Amount,
	})
	if err != nil {
		c.sendError(errorCodeFor(err), err.Error())
	}
}

func (c *Connection) handleRevealCards(raw []byte) {
	if c.Table == nil {
		c.sendError(protocol.ErrNotInGame, "not in a game")
		return
	}
	var req protocol.RevealCardsPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		c.sendError(protocol.ErrInvalidMessage, "malformed revealCards payload")
		return
	}
	if err := c.Table.SubmitEvent(table.Event{Type: table.EventReveal, PlayerID: c.PlayerID, HandNumber: req.HandNumber}); err != nil {
		c.sendError(errorCodeFor(err), err.Error())
	}
}

func (c *Connection) handleChat(raw []byte) {
	if c.Table == nil {
		c.sendError(protocol.ErrNotInGame, "not in a game")
		return
	}
	var req protocol.ChatPayload
	if err := json.Unmarshal(raw, &req); err != nil || len(req.Message) == 0 || len(req.Message) > 500 {
		c.sendError(protocol.ErrInvalidMessage, "message must be 1-500 characters")
		return
	}

	role := "spectator"
	if _, isPlayer := c.Table.Snapshot().Players[c.PlayerID]; isPlayer {
		role = "player"
	}
	frame, err := protocol.Encode(protocol.ActionChatMessage, protocol.ChatMessagePayload{
		GameID: c.GameID, SenderID: string(c.PlayerID), SenderRole: role, Message: req.Message,
	})
	if err != nil {
		return
	}
	for _, id := range c.Table.Viewers() {
		c.Gateway.Send(id, frame)
	}
}

func (c *Connection) handleLeaveGame() {
	if c.Table == nil {
		return
	}
	c.Table.SubmitEvent(table.Event{Type: table.EventLeave, PlayerID: c.PlayerID})
	c.Gateway.sessions.SetGame(c.PlayerID, "", "")
	c.Table = nil
	c.GameID = ""
}

func (c *Connection) reply(action string, payload interface{}) {
	frame, err := protocol.Encode(action, payload)
	if err != nil {
		log.Printf("[Gateway] encode %s: %v", action, err)
		return
	}
	select {
	case c.Send <- frame:
	default:
	}
}

func (c *Connection) sendError(code, message string) {
	select {
	case c.Send <- protocol.EncodeError(code, message):
	default:
	}
}

func actionTypeFromWire(s string) (holdem.ActionType, bool) {
	switch s {
	case "FOLD":
		return holdem.ActionFold, true
	case "CHECK":
		return holdem.ActionCheck, true
	case "CALL":
		return holdem.ActionCall, true
	case "BET":
		return holdem.ActionBet, true
	case "RAISE":
		return holdem.ActionRaise, true
	case "ALL_IN":
		return holdem.ActionAllIn, true
	default:
		return holdem.ActionNone, false
	}
}

func errorCodeFor(err error) string {
	switch err {
	case holdem.ErrOutOfTurn:
		return protocol.ErrOutOfTurn
	case holdem.ErrInvalidAmount:
		return protocol.ErrInvalidAmount
	case table.ErrStaleHand:
		return protocol.ErrInvalidAction
	default:
		return protocol.ErrInvalidAction
	}
}

func (g *Gateway) bindPlayer(id holdem.PlayerID, c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byPlayer[id] = c
}

func (g *Gateway) closeConnection(connID string) {
	g.mu.RLock()
	stale := g.connections[connID]
	g.mu.RUnlock()
	if stale != nil {
		stale.Conn.Close()
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	if g.byPlayer[c.PlayerID] == c {
		delete(g.byPlayer, c.PlayerID)
	}
	g.mu.Unlock()

	if c.Table != nil && c.PlayerID != "" {
		c.Table.SubmitEvent(table.Event{Type: table.EventSetConnected, PlayerID: c.PlayerID, Connected: false})
	}
	log.Printf("[Gateway] client disconnected: %s, total: %d", c.ID, len(g.connections))
}
