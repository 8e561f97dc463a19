// Package admin exposes lobby.Lobby's table-management methods over
// HTTP: list, create, delete, force-start, add-bot. It mirrors the
// auth/ledger handlers' style (plain http.ServeMux, no framework,
// request structs decoded with DisallowUnknownFields) rather than
// introducing a second HTTP idiom for one more collaborator.
package admin

import (
	"encoding/json"
	"net/http"
	"strings"

	"holdem-lite/holdem/npc"
	"holdem-lite/internal/lobby"
	"holdem-lite/internal/protocol"
	"holdem-lite/internal/table"
)

// Lobby is the subset of *lobby.Lobby this handler depends on, so a
// test can fake it without standing up a real table registry.
type Lobby interface {
	ListTables() []protocol.GameSummary
	CreateTable(opts lobby.CreateTableOptions) (*table.Table, error)
	DeleteTable(id string) error
	ForceStart(id string) error
	AddBot(id string, persona *npc.NPCPersona, buyIn int64) error
	GetTable(id string) (*table.Table, bool)
}

// Registry is the subset of *npc.PersonaRegistry the add-bot endpoint
// needs to resolve a persona by ID.
type Registry interface {
	Get(id string) *npc.NPCPersona
}

type HTTPHandler struct {
	lobby    Lobby
	registry Registry
}

func NewHTTPHandler(l Lobby, registry Registry) *HTTPHandler {
	return &HTTPHandler{lobby: l, registry: registry}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/admin/tables", h.handleTables)
	mux.HandleFunc("/api/admin/tables/", h.handleTableByID)
}

type createTableRequest struct {
	ID           string `json:"id"`
	MaxSeats     int    `json:"maxSeats"`
	SmallBlind   int64  `json:"smallBlind"`
	BigBlind     int64  `json:"bigBlind"`
	BuyIn        int64  `json:"buyIn"`
	AutoFillBots int    `json:"autoFillBots"`
}

type tableListResponse struct {
	Tables []protocol.GameSummary `json:"tables"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleTables serves GET (list) and POST (create) on /api/admin/tables.
func (h *HTTPHandler) handleTables(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, tableListResponse{Tables: h.lobby.ListTables()})
	case http.MethodPost:
		h.handleCreateTable(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *HTTPHandler) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var cfg table.Config
	if req.MaxSeats > 0 {
		cfg.MaxSeats = req.MaxSeats
		cfg.SmallBlind = req.SmallBlind
		cfg.BigBlind = req.BigBlind
		cfg.StartingStack = req.BuyIn
	}

	t, err := h.lobby.CreateTable(lobby.CreateTableOptions{
		ID:           req.ID,
		Config:       cfg,
		AutoFillBots: req.AutoFillBots,
	})
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, protocol.GameSummary{GameID: t.ID})
}

// handleTableByID routes the /api/admin/tables/{id}[/action] tree:
// DELETE removes a table; POST .../force-start and .../bots act on it.
func (h *HTTPHandler) handleTableByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/tables/")
	id, action, hasAction := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "table id required")
		return
	}

	if !hasAction {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := h.lobby.DeleteTable(id); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch action {
	case "force-start":
		h.handleForceStart(w, id)
	case "bots":
		h.handleAddBot(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "unknown table action")
	}
}

func (h *HTTPHandler) handleForceStart(w http.ResponseWriter, id string) {
	if err := h.lobby.ForceStart(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addBotRequest struct {
	PersonaID string `json:"personaId"`
	BuyIn     int64  `json:"buyIn"`
}

func (h *HTTPHandler) handleAddBot(w http.ResponseWriter, r *http.Request, id string) {
	var req addBotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	persona := h.registry.Get(req.PersonaID)
	if persona == nil {
		writeError(w, http.StatusNotFound, "unknown persona id")
		return
	}
	if err := h.lobby.AddBot(id, persona, req.BuyIn); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
