package admin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"holdem-lite/holdem/npc"
	"holdem-lite/internal/lobby"
	"holdem-lite/internal/protocol"
	"holdem-lite/internal/table"
)

// fakeLobby stubs the Lobby interface so the handler can be exercised
// without standing up a real table registry.
type fakeLobby struct {
	tables      []protocol.GameSummary
	createErr   error
	deleteErr   error
	forceErr    error
	addBotErr   error
	lastOpts    lobby.CreateTableOptions
	lastDeleted string
	lastForced  string
	lastBotAt   string
	lastPersona *npc.NPCPersona
	lastBuyIn   int64
}

func (f *fakeLobby) ListTables() []protocol.GameSummary { return f.tables }

func (f *fakeLobby) CreateTable(opts lobby.CreateTableOptions) (*table.Table, error) {
	f.lastOpts = opts
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := opts.ID
	if id == "" {
		id = "generated-id"
	}
	return &table.Table{ID: id}, nil
}

func (f *fakeLobby) DeleteTable(id string) error {
	f.lastDeleted = id
	return f.deleteErr
}

func (f *fakeLobby) ForceStart(id string) error {
	f.lastForced = id
	return f.forceErr
}

func (f *fakeLobby) AddBot(id string, persona *npc.NPCPersona, buyIn int64) error {
	f.lastBotAt = id
	f.lastPersona = persona
	f.lastBuyIn = buyIn
	return f.addBotErr
}

func (f *fakeLobby) GetTable(id string) (*table.Table, bool) { return nil, false }

type fakeRegistry struct {
	personas map[string]*npc.NPCPersona
}

func (r *fakeRegistry) Get(id string) *npc.NPCPersona { return r.personas[id] }

func TestHandleTables_ListAndCreate(t *testing.T) {
	fl := &fakeLobby{tables: []protocol.GameSummary{{GameID: "t1", Players: 2}}}
	h := NewHTTPHandler(fl, &fakeRegistry{})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/tables", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"t1"`) {
		t.Fatalf("expected table listing in body, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	body := strings.NewReader(`{"id":"t2","autoFillBots":1}`)
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/tables", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if fl.lastOpts.ID != "t2" || fl.lastOpts.AutoFillBots != 1 {
		t.Fatalf("expected CreateTable called with id=t2 autoFillBots=1, got %+v", fl.lastOpts)
	}
}

func TestHandleTables_CreateConflict(t *testing.T) {
	fl := &fakeLobby{createErr: errConflict}
	h := NewHTTPHandler(fl, &fakeRegistry{})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"id":"dup"}`)
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/tables", body))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleTableByID_Delete(t *testing.T) {
	fl := &fakeLobby{}
	h := NewHTTPHandler(fl, &fakeRegistry{})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/tables/t1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if fl.lastDeleted != "t1" {
		t.Fatalf("expected DeleteTable(t1), got %q", fl.lastDeleted)
	}
}

func TestHandleTableByID_ForceStart(t *testing.T) {
	fl := &fakeLobby{}
	h := NewHTTPHandler(fl, &fakeRegistry{})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/tables/t1/force-start", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if fl.lastForced != "t1" {
		t.Fatalf("expected ForceStart(t1), got %q", fl.lastForced)
	}
}

func TestHandleTableByID_AddBot(t *testing.T) {
	persona := &npc.NPCPersona{ID: "grinder", Name: "The Grinder"}
	fl := &fakeLobby{}
	h := NewHTTPHandler(fl, &fakeRegistry{personas: map[string]*npc.NPCPersona{"grinder": persona}})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"personaId":"grinder","buyIn":20000}`)
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/tables/t1/bots", body))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if fl.lastBotAt != "t1" || fl.lastPersona != persona || fl.lastBuyIn != 20000 {
		t.Fatalf("unexpected AddBot call: at=%s persona=%v buyIn=%d", fl.lastBotAt, fl.lastPersona, fl.lastBuyIn)
	}
}

func TestHandleTableByID_UnknownAction(t *testing.T) {
	fl := &fakeLobby{}
	h := NewHTTPHandler(fl, &fakeRegistry{})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/tables/t1/nonsense", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

var errConflict = &stubError{"table already exists"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }
