// Command tableserver is the process entrypoint: it wires the session
// manager, gateway, lobby, ledger, auth and admin services together and
// serves the WebSocket endpoint plus the auth/ledger/admin HTTP APIs
// over one mux.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"holdem-lite/holdem/npc"
	"holdem-lite/internal/admin"
	"holdem-lite/internal/auth"
	"holdem-lite/internal/gateway"
	"holdem-lite/internal/ledger"
	"holdem-lite/internal/lobby"
	"holdem-lite/internal/session"
)

func main() {
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authSvc, authMode, err := auth.NewServiceFromEnv()
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	defer authSvc.Close()
	log.Printf("[main] auth service ready (mode=%s)", authMode)

	ledgerSvc, ledgerMode, err := ledger.NewServiceFromEnv(authMode)
	if err != nil {
		log.Fatalf("ledger service: %v", err)
	}
	log.Printf("[main] ledger service ready (mode=%s)", ledgerMode)

	registry := npc.NewRegistry()
	if path := os.Getenv("NPC_PERSONAS_FILE"); path != "" {
		if err := registry.LoadFromFile(path); err != nil {
			log.Fatalf("load NPC personas from %s: %v", path, err)
		}
		log.Printf("[main] loaded %d NPC personas from %s", registry.Count(), path)
	} else {
		log.Printf("[main] NPC_PERSONAS_FILE not set, bots are disabled")
	}
	npcMgr := npc.NewManager(registry)

	sessions := session.NewManager()
	gw := gateway.New(sessions)
	lby := lobby.New(gw.Send, ledgerSvc, npcMgr)
	gw.SetLobby(lby)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	auth.NewHTTPHandler(authSvc).RegisterRoutes(mux)
	ledger.NewHTTPHandler(authSvc, ledgerSvc).RegisterRoutes(mux)
	admin.NewHTTPHandler(lby, registry).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		log.Printf("[main] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("[main] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] http shutdown: %v", err)
	}

	// Stopping the lobby stops every table's actor, which sends its
	// viewers a gameOver frame; no final snapshot is written on the way out.
	lby.Stop()
}
