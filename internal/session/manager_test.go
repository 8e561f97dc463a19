package session

import "testing"

func TestIdentify_MintsNewIdentityWithoutToken(t *testing.T) {
	m := NewManager()

	sess, token, previousConnID, err := m.Identify("alice", "", "conn1")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if sess.PlayerID == "" {
		t.Fatalf("expected a minted player id")
	}
	if sess.DisplayName != "alice" {
		t.Fatalf("expected display name alice, got %q", sess.DisplayName)
	}
	if token == "" {
		t.Fatalf("expected a reconnect token")
	}
	if previousConnID != "" {
		t.Fatalf("expected no previous connection for a brand new identity")
	}
}

func TestIdentify_ValidTokenRotatesAndRebinds(t *testing.T) {
	m := NewManager()

	first, firstToken, _, err := m.Identify("alice", "", "conn1")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}

	second, secondToken, previousConnID, err := m.Identify("", firstToken, "conn2")
	if err != nil {
		t.Fatalf("Identify with valid token: %v", err)
	}
	if second.PlayerID != first.PlayerID {
		t.Fatalf("expected same player id across reconnect, got %s and %s", first.PlayerID, second.PlayerID)
	}
	if previousConnID != "conn1" {
		t.Fatalf("expected previous conn id conn1, got %q", previousConnID)
	}
	if second.ConnID != "conn2" {
		t.Fatalf("expected session rebound to conn2, got %q", second.ConnID)
	}
	if secondToken == firstToken {
		t.Fatalf("expected token to rotate on use")
	}

	// The consumed token must not work a second time.
	if _, _, _, err := m.Identify("", firstToken, "conn3"); err == nil {
		t.Fatalf("expected reusing a consumed token to fail")
	}
}

func TestIdentify_UnknownTokenReturnsSentinelError(t *testing.T) {
	m := NewManager()

	_, _, _, err := m.Identify("alice", "not-a-real-token", "conn1")
	if err == nil {
		t.Fatalf("expected an error for an unknown reconnect token")
	}
	if err != ErrInvalidReconnectToken {
		t.Fatalf("expected ErrInvalidReconnectToken, got %v", err)
	}
}

func TestIdentify_DiscardsStaleSpectatorGameOnReconnect(t *testing.T) {
	m := NewManager()

	sess, token, _, err := m.Identify("alice", "", "conn1")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	m.SetGame(sess.PlayerID, "table1", RoleSpectator)

	reconnected, _, _, err := m.Identify("", token, "conn2")
	if err != nil {
		t.Fatalf("Identify with valid token: %v", err)
	}
	if reconnected.GameID != "" {
		t.Fatalf("expected stale spectator session's game to be discarded, got %q", reconnected.GameID)
	}
}

func TestIdentify_RetainsSeatedPlayerGameOnReconnect(t *testing.T) {
	m := NewManager()

	sess, token, _, err := m.Identify("alice", "", "conn1")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	m.SetGame(sess.PlayerID, "table1", RolePlayer)

	reconnected, _, _, err := m.Identify("", token, "conn2")
	if err != nil {
		t.Fatalf("Identify with valid token: %v", err)
	}
	if reconnected.GameID != "table1" {
		t.Fatalf("expected a seated player's game to survive reconnect, got %q", reconnected.GameID)
	}
}

func TestSetGame_ClearsWithEmptyGameID(t *testing.T) {
	m := NewManager()
	sess, _, _, err := m.Identify("alice", "", "conn1")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	m.SetGame(sess.PlayerID, "table1", RolePlayer)
	m.SetGame(sess.PlayerID, "", "")

	got, ok := m.Get(sess.PlayerID)
	if !ok {
		t.Fatalf("expected session to still exist")
	}
	if got.GameID != "" {
		t.Fatalf("expected game id cleared, got %q", got.GameID)
	}
}

func TestRemove_DropsSession(t *testing.T) {
	m := NewManager()
	sess, _, _, err := m.Identify("alice", "", "conn1")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	m.Remove(sess.PlayerID)
	if _, ok := m.Get(sess.PlayerID); ok {
		t.Fatalf("expected session to be gone after Remove")
	}
}
