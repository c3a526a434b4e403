package handlers

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/4cecoder/skyrelay/models"
)

func newTestHub() *Hub {
	return NewHub(testConfig())
}

// newTestSession builds a session with no underlying connection. Everything
// the hub does to a session goes through its send queue, so registry tests
// never need a real socket.
func newTestSession(h *Hub, id string) *Session {
	s := &Session{
		id:   id,
		hub:  h,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	h.Register(s)
	return s
}

// queuedMessages drains the session's send buffer and decodes every frame.
func queuedMessages(t *testing.T, s *Session) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case data := <-s.send:
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("undecodable queued frame: %v", err)
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func messagesOfType(t *testing.T, s *Session, msgType string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range queuedMessages(t, s) {
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

func decodeSnapshot(t *testing.T, data []byte) models.SnapshotMessage {
	t.Helper()
	var snap models.SnapshotMessage
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func TestJoinPlayerDuplicateIDGetsSuffix(t *testing.T) {
	h := newTestHub()
	sA := newTestSession(h, "a")
	sB := newTestSession(h, "b")

	idA := h.JoinPlayer(sA, "pilot", "A", "jet1", "red")
	idB := h.JoinPlayer(sB, "pilot", "B", "jet1", "blue")

	if idA != "pilot" {
		t.Fatalf("first join mutated the id: %q", idA)
	}
	if !strings.HasPrefix(idB, "pilot-") || len(idB) != len("pilot")+5 {
		t.Fatalf("expected pilot-XXXX, got %q", idB)
	}

	data, count := h.Snapshot(time.Now())
	if count != 2 {
		t.Fatalf("expected 2 players, got %d", count)
	}
	snap := decodeSnapshot(t, data)
	if _, ok := snap.Players[idA]; !ok {
		t.Fatalf("snapshot missing %q", idA)
	}
	if _, ok := snap.Players[idB]; !ok {
		t.Fatalf("snapshot missing %q", idB)
	}
}

func TestJoinAnnouncedToOthersOnly(t *testing.T) {
	h := newTestHub()
	sA := newTestSession(h, "a")
	sB := newTestSession(h, "b")

	id := h.JoinPlayer(sA, "abc12", "<b>Ace</b>", "jet1", "red")

	joined := messagesOfType(t, sB, models.MsgPlayerJoined)
	if len(joined) != 1 {
		t.Fatalf("expected one player_joined on the other session, got %d", len(joined))
	}
	if joined[0]["id"] != id || joined[0]["name"] != "Ace" {
		t.Fatalf("unexpected player_joined payload: %+v", joined[0])
	}

	if own := messagesOfType(t, sA, models.MsgPlayerJoined); len(own) != 0 {
		t.Fatalf("joiner should not receive its own player_joined")
	}
}

func TestSnapshotEmptyRegistry(t *testing.T) {
	h := newTestHub()
	if data, count := h.Snapshot(time.Now()); data != nil || count != 0 {
		t.Fatalf("empty registry should produce no snapshot")
	}
}

func TestSnapshotConsistency(t *testing.T) {
	h := newTestHub()
	sA := newTestSession(h, "a")
	sB := newTestSession(h, "b")
	idA := h.JoinPlayer(sA, "abc12", "Ace", "jet1", "red")
	idB := h.JoinPlayer(sB, "def34", "Bob", "plane2", "green")

	now := time.Now()
	data, count := h.Snapshot(now)
	snap := decodeSnapshot(t, data)

	if snap.Count != count || snap.Count != len(snap.Players) {
		t.Fatalf("count %d does not match players %d", snap.Count, len(snap.Players))
	}
	if len(snap.Scores) != len(snap.Players) {
		t.Fatalf("scores keys do not match players keys")
	}
	for id := range snap.Players {
		if _, ok := snap.Scores[id]; !ok {
			t.Fatalf("score missing for %q", id)
		}
	}
	if snap.Timestamp != now.UnixMilli() {
		t.Fatalf("timestamp = %d, want %d", snap.Timestamp, now.UnixMilli())
	}

	ace := snap.Players[idA]
	if ace.Position != (models.Vec3{X: 0, Y: models.SpawnAltitude, Z: 0}) {
		t.Fatalf("spawn position = %+v", ace.Position)
	}
	if snap.Scores[idA] != 0 || snap.Scores[idB] != 0 {
		t.Fatalf("fresh players should have zero score")
	}
}

func TestAcceptHitSelfRejected(t *testing.T) {
	h := newTestHub()
	s := newTestSession(h, "a")
	id := h.JoinPlayer(s, "abc12", "Ace", "jet1", "red")

	if _, ok := h.AcceptHit(id, id); ok {
		t.Fatalf("self-hit should be rejected")
	}
	data, _ := h.Snapshot(time.Now())
	if decodeSnapshot(t, data).Scores[id] != 0 {
		t.Fatalf("self-hit should not change the score")
	}
}

func TestAcceptHitUnknownIDs(t *testing.T) {
	h := newTestHub()
	s := newTestSession(h, "a")
	id := h.JoinPlayer(s, "abc12", "Ace", "jet1", "red")

	if _, ok := h.AcceptHit(id, "ghost"); ok {
		t.Fatalf("hit on unknown target should be rejected")
	}
	if _, ok := h.AcceptHit("ghost", id); ok {
		t.Fatalf("hit from unknown shooter should be rejected")
	}
}

func TestAcceptHitCooldown(t *testing.T) {
	h := newTestHub()
	sA := newTestSession(h, "a")
	sB := newTestSession(h, "b")
	shooter := h.JoinPlayer(sA, "abc12", "Ace", "jet1", "red")
	target := h.JoinPlayer(sB, "def34", "Bob", "jet2", "blue")

	score, ok := h.AcceptHit(shooter, target)
	if !ok || score != 1 {
		t.Fatalf("first hit: score %d, ok %v", score, ok)
	}
	if _, ok := h.AcceptHit(shooter, target); ok {
		t.Fatalf("second hit inside the cooldown should be rejected")
	}

	time.Sleep(hitCooldown + 20*time.Millisecond)
	score, ok = h.AcceptHit(shooter, target)
	if !ok || score != 2 {
		t.Fatalf("hit after the cooldown: score %d, ok %v", score, ok)
	}
}

func TestRemovePlayerAnnouncesToRemaining(t *testing.T) {
	h := newTestHub()
	sA := newTestSession(h, "a")
	sB := newTestSession(h, "b")
	idA := h.JoinPlayer(sA, "abc12", "Ace", "jet1", "red")
	h.JoinPlayer(sB, "def34", "Bob", "jet2", "blue")

	name, remaining, ok := h.RemovePlayer(idA)
	if !ok || name != "Ace" || remaining != 1 {
		t.Fatalf("RemovePlayer = %q, %d, %v", name, remaining, ok)
	}

	left := messagesOfType(t, sB, models.MsgPlayerLeft)
	if len(left) != 1 || left[0]["id"] != idA {
		t.Fatalf("remaining session should see player_left for %q, got %+v", idA, left)
	}

	data, count := h.Snapshot(time.Now())
	if count != 1 {
		t.Fatalf("expected 1 player after removal, got %d", count)
	}
	if _, ok := decodeSnapshot(t, data).Players[idA]; ok {
		t.Fatalf("snapshot still contains the removed player")
	}

	if _, _, ok := h.RemovePlayer(idA); ok {
		t.Fatalf("removing twice should report not found")
	}
}

func TestReapEvictsStalePlayers(t *testing.T) {
	h := newTestHub()
	sA := newTestSession(h, "a")
	sB := newTestSession(h, "b")
	idA := h.JoinPlayer(sA, "abc12", "Ace", "jet1", "red")
	idB := h.JoinPlayer(sB, "def34", "Bob", "jet2", "blue")

	h.mu.Lock()
	h.players[idA].lastUpdate = time.Now().Add(-staleAfter - time.Second)
	h.mu.Unlock()

	evicted := h.Reap(time.Now(), staleAfter)
	if len(evicted) != 1 || evicted[0].id != idA || evicted[0].session != sA {
		t.Fatalf("unexpected evictions: %+v", evicted)
	}

	left := messagesOfType(t, sB, models.MsgPlayerLeft)
	if len(left) != 1 || left[0]["id"] != idA {
		t.Fatalf("remaining session should see player_left for %q", idA)
	}

	data, count := h.Snapshot(time.Now())
	if count != 1 {
		t.Fatalf("expected 1 player after reap, got %d", count)
	}
	if _, ok := decodeSnapshot(t, data).Players[idB]; !ok {
		t.Fatalf("fresh player should survive the reap")
	}
}

func TestUpdateStateApplies(t *testing.T) {
	h := newTestHub()
	s := newTestSession(h, "a")
	id := h.JoinPlayer(s, "abc12", "Ace", "jet1", "red")

	pos := models.Vec3{X: 10, Y: 500, Z: 10}
	rot := models.Vec3{X: 0.1, Y: 0.2, Z: 0.3}
	vel := models.Vec3{X: 1, Y: 0, Z: -1}
	h.UpdateState(id, pos, rot, vel, 0.9)

	data, _ := h.Snapshot(time.Now())
	p := decodeSnapshot(t, data).Players[id]
	if p.Position != pos || p.Rotation != rot || p.Velocity != vel || p.Throttle != 0.9 {
		t.Fatalf("state not applied: %+v", p)
	}
}

func TestTouchAdvancesLastUpdate(t *testing.T) {
	h := newTestHub()
	s := newTestSession(h, "a")
	id := h.JoinPlayer(s, "abc12", "Ace", "jet1", "red")

	past := time.Now().Add(-time.Minute)
	h.mu.Lock()
	h.players[id].lastUpdate = past
	h.mu.Unlock()

	h.Touch(id)

	h.mu.Lock()
	got := h.players[id].lastUpdate
	h.mu.Unlock()
	if !got.After(past) {
		t.Fatalf("Touch did not advance lastUpdate")
	}
}
