// Package handlers hub.go
package handlers

import (
	"encoding/json"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/4cecoder/skyrelay/models"
)

// Minimum spacing between accepted hits from one shooter.
const hitCooldown = 100 * time.Millisecond

// playerState wraps the wire-visible player with server-side bookkeeping.
type playerState struct {
	player      models.Player
	score       int
	lastUpdate  time.Time
	lastHitTime time.Time
	session     *Session
}

// Hub owns the live player registry and the set of connected sessions. One
// mutex guards both; snapshots are built and serialized inside the critical
// section, and outbound frames are only ever *queued* there — the socket
// writes happen on each session's write pump.
type Hub struct {
	mu       sync.Mutex
	players  map[string]*playerState
	sessions map[*Session]bool
	limiter  *JoinLimiter
}

func NewHub(cfg Config) *Hub {
	return &Hub{
		players:  make(map[string]*playerState),
		sessions: make(map[*Session]bool),
		limiter:  NewJoinLimiter(cfg),
	}
}

func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = true
	h.mu.Unlock()
}

func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}

// JoinPlayer inserts a new player for s and announces it to everyone else.
// If the requested id is already taken by another session, the id is
// mutated with a random suffix. The effective id is returned.
func (h *Hub) JoinPlayer(s *Session, id, name, planeType, planeColor string) string {
	now := time.Now()

	h.mu.Lock()
	for {
		if _, taken := h.players[id]; !taken {
			break
		}
		id = id + "-" + randomSuffix(4)
	}
	p := models.NewPlayer(name, planeType, planeColor, now.UnixMilli())
	h.players[id] = &playerState{player: p, lastUpdate: now, session: s}

	joined, err := json.Marshal(models.PlayerJoinedMessage{
		Type:       models.MsgPlayerJoined,
		ID:         id,
		Name:       p.Name,
		PlaneType:  p.PlaneType,
		PlaneColor: p.PlaneColor,
		Timestamp:  now.UnixMilli(),
	})
	if err == nil {
		h.queueLocked(joined, s)
	}
	h.mu.Unlock()

	return id
}

// Touch advances the liveness timestamp for id.
func (h *Hub) Touch(id string) {
	h.mu.Lock()
	if st, ok := h.players[id]; ok {
		st.lastUpdate = time.Now()
	}
	h.mu.Unlock()
}

// UpdateState copies a validated kinematic report into the registry.
func (h *Hub) UpdateState(id string, pos, rot, vel models.Vec3, throttle float64) {
	h.mu.Lock()
	if st, ok := h.players[id]; ok {
		st.player.Position = pos
		st.player.Rotation = rot
		st.player.Velocity = vel
		st.player.Throttle = throttle
		st.lastUpdate = time.Now()
	}
	h.mu.Unlock()
}

// AcceptHit adjudicates one self-reported hit. It fails when shooter or
// target is unknown, on a self-hit, or inside the shooter's hit cooldown.
// On success the shooter's new score is returned.
func (h *Hub) AcceptHit(shooterID, targetID string) (int, bool) {
	if shooterID == targetID {
		return 0, false
	}
	now := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	shooter, ok := h.players[shooterID]
	if !ok {
		return 0, false
	}
	if _, ok := h.players[targetID]; !ok {
		return 0, false
	}
	if now.Sub(shooter.lastHitTime) < hitCooldown {
		return 0, false
	}

	shooter.lastHitTime = now
	shooter.score++
	return shooter.score, true
}

// RemovePlayer drops id from the registry and announces player_left to the
// sessions that remain. The removal and the announcement share one critical
// section so no later snapshot can contain the departed id.
func (h *Hub) RemovePlayer(id string) (string, int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.players[id]
	if !ok {
		return "", len(h.players), false
	}
	delete(h.players, id)
	h.queueLeftLocked(id, st.session)
	return st.player.Name, len(h.players), true
}

// Snapshot serializes the current world state, or returns nil when the
// registry is empty.
func (h *Hub) Snapshot(now time.Time) ([]byte, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := len(h.players)
	if count == 0 {
		return nil, 0
	}

	msg := models.SnapshotMessage{
		Type:      models.MsgPlayers,
		Players:   make(map[string]models.Player, count),
		Scores:    make(map[string]int, count),
		Count:     count,
		Timestamp: now.UnixMilli(),
	}
	for id, st := range h.players {
		p := st.player
		p.LastUpdate = st.lastUpdate.UnixMilli()
		msg.Players[id] = p
		msg.Scores[id] = st.score
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal snapshot: %v", err)
		return nil, count
	}
	return data, count
}

// Broadcast queues data on every connected session except the one given.
// It returns the number of sessions reached.
func (h *Hub) Broadcast(data []byte, except *Session) int {
	h.mu.Lock()
	n := h.queueLocked(data, except)
	h.mu.Unlock()
	return n
}

type eviction struct {
	id      string
	name    string
	session *Session
}

// Reap removes every player whose session has been silent for longer than
// maxAge, announcing each departure, and returns the evicted sessions for
// the caller to close.
func (h *Hub) Reap(now time.Time, maxAge time.Duration) []eviction {
	h.mu.Lock()
	var evicted []eviction
	for id, st := range h.players {
		if now.Sub(st.lastUpdate) > maxAge {
			delete(h.players, id)
			h.queueLeftLocked(id, st.session)
			evicted = append(evicted, eviction{id: id, name: st.player.Name, session: st.session})
		}
	}
	h.mu.Unlock()
	return evicted
}

// Shutdown closes every connected session with a going-away frame.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close(closeGoingAway, "Server shutting down")
	}
}

// PlayerCount returns the number of live players.
func (h *Hub) PlayerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.players)
}

func (h *Hub) queueLocked(data []byte, except *Session) int {
	n := 0
	for s := range h.sessions {
		if s == except {
			continue
		}
		s.enqueue(data)
		n++
	}
	return n
}

func (h *Hub) queueLeftLocked(id string, except *Session) {
	left, err := json.Marshal(models.PlayerLeftMessage{
		Type:      models.MsgPlayerLeft,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	h.queueLocked(left, except)
}

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(suffixAlphabet[rand.Intn(len(suffixAlphabet))])
	}
	return b.String()
}
