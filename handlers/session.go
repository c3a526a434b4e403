// Package handlers session.go
package handlers

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/4cecoder/skyrelay/models"
)

const (
	// Inbound frames allowed per session per one-second window.
	maxMessagesPerSecond = 30

	maxFrameBytes  = 1 << 20
	sendBufferSize = 64
	writeWait      = 10 * time.Second
)

const (
	closeNormalClosure   = websocket.CloseNormalClosure
	closeGoingAway       = websocket.CloseGoingAway
	closePolicyViolation = websocket.ClosePolicyViolation
)

// Session is one live WebSocket connection. Its read loop owns playerID and
// the rate-limit window; everything else may be touched from the hub, the
// broadcaster, and the reaper, so outbound traffic goes through a buffered
// channel drained by a dedicated write pump. A slow or dead peer fills its
// buffer and starts dropping frames instead of stalling anyone else.
type Session struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	addr string

	send      chan []byte
	done      chan struct{}
	writeMu   sync.Mutex
	closeOnce sync.Once

	playerID string

	windowStart time.Time
	windowCount int
}

func NewSession(hub *Hub, conn *websocket.Conn, addr string) *Session {
	return &Session{
		id:   uuid.New().String(),
		hub:  hub,
		conn: conn,
		addr: addr,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Run drives the session until the connection dies, then tears it down.
func (s *Session) Run() {
	s.hub.Register(s)
	go s.writePump()
	s.readLoop()
	s.teardown()
}

func (s *Session) readLoop() {
	s.conn.SetReadLimit(maxFrameBytes)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Session %s read error: %v", s.id, err)
			}
			return
		}

		if !s.allowMessage(time.Now()) {
			log.Printf("Session %s exceeded %d msgs/s, closing", s.id, maxMessagesPerSecond)
			s.Close(closePolicyViolation, "Rate limit exceeded")
			return
		}

		msg, err := models.DecodeClientMessage(data)
		if err != nil {
			log.Printf("Session %s sent malformed frame: %v", s.id, err)
			continue
		}
		s.dispatch(msg)
	}
}

// allowMessage implements the per-session inbound cap with a plain
// one-second window counter.
func (s *Session) allowMessage(now time.Time) bool {
	if s.windowStart.IsZero() || now.Sub(s.windowStart) >= time.Second {
		s.windowStart = now
		s.windowCount = 0
	}
	s.windowCount++
	return s.windowCount <= maxMessagesPerSecond
}

func (s *Session) dispatch(msg models.ClientMessage) {
	switch msg.Type {
	case models.MsgJoin:
		s.handleJoin(msg)
	case models.MsgPosition:
		s.handlePosition(msg)
	case models.MsgPing:
		s.handlePing()
	case models.MsgShoot:
		s.handleShoot(msg)
	case models.MsgHit:
		s.handleHit(msg)
	default:
		// Unknown types are ignored.
	}
}

func (s *Session) handleJoin(msg models.ClientMessage) {
	if !s.hub.limiter.AllowJoin(s.addr) {
		// Written directly so the frame beats the close below.
		s.writeNow(models.ErrorMessage{
			Type:    models.MsgError,
			Code:    models.ErrCodeJoinRateLimited,
			Message: "Too many joins from your address, try again later",
		})
		log.Printf("Join rate limited for %s (session %s)", s.addr, s.id)
		s.Close(closePolicyViolation, "Join rate limit exceeded")
		return
	}
	if !models.ValidPlayerID(msg.ID) {
		return
	}
	if s.playerID != "" {
		return
	}

	s.playerID = s.hub.JoinPlayer(s, msg.ID, msg.Name, msg.PlaneType, msg.PlaneColor)
	log.Printf("Player %q joined as %s from %s", msg.Name, s.playerID, s.addr)
}

func (s *Session) handlePosition(msg models.ClientMessage) {
	if s.playerID == "" {
		return
	}
	// Even a rejected report proves the client is alive.
	s.hub.Touch(s.playerID)

	pos, ok := models.DecodeVec(msg.Position)
	if !ok || !models.InBounds(pos) {
		return
	}
	rot, ok := models.DecodeVec(msg.Rotation)
	if !ok || !models.SaneRotation(rot) {
		return
	}
	var vel models.Vec3
	if len(msg.Velocity) > 0 {
		v, ok := models.DecodeVec(msg.Velocity)
		if !ok {
			return
		}
		vel = v
	}
	throttle := models.DecodeThrottle(msg.Throttle)

	s.hub.UpdateState(s.playerID, pos, rot, vel, throttle)
}

func (s *Session) handlePing() {
	if s.playerID != "" {
		s.hub.Touch(s.playerID)
	}
	s.enqueueJSON(models.PongMessage{Type: models.MsgPong, Timestamp: time.Now().UnixMilli()})
}

func (s *Session) handleShoot(msg models.ClientMessage) {
	if s.playerID == "" {
		return
	}
	s.hub.Touch(s.playerID)

	pos, ok := models.DecodeVec(msg.Position)
	if !ok {
		return
	}
	dir, ok := models.DecodeVec(msg.Direction)
	if !ok {
		return
	}

	data, err := json.Marshal(models.PlayerShootMessage{
		Type:      models.MsgPlayerShoot,
		ShooterID: s.playerID,
		Position:  pos,
		Direction: dir,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	s.hub.Broadcast(data, s)
}

func (s *Session) handleHit(msg models.ClientMessage) {
	if s.playerID == "" {
		return
	}
	s.hub.Touch(s.playerID)

	score, ok := s.hub.AcceptHit(s.playerID, msg.TargetID)
	if !ok {
		return
	}

	data, err := json.Marshal(models.HitConfirmedMessage{
		Type:         models.MsgHitConfirmed,
		ShooterID:    s.playerID,
		TargetID:     msg.TargetID,
		ShooterScore: score,
		Timestamp:    time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	s.hub.Broadcast(data, nil)
}

// enqueue queues one outbound frame, dropping it when the session's buffer
// is full.
func (s *Session) enqueue(data []byte) {
	if len(data) == 0 {
		return
	}
	select {
	case s.send <- data:
	default:
	}
}

func (s *Session) enqueueJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to marshal outbound message: %v", err)
		return
	}
	s.enqueue(data)
}

func (s *Session) writePump() {
	for {
		select {
		case data := <-s.send:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.TextMessage, data)
			s.writeMu.Unlock()
			if err != nil {
				s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// writeNow pushes one frame to the socket immediately, bypassing the send
// queue. Best effort.
func (s *Session) writeNow(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
}

// Close sends a best-effort close frame and shuts the connection. Safe to
// call from any goroutine, any number of times.
func (s *Session) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		frame := websocket.FormatCloseMessage(code, reason)
		s.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(writeWait))
		s.conn.Close()
	})
}

func (s *Session) teardown() {
	s.Close(closeNormalClosure, "")
	s.hub.Unregister(s)

	if s.playerID == "" {
		log.Printf("Session %s from %s disconnected before joining", s.id, s.addr)
		return
	}

	name, remaining, ok := s.hub.RemovePlayer(s.playerID)
	if !ok {
		// The reaper already evicted and announced this player.
		return
	}
	log.Printf("Player %s (%s) left, %d remaining", name, s.playerID, remaining)
}
