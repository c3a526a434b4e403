// Package handlers broadcast.go
package handlers

import (
	"context"
	"log"
	"time"
)

const (
	tickInterval = 100 * time.Millisecond
	reapInterval = time.Second

	// A player is stale after this much time without any inbound traffic.
	staleAfter = 10 * time.Second

	summaryEvery = 10 * time.Second
)

// RunBroadcast fans the world snapshot out to every session at 10 Hz. The
// snapshot is built and serialized once per tick; an empty registry skips
// the tick entirely.
func (h *Hub) RunBroadcast(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	lastSummary := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			data, count := h.Snapshot(now)
			if data == nil {
				continue
			}
			sent := h.Broadcast(data, nil)
			if now.Sub(lastSummary) >= summaryEvery {
				lastSummary = now
				log.Printf("Broadcasting %d players to %d sessions", count, sent)
			}
		}
	}
}

// RunReaper scans once a second for players whose sessions have gone
// silent and evicts them.
func (h *Hub) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, ev := range h.Reap(now, staleAfter) {
				ev.session.Close(closeNormalClosure, "Timeout")
				log.Printf("Evicted %s (%s) after %s of silence", ev.name, ev.id, staleAfter)
			}
		}
	}
}
