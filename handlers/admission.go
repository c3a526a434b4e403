// Package handlers admission.go
package handlers

import (
	"sync"
	"time"
)

// joinQuota tracks join attempts from one peer address.
type joinQuota struct {
	windowStart time.Time
	count       int
	lastJoinAt  time.Time
}

// JoinLimiter enforces the per-address join policy: a sliding window of at
// most JoinMaxPerWindow joins plus a flat cooldown between consecutive
// joins from the same address.
type JoinLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	maxJoins  int
	cooldown  time.Duration
	byAddress map[string]*joinQuota
	lastPrune time.Time
}

func NewJoinLimiter(cfg Config) *JoinLimiter {
	return &JoinLimiter{
		window:    cfg.JoinWindow,
		maxJoins:  cfg.JoinMaxPerWindow,
		cooldown:  cfg.JoinCooldown,
		byAddress: make(map[string]*joinQuota),
	}
}

// AllowJoin decides one join attempt from addr. An empty address (peer
// could not be determined) is always allowed.
func (l *JoinLimiter) AllowJoin(addr string) bool {
	return l.allowJoinAt(addr, time.Now())
}

func (l *JoinLimiter) allowJoinAt(addr string, now time.Time) bool {
	if addr == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)

	q, ok := l.byAddress[addr]
	if !ok {
		l.byAddress[addr] = &joinQuota{windowStart: now, count: 1, lastJoinAt: now}
		return true
	}

	if now.Sub(q.lastJoinAt) < l.cooldown {
		return false
	}
	if now.Sub(q.windowStart) > l.window {
		q.windowStart = now
		q.count = 0
	}

	q.count++
	q.lastJoinAt = now
	return q.count <= l.maxJoins
}

// pruneLocked drops quota entries that can no longer influence a decision,
// keeping the table from growing for the life of the process.
func (l *JoinLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.window {
		return
	}
	l.lastPrune = now
	horizon := l.window + l.cooldown
	for addr, q := range l.byAddress {
		if now.Sub(q.lastJoinAt) > horizon {
			delete(l.byAddress, addr)
		}
	}
}
