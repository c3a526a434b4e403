// Package models player.go
package models

import (
	"math"
	"regexp"
	"strings"
)

// World bounds for client-reported positions. Anything outside is treated
// as a corrupt or cheating report and dropped.
const (
	MaxAbsX = 100000.0
	MinY    = -100.0
	MaxY    = 50000.0
	MaxAbsZ = 100000.0

	// Rotation components beyond this are NaN-adjacent garbage, not flying.
	MaxAbsRotation = 100 * math.Pi

	MaxNameLength = 20
	MinIDLength   = 5
	MaxIDLength   = 50

	DefaultName     = "Anonymous"
	DefaultThrottle = 0.5

	SpawnAltitude = 500.0
)

var PlaneTypes = map[string]bool{
	"jet1":   true,
	"jet2":   true,
	"plane1": true,
	"plane2": true,
	"plane3": true,
}

var PlaneColors = map[string]bool{
	"red":    true,
	"blue":   true,
	"green":  true,
	"yellow": true,
	"purple": true,
	"orange": true,
}

const (
	DefaultPlaneType  = "jet1"
	DefaultPlaneColor = "blue"
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Finite reports whether every component is a real number.
func (v Vec3) Finite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Player is the wire shape of one participant inside a snapshot. The hub
// wraps it with bookkeeping that clients never see.
type Player struct {
	Name       string  `json:"name"`
	PlaneType  string  `json:"planeType"`
	PlaneColor string  `json:"planeColor"`
	Position   Vec3    `json:"position"`
	Rotation   Vec3    `json:"rotation"`
	Velocity   Vec3    `json:"velocity"`
	Throttle   float64 `json:"throttle"`
	LastUpdate int64   `json:"lastUpdate"`
}

// NewPlayer returns a player at the spawn point with sanitized cosmetics.
func NewPlayer(name, planeType, planeColor string, now int64) Player {
	return Player{
		Name:       SanitizeName(name),
		PlaneType:  ValidPlaneType(planeType),
		PlaneColor: ValidPlaneColor(planeColor),
		Position:   Vec3{X: 0, Y: SpawnAltitude, Z: 0},
		Throttle:   DefaultThrottle,
		LastUpdate: now,
	}
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// SanitizeName strips HTML tags, trims whitespace, and truncates to the
// display limit. Empty results fall back to the default name.
func SanitizeName(name string) string {
	name = htmlTagPattern.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
	}
	if name == "" {
		return DefaultName
	}
	return name
}

// ValidPlayerID reports whether a client-supplied id is usable as a
// registry key.
func ValidPlayerID(id string) bool {
	return len(id) >= MinIDLength && len(id) <= MaxIDLength
}

// ValidPlaneType substitutes the default on anything outside the closed set.
func ValidPlaneType(t string) string {
	if PlaneTypes[t] {
		return t
	}
	return DefaultPlaneType
}

// ValidPlaneColor substitutes the default on anything outside the closed set.
func ValidPlaneColor(c string) string {
	if PlaneColors[c] {
		return c
	}
	return DefaultPlaneColor
}

// InBounds reports whether a reported position is inside the world volume.
func InBounds(p Vec3) bool {
	return math.Abs(p.X) <= MaxAbsX &&
		p.Y >= MinY && p.Y <= MaxY &&
		math.Abs(p.Z) <= MaxAbsZ
}

// SaneRotation rejects rotation vectors with absurd magnitudes.
func SaneRotation(r Vec3) bool {
	return math.Abs(r.X) <= MaxAbsRotation &&
		math.Abs(r.Y) <= MaxAbsRotation &&
		math.Abs(r.Z) <= MaxAbsRotation
}
