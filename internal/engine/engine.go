package engine

import (
	"errors"

	"github.com/DoyleJ11/ghost-dash/internal/interp"
)

var ErrAlreadyCharging = errors.New("dash already charging")
var ErrNotCharging = errors.New("dash not charging")
var ErrOnCooldown = errors.New("ability on cooldown")
var ErrGhosted = errors.New("entity is ghosted")
var ErrUnknownParam = errors.New("unknown parameter")

const (
	// TicksPerSecond is the nominal frame rate the tick-based constants assume.
	TicksPerSecond = 60
	// ChargeStep approximates one 60 Hz frame in seconds.
	ChargeStep = 0.017
	// GhostSeparation is the velocity kick applied when a ghost ends inside the opponent.
	GhostSeparation = 5.0
	ArenaRadius     = 250.0
)

type Slot int

const (
	SlotBlue Slot = iota
	SlotRed
)

var Slots = [2]Slot{SlotBlue, SlotRed}

func (s Slot) String() string {
	switch s {
	case SlotBlue:
		return "blue"
	case SlotRed:
		return "red"
	default:
		return "unknown"
	}
}

func (s Slot) Other() Slot {
	if s == SlotBlue {
		return SlotRed
	}
	return SlotBlue
}

// Spawn is the initial position of a slot at the start of every round.
func Spawn(s Slot) Vec2 {
	if s == SlotBlue {
		return Vec2{X: -80, Y: 0}
	}
	return Vec2{X: 80, Y: 0}
}

type Entity struct {
	Slot    Slot
	Pos     Vec2
	Vel     Vec2
	Display Vec2 // render-only; interpolated for the remote entity
	Radius  float64

	DashCooldown float64 // ticks remaining
	DashPower    float64 // 0..1
	DashCharging bool
	IsDashing    bool

	GhostActive   bool
	GhostCooldown float64 // ticks remaining

	History interp.Buffer
}

func NewEntity(slot Slot, p Params) *Entity {
	e := &Entity{Slot: slot}
	e.Reset(p)
	return e
}

// Reset puts the entity back at its spawn with every ability idle and an
// empty snapshot history.
func (e *Entity) Reset(p Params) {
	spawn := Spawn(e.Slot)
	e.Pos = spawn
	e.Vel = Vec2{}
	e.Display = spawn
	e.Radius = p.PlayerSize
	e.DashCooldown = 0
	e.DashPower = 0
	e.DashCharging = false
	e.IsDashing = false
	e.GhostActive = false
	e.GhostCooldown = 0
	e.History.Reset()
}

// DashCooldownProgress is 0 right after a dash and 1 once the dash is ready.
func (e *Entity) DashCooldownProgress(p Params) float64 {
	return progress(e.DashCooldown, p.DashCooldownTicks())
}

func (e *Entity) GhostCooldownProgress(p Params) float64 {
	return progress(e.GhostCooldown, p.GhostCooldownTicks())
}

// AimIndicator returns the direction from the entity toward target and the
// length of the aiming line, which grows with the current dash charge.
func (e *Entity) AimIndicator(target Vec2) (angle, length float64) {
	return target.Sub(e.Pos).Angle(), 30 + 30*e.DashPower
}

func progress(remaining, total float64) float64 {
	if remaining <= 0 || total <= 0 {
		return 1
	}
	return clamp(1-remaining/total, 0, 1)
}
