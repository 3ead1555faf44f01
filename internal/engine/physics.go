package engine

// Step advances one locally simulated entity by a single tick: dash charge,
// cooldown bookkeeping, friction, then integration.
func Step(e *Entity, p Params) {
	e.Radius = p.PlayerSize

	if e.DashCharging && e.DashPower < 1 {
		e.DashPower += ChargeStep * p.DashChargeRate
		if e.DashPower > 1 {
			e.DashPower = 1
		}
	}

	if e.DashCooldown > 0 {
		e.DashCooldown--
	}
	if e.DashCooldown <= 0 {
		e.IsDashing = false
	}
	if e.GhostCooldown > 0 {
		e.GhostCooldown--
	}

	e.Vel = e.Vel.Scale(1 - p.Friction)
	e.Pos = e.Pos.Add(e.Vel)
}

// Contact describes an overlap between two entities. Normal points from A
// toward B. Impulse is zero when the pair is already separating.
type Contact struct {
	Normal  Vec2
	Overlap float64
	Impulse float64
}

// Collide detects overlap between a and b and computes the equal-mass
// impulse along the separation normal. It reports false when the entities do
// not touch or either one is ghosted.
func Collide(a, b *Entity, p Params) (Contact, bool) {
	if a.GhostActive || b.GhostActive {
		return Contact{}, false
	}

	d := b.Pos.Sub(a.Pos)
	dist := d.Len()
	minDist := a.Radius + b.Radius
	if dist >= minDist {
		return Contact{}, false
	}

	n := Vec2{X: 1}
	if dist > 0 {
		n = d.Scale(1 / dist)
	}

	c := Contact{Normal: n, Overlap: minDist - dist}
	dp := b.Vel.Sub(a.Vel).Dot(n)
	if dp < 0 && p.Mass > 0 {
		c.Impulse = -(1 + p.Restitution) * dp / (2 / p.Mass)
	}
	return c, true
}

// ApplyA applies A's share of the contact: the impulse against the normal and
// half of the positional correction.
func (c Contact) ApplyA(a *Entity, p Params) {
	if c.Impulse != 0 {
		a.Vel = a.Vel.Sub(c.Normal.Scale(c.Impulse / p.Mass))
	}
	a.Pos = a.Pos.Sub(c.Normal.Scale(c.Overlap / 2))
}

func (c Contact) ApplyB(b *Entity, p Params) {
	if c.Impulse != 0 {
		b.Vel = b.Vel.Add(c.Normal.Scale(c.Impulse / p.Mass))
	}
	b.Pos = b.Pos.Add(c.Normal.Scale(c.Overlap / 2))
}

// OutOfArena reports whether the entity has fully left the arena.
func OutOfArena(e *Entity, arenaRadius float64) bool {
	return e.Pos.Len() > arenaRadius+e.Radius
}

// CheckExit returns the slot that left the arena. Blue is evaluated first, so
// when both are out on the same tick blue loses.
func CheckExit(blue, red *Entity, arenaRadius float64) (loser Slot, ok bool) {
	if OutOfArena(blue, arenaRadius) {
		return SlotBlue, true
	}
	if OutOfArena(red, arenaRadius) {
		return SlotRed, true
	}
	return 0, false
}
