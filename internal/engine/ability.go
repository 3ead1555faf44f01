package engine

// StartCharge moves the dash from idle to charging.
func StartCharge(e *Entity) error {
	switch {
	case e.DashCharging:
		return ErrAlreadyCharging
	case e.DashCooldown > 0:
		return ErrOnCooldown
	case e.GhostActive:
		return ErrGhosted
	}
	e.DashCharging = true
	e.DashPower = 0
	return nil
}

// ReleaseDash fires a charging dash toward target. The impulse is added to the
// current velocity, never replacing it.
func ReleaseDash(e *Entity, target Vec2, p Params) error {
	if !e.DashCharging {
		return ErrNotCharging
	}
	e.DashCharging = false
	e.IsDashing = true
	e.DashCooldown = p.DashCooldownTicks()

	angle := target.Sub(e.Pos).Angle()
	e.Vel = e.Vel.Add(FromAngle(angle, e.DashPower*p.MaxDashPower))
	return nil
}

// ActivateGhost phases the entity out. Any charge in progress is dropped and
// the dash cooldown starts as if a dash had just been used. The caller owns
// scheduling DeactivateGhost after p.GhostDuration.
func ActivateGhost(e *Entity, p Params) error {
	if e.GhostCooldown > 0 {
		return ErrOnCooldown
	}
	e.GhostActive = true
	e.GhostCooldown = p.GhostCooldownTicks()
	e.DashCharging = false
	e.DashPower = 0
	e.DashCooldown = p.DashCooldownTicks()
	return nil
}

// Kick is a fixed velocity change along Normal, which points from A toward B.
type Kick struct {
	Normal    Vec2
	Magnitude float64
}

func (k Kick) ApplyA(a *Entity) { a.Vel = a.Vel.Sub(k.Normal.Scale(k.Magnitude)) }
func (k Kick) ApplyB(b *Entity) { b.Vel = b.Vel.Add(k.Normal.Scale(k.Magnitude)) }

// DeactivateGhost ends e's ghost state. If e is now inside other, the returned
// kick pushes the pair apart (A is e, B is other) so they do not stay trapped.
func DeactivateGhost(e, other *Entity) (Kick, bool) {
	if !e.GhostActive {
		return Kick{}, false
	}
	e.GhostActive = false

	d := other.Pos.Sub(e.Pos)
	dist := d.Len()
	if dist >= e.Radius+other.Radius {
		return Kick{}, false
	}
	n := Vec2{X: 1}
	if dist > 0 {
		n = d.Scale(1 / dist)
	}
	return Kick{Normal: n, Magnitude: GhostSeparation}, true
}
