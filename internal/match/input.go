package match

import (
	"time"

	"github.com/DoyleJ11/ghost-dash/internal/engine"
)

func (c *Context) controlled(slot engine.Slot) (*engine.Entity, error) {
	if !c.Controls(slot) {
		return nil, ErrNotControlled
	}
	if c.state.Phase != PhaseActive {
		return nil, ErrRoundInactive
	}
	return c.entities[slot], nil
}

// ChargeStart begins charging slot's dash.
func (c *Context) ChargeStart(slot engine.Slot) error {
	e, err := c.controlled(slot)
	if err != nil {
		return err
	}
	return engine.StartCharge(e)
}

// ChargeRelease fires slot's dash toward target, in arena coordinates.
func (c *Context) ChargeRelease(slot engine.Slot, target engine.Vec2) error {
	e, err := c.controlled(slot)
	if err != nil {
		return err
	}
	return engine.ReleaseDash(e, target, c.params)
}

// ActivateGhost phases slot out and schedules the matching deactivation.
func (c *Context) ActivateGhost(slot engine.Slot, now time.Time) error {
	e, err := c.controlled(slot)
	if err != nil {
		return err
	}
	if err := engine.ActivateGhost(e, c.params); err != nil {
		return err
	}
	c.sched.After(ghostKey(slot), now, c.params.GhostDurationTime(), func() {
		c.deactivateGhost(slot)
	})
	return nil
}

func (c *Context) deactivateGhost(slot engine.Slot) {
	e, other := c.entities[slot], c.entities[slot.Other()]
	kick, ok := engine.DeactivateGhost(e, other)
	if !ok {
		return
	}
	kick.ApplyA(e)
	if c.Controls(other.Slot) {
		kick.ApplyB(other)
	}
}

// SetParam changes one physics parameter. In a networked match only the host
// may, and every change is pushed to the guest.
func (c *Context) SetParam(name string, v float64) error {
	if c.mode == ModeGuest {
		return ErrNotHost
	}
	if err := c.params.Set(name, v); err != nil {
		return err
	}
	if c.mode == ModeHost && c.opponent {
		c.sendParams()
	}
	return nil
}
