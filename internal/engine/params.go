package engine

import (
	"fmt"
	"time"
)

// Params are the tunable physics constants shared by both entities. On a
// networked match the host's values are authoritative.
type Params struct {
	Restitution    float64 `json:"restitution"`
	Mass           float64 `json:"mass"`
	Friction       float64 `json:"friction"`
	MaxDashPower   float64 `json:"maxDashPower"`
	DashCooldown   float64 `json:"dashCooldown"`   // seconds
	PlayerSize     float64 `json:"playerSize"`     // radius
	DashChargeRate float64 `json:"dashChargeRate"` // charge fraction per second
	GhostDuration  float64 `json:"ghostDuration"`  // seconds
	GhostCooldown  float64 `json:"ghostCooldown"`  // seconds
}

// ParamNames lists the wire names in UI order.
var ParamNames = []string{
	"restitution",
	"mass",
	"friction",
	"maxDashPower",
	"dashCooldown",
	"playerSize",
	"dashChargeRate",
	"ghostDuration",
	"ghostCooldown",
}

func DefaultParams() Params {
	return Params{
		Restitution:    0.8,
		Mass:           7,
		Friction:       0.07,
		MaxDashPower:   30,
		DashCooldown:   0.7,
		PlayerSize:     40,
		DashChargeRate: 2.5,
		GhostDuration:  0.5,
		GhostCooldown:  2.0,
	}
}

func (p *Params) field(name string) *float64 {
	switch name {
	case "restitution":
		return &p.Restitution
	case "mass":
		return &p.Mass
	case "friction":
		return &p.Friction
	case "maxDashPower":
		return &p.MaxDashPower
	case "dashCooldown":
		return &p.DashCooldown
	case "playerSize":
		return &p.PlayerSize
	case "dashChargeRate":
		return &p.DashChargeRate
	case "ghostDuration":
		return &p.GhostDuration
	case "ghostCooldown":
		return &p.GhostCooldown
	}
	return nil
}

func (p Params) Get(name string) (float64, error) {
	f := p.field(name)
	if f == nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	return *f, nil
}

func (p *Params) Set(name string, v float64) error {
	f := p.field(name)
	if f == nil {
		return fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	*f = v
	return nil
}

// Merge copies every known key of m into p; unknown keys are ignored.
func (p *Params) Merge(m map[string]float64) {
	for name, v := range m {
		if f := p.field(name); f != nil {
			*f = v
		}
	}
}

func (p Params) Map() map[string]float64 {
	out := make(map[string]float64, len(ParamNames))
	for _, name := range ParamNames {
		out[name] = *p.field(name)
	}
	return out
}

func (p Params) DashCooldownTicks() float64  { return p.DashCooldown * TicksPerSecond }
func (p Params) GhostCooldownTicks() float64 { return p.GhostCooldown * TicksPerSecond }

func (p Params) GhostDurationTime() time.Duration {
	return time.Duration(p.GhostDuration * float64(time.Second))
}
