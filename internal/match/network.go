package match

import (
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/ghost-dash/internal/engine"
	"github.com/DoyleJ11/ghost-dash/internal/interp"
	"github.com/DoyleJ11/ghost-dash/internal/types"
)

const (
	StatusWaitingForOpponent   = "Waiting for the second player..."
	StatusOpponentJoined       = "Second player joined!"
	StatusJoined               = "Joined the game, waiting for the host to start..."
	StatusGameNotFound         = "Game not found. Check the code."
	StatusGameFull             = "Game is full."
	StatusOpponentDisconnected = "Opponent disconnected"
)

// Handle applies one message from the relay. now stamps snapshots for
// interpolation and anchors a countdown started by the host.
func (c *Context) Handle(m types.ServerMessage, now time.Time) {
	switch msg := m.(type) {
	case types.GameCreated:
		c.join(ModeHost, engine.SlotBlue, msg.GameID)
		c.status = StatusWaitingForOpponent

	case types.PlayerJoined:
		if c.mode != ModeHost {
			return
		}
		c.opponent = true
		c.status = StatusOpponentJoined
		c.sendParams()

	case types.GameJoined:
		c.join(ModeGuest, engine.SlotRed, msg.GameID)
		c.opponent = true
		c.status = StatusJoined

	case types.GameNotFound:
		c.status = StatusGameNotFound

	case types.GameFull:
		c.status = StatusGameFull

	case types.StartSignal:
		if c.mode != ModeGuest {
			return
		}
		switch c.state.Phase {
		case PhaseGameOver:
			c.resetGame()
		case PhaseWaiting:
		default:
			c.log.Warn("start ignored", zap.Stringer("phase", c.state.Phase))
			return
		}
		c.beginCountdown(now)

	case types.ParamsUpdate:
		if c.mode != ModeGuest {
			return
		}
		vals, err := msg.Values()
		if err != nil {
			c.log.Warn("bad params update", zap.Error(err))
			return
		}
		c.params.Merge(vals)

	case types.GameState:
		if c.mode == ModeLocal {
			return
		}
		snap, err := msg.Snapshot()
		if err != nil {
			c.log.Warn("bad game state", zap.Error(err))
			return
		}
		c.applySnapshot(c.entities[c.local.Other()], snap, now)

	case types.RoundResult:
		if c.mode == ModeLocal {
			return
		}
		c.applyResult(msg.RoundSummary)

	case types.OpponentDisconnected:
		c.opponent = false
		c.status = StatusOpponentDisconnected
		c.sched.CancelAll()
		c.state.Phase = PhaseWaiting
		c.state.Countdown = 0
	}
}

// join fixes this peer's role for the rest of the session.
func (c *Context) join(mode Mode, local engine.Slot, gameID string) {
	c.mode = mode
	c.local = local
	c.gameID = gameID
	c.opponent = false
	c.resetGame()
}

// applySnapshot overwrites the remote entity with what its owner sent. Only
// position is smoothed, through the history buffer.
func (c *Context) applySnapshot(e *engine.Entity, s types.EntitySnapshot, now time.Time) {
	e.History.Push(interp.Sample{At: now, X: s.X, Y: s.Y, VX: s.VX, VY: s.VY})
	e.Pos = engine.Vec2{X: s.X, Y: s.Y}
	e.Vel = engine.Vec2{X: s.VX, Y: s.VY}
	e.DashCooldown = s.DashCooldown
	e.IsDashing = s.IsDashing
	e.DashPower = s.DashPower
	e.DashCharging = s.DashCharging
	e.GhostActive = s.GhostActive
	e.GhostCooldown = s.GhostCooldown
}

func snapshotOf(e *engine.Entity) types.EntitySnapshot {
	return types.EntitySnapshot{
		X:             e.Pos.X,
		Y:             e.Pos.Y,
		VX:            e.Vel.X,
		VY:            e.Vel.Y,
		DashCooldown:  e.DashCooldown,
		IsDashing:     e.IsDashing,
		DashPower:     e.DashPower,
		DashCharging:  e.DashCharging,
		GhostActive:   e.GhostActive,
		GhostCooldown: e.GhostCooldown,
	}
}

func (c *Context) sendState() {
	if c.gameID == "" {
		return
	}
	msg, err := types.NewPlayerState(c.gameID, snapshotOf(c.entities[c.local]))
	if err != nil {
		c.log.Error("encode player state", zap.Error(err))
		return
	}
	c.send(msg)
}

func (c *Context) sendParams() {
	msg, err := types.NewUpdateParams(c.params.Map())
	if err != nil {
		c.log.Error("encode params", zap.Error(err))
		return
	}
	c.send(msg)
}
