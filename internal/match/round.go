package match

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/ghost-dash/internal/engine"
	"github.com/DoyleJ11/ghost-dash/internal/types"
)

const (
	countdownKey   = "countdown"
	ghostKeyPrefix = "ghost:"
)

func ghostKey(slot engine.Slot) string { return ghostKeyPrefix + slot.String() }

func slotName(s engine.Slot) string {
	if s == engine.SlotBlue {
		return "Blue"
	}
	return "Red"
}

func roundMessage(round int) string { return fmt.Sprintf("Round %d", round) }

// Start begins the countdown for the next round. From GameOver it first
// resets scores and the round counter. In a networked match only the host may
// start, and the guest is told to count down too.
func (c *Context) Start(now time.Time) error {
	switch c.mode {
	case ModeGuest:
		return ErrNotHost
	case ModeHost:
		if !c.opponent {
			return ErrNoOpponent
		}
	}

	switch c.state.Phase {
	case PhaseWaiting:
	case PhaseGameOver:
		c.resetGame()
	default:
		return fmt.Errorf("%w: start during %s", ErrBadPhase, c.state.Phase)
	}

	if c.mode == ModeHost {
		c.send(types.StartGame{GameID: c.gameID})
	}
	c.beginCountdown(now)
	return nil
}

func (c *Context) beginCountdown(now time.Time) {
	c.state.Phase = PhaseCountdown
	c.state.Countdown = CountdownFrom
	c.scheduleCountdown(now.Add(time.Second))
}

func (c *Context) scheduleCountdown(due time.Time) {
	c.sched.Schedule(countdownKey, due, func() {
		c.state.Countdown--
		if c.state.Countdown > 0 {
			c.scheduleCountdown(due.Add(time.Second))
			return
		}
		c.beginRound()
	})
}

// beginRound puts both entities back on their spawns. Ghost timers left over
// from the previous round are dropped with them.
func (c *Context) beginRound() {
	c.sched.CancelPrefix(ghostKeyPrefix)
	for _, e := range c.entities {
		e.Reset(c.params)
	}
	c.state.Phase = PhaseActive
	c.state.Countdown = 0
	c.message = roundMessage(c.state.Round)
}

// Tick advances the match by one frame: due timers, then the physics of every
// controlled entity, the collision, the arena check and the state broadcast.
// The snapshot is taken last so the opponent sees the corrected position,
// including one that has just left the arena.
func (c *Context) Tick(now time.Time) {
	c.sched.RunDue(now)
	if c.state.Phase != PhaseActive {
		c.updateDisplay(now)
		return
	}

	for _, e := range c.entities {
		if c.Controls(e.Slot) {
			engine.Step(e, c.params)
		} else {
			e.Radius = c.params.PlayerSize
		}
	}

	blue, red := c.entities[engine.SlotBlue], c.entities[engine.SlotRed]
	if contact, ok := engine.Collide(blue, red, c.params); ok {
		if c.Controls(engine.SlotBlue) {
			contact.ApplyA(blue, c.params)
		}
		if c.Controls(engine.SlotRed) {
			contact.ApplyB(red, c.params)
		}
	}

	if loser, ok := engine.CheckExit(blue, red, c.arenaRadius); ok {
		c.endRound(loser)
	}
	if c.mode != ModeLocal {
		c.sendState()
	}
	c.updateDisplay(now)
}

func (c *Context) updateDisplay(now time.Time) {
	for _, e := range c.entities {
		e.Display = c.DisplayPosition(e.Slot, now)
	}
}

// endRound scores a detected arena exit. The guest neither scores nor stops:
// it keeps simulating and reporting red until round_result arrives, so an
// exit it saw first reaches the host through its snapshots.
func (c *Context) endRound(loser engine.Slot) {
	if c.mode == ModeGuest {
		c.log.Debug("exit seen, waiting for the host's verdict", zap.Stringer("loser", loser))
		return
	}
	c.state.Phase = PhaseRoundEnded

	winner := loser.Other()
	blue, red := c.state.BlueScore, c.state.RedScore
	if winner == engine.SlotBlue {
		blue++
	} else {
		red++
	}

	sum := types.RoundSummary{
		BlueScore: blue,
		RedScore:  red,
		Message:   slotName(winner) + " wins the round!",
		NextRound: c.state.Round + 1,
	}
	if c.state.Round >= c.maxRounds || max(blue, red) > c.maxRounds/2 {
		sum.GameOver = true
		sum.NextRound = 1
		sum.Message = slotName(gameWinner(blue, red)) + " wins the game!"
	}

	if c.mode == ModeHost {
		c.state.BlueScore, c.state.RedScore = blue, red
		c.message = sum.Message
		c.send(types.RoundEnd{GameID: c.gameID, RoundSummary: sum})
		return
	}
	c.applyResult(sum)
}

// gameWinner breaks a tie in red's favour.
func gameWinner(blue, red int) engine.Slot {
	if blue > red {
		return engine.SlotBlue
	}
	return engine.SlotRed
}

func (c *Context) applyResult(sum types.RoundSummary) {
	c.state.BlueScore = sum.BlueScore
	c.state.RedScore = sum.RedScore
	c.state.Round = sum.NextRound
	c.message = sum.Message
	if sum.GameOver {
		c.state.Phase = PhaseGameOver
	} else {
		c.state.Phase = PhaseWaiting
	}
}
