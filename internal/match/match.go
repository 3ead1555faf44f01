// Package match owns one client's view of a match: both entities, the shared
// parameters, scores and the round lifecycle. A Context is driven by a single
// frame loop and is not safe for concurrent use.
package match

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/ghost-dash/internal/engine"
	"github.com/DoyleJ11/ghost-dash/internal/interp"
	"github.com/DoyleJ11/ghost-dash/internal/sched"
	"github.com/DoyleJ11/ghost-dash/internal/types"
)

var (
	ErrNotHost       = errors.New("only the host can do this in a networked match")
	ErrNoOpponent    = errors.New("no opponent in the session")
	ErrNotControlled = errors.New("slot is not controlled by this peer")
	ErrRoundInactive = errors.New("round is not active")
	ErrBadPhase      = errors.New("not allowed in the current phase")
)

const (
	DefaultMaxRounds = 3
	CountdownFrom    = 3
)

type Mode int

const (
	// ModeLocal has both slots driven from this process.
	ModeLocal Mode = iota
	// ModeHost created the session and controls blue.
	ModeHost
	// ModeGuest joined the session and controls red.
	ModeGuest
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeHost:
		return "host"
	case ModeGuest:
		return "guest"
	default:
		return "unknown"
	}
}

type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseCountdown
	PhaseActive
	PhaseRoundEnded
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseCountdown:
		return "countdown"
	case PhaseActive:
		return "active"
	case PhaseRoundEnded:
		return "round_ended"
	case PhaseGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Sender delivers messages to the relay. peer.Conn implements it.
type Sender interface {
	Send(types.ClientMessage) error
}

type State struct {
	Phase     Phase
	Round     int
	BlueScore int
	RedScore  int
	// Countdown is the number shown while Phase is PhaseCountdown.
	Countdown int
}

type Context struct {
	mode     Mode
	local    engine.Slot
	gameID   string
	opponent bool

	params   engine.Params
	entities [2]*engine.Entity
	state    State
	message  string
	status   string

	sched       *sched.Scheduler
	sender      Sender
	log         *zap.Logger
	maxRounds   int
	delay       time.Duration
	arenaRadius float64
}

type Option func(*Context)

func WithSender(s Sender) Option {
	return func(c *Context) { c.sender = s }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Context) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMaxRounds(n int) Option {
	return func(c *Context) {
		if n > 0 {
			c.maxRounds = n
		}
	}
}

func WithInterpolationDelay(d time.Duration) Option {
	return func(c *Context) { c.delay = d }
}

func WithParams(p engine.Params) Option {
	return func(c *Context) { c.params = p }
}

// New returns a local match waiting for its first start. Receiving
// game_created or game_joined turns it into the host or guest of a session.
func New(opts ...Option) *Context {
	c := &Context{
		mode:        ModeLocal,
		params:      engine.DefaultParams(),
		sched:       sched.New(),
		log:         zap.NewNop(),
		maxRounds:   DefaultMaxRounds,
		delay:       interp.DefaultDelay,
		arenaRadius: engine.ArenaRadius,
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, slot := range engine.Slots {
		c.entities[slot] = engine.NewEntity(slot, c.params)
	}
	c.resetGame()
	return c
}

func (c *Context) Mode() Mode            { return c.mode }
func (c *Context) Networked() bool       { return c.mode != ModeLocal }
func (c *Context) GameID() string        { return c.gameID }
func (c *Context) HasOpponent() bool     { return c.opponent }
func (c *Context) State() State          { return c.state }
func (c *Context) Params() engine.Params { return c.params }
func (c *Context) MaxRounds() int        { return c.maxRounds }

// Message is the round text: "Round N", the round winner or the game winner.
func (c *Context) Message() string { return c.message }

// Status is the connection text shown next to the session code.
func (c *Context) Status() string { return c.status }

// Entity returns the live entity for slot. It stays owned by the Context.
func (c *Context) Entity(slot engine.Slot) *engine.Entity { return c.entities[slot] }

// LocalSlot is the slot this peer controls; ok is false in local mode, where
// both are.
func (c *Context) LocalSlot() (slot engine.Slot, ok bool) {
	return c.local, c.mode != ModeLocal
}

// Controls reports whether this process simulates slot.
func (c *Context) Controls(slot engine.Slot) bool {
	return c.mode == ModeLocal || slot == c.local
}

// DisplayPosition is where slot should be drawn at now. Controlled entities
// are drawn where they are; the remote one is interpolated from its
// snapshot history.
func (c *Context) DisplayPosition(slot engine.Slot, now time.Time) engine.Vec2 {
	e := c.entities[slot]
	if c.Controls(slot) {
		return e.Pos
	}
	x, y := e.History.Position(now, c.delay, e.Pos.X, e.Pos.Y)
	return engine.Vec2{X: x, Y: y}
}

func (c *Context) resetGame() {
	c.sched.CancelAll()
	c.state = State{Phase: PhaseWaiting, Round: 1}
	c.message = roundMessage(1)
	for _, e := range c.entities {
		e.Reset(c.params)
	}
}

func (c *Context) send(m types.ClientMessage) {
	if c.sender == nil {
		return
	}
	if err := c.sender.Send(m); err != nil {
		c.log.Debug("send skipped", zap.String("type", m.MessageType()), zap.Error(err))
	}
}
