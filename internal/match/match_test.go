package match

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/ghost-dash/internal/engine"
	"github.com/DoyleJ11/ghost-dash/internal/types"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const frame = 16 * time.Millisecond

type recordingSender struct {
	msgs []types.ClientMessage
	err  error
}

func (s *recordingSender) Send(m types.ClientMessage) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, m)
	return nil
}

func (s *recordingSender) ofType(typ string) []types.ClientMessage {
	var out []types.ClientMessage
	for _, m := range s.msgs {
		if m.MessageType() == typ {
			out = append(out, m)
		}
	}
	return out
}

func (s *recordingSender) last(t *testing.T) types.ClientMessage {
	t.Helper()
	require.NotEmpty(t, s.msgs)
	return s.msgs[len(s.msgs)-1]
}

// runCountdown ticks through the countdown started at start and returns the
// moment the round went live.
func runCountdown(t *testing.T, c *Context, start time.Time) time.Time {
	t.Helper()
	for i := 1; i <= CountdownFrom; i++ {
		c.Tick(start.Add(time.Duration(i) * time.Second))
	}
	require.Equal(t, PhaseActive, c.State().Phase)
	return start.Add(CountdownFrom * time.Second)
}

// playRound starts a round, knocks loser out and returns the time of the
// deciding tick.
func playRound(t *testing.T, c *Context, now time.Time, loser engine.Slot) time.Time {
	t.Helper()
	require.NoError(t, c.Start(now))
	now = runCountdown(t, c, now).Add(frame)
	c.Entity(loser).Pos = engine.Vec2{Y: 1000}
	c.Tick(now)
	return now
}

func hostWithOpponent(t *testing.T) (*Context, *recordingSender) {
	t.Helper()
	s := &recordingSender{}
	c := New(WithSender(s))
	c.Handle(types.GameCreated{GameID: "ABC123"}, t0)
	c.Handle(types.PlayerJoined{}, t0)
	return c, s
}

func stateFrom(t *testing.T, snap types.EntitySnapshot) types.GameState {
	t.Helper()
	ps, err := types.NewPlayerState("ABC123", snap)
	require.NoError(t, err)
	return types.GameState{Player: ps.Player}
}

func TestCountdown_ThreeTwoOneThenRound(t *testing.T) {
	c := New()
	require.NoError(t, c.Start(t0))
	assert.Equal(t, PhaseCountdown, c.State().Phase)
	assert.Equal(t, 3, c.State().Countdown)

	c.Tick(t0.Add(999 * time.Millisecond))
	assert.Equal(t, 3, c.State().Countdown)
	c.Tick(t0.Add(time.Second))
	assert.Equal(t, 2, c.State().Countdown)
	c.Tick(t0.Add(2 * time.Second))
	assert.Equal(t, 1, c.State().Countdown)
	c.Tick(t0.Add(3 * time.Second))

	assert.Equal(t, PhaseActive, c.State().Phase)
	assert.Zero(t, c.State().Countdown)
	assert.Equal(t, "Round 1", c.Message())
	assert.Equal(t, engine.Spawn(engine.SlotBlue), c.Entity(engine.SlotBlue).Pos)
	assert.Equal(t, engine.Spawn(engine.SlotRed), c.Entity(engine.SlotRed).Pos)

	assert.ErrorIs(t, c.Start(t0.Add(4*time.Second)), ErrBadPhase)
}

func TestRound_ExitScoresExactlyOnce(t *testing.T) {
	c := New()
	now := playRound(t, c, t0, engine.SlotRed)

	st := c.State()
	assert.Equal(t, 1, st.BlueScore)
	assert.Zero(t, st.RedScore)
	assert.Equal(t, 2, st.Round)
	assert.Equal(t, PhaseWaiting, st.Phase)
	assert.Equal(t, "Blue wins the round!", c.Message())

	for i := 1; i <= 5; i++ {
		c.Tick(now.Add(time.Duration(i) * frame))
	}
	assert.Equal(t, st, c.State())
}

func TestRound_GameOverWhenScoreExceedsHalf(t *testing.T) {
	c := New(WithMaxRounds(3))
	now := playRound(t, c, t0, engine.SlotRed)
	require.Equal(t, PhaseWaiting, c.State().Phase)

	now = playRound(t, c, now, engine.SlotRed)
	st := c.State()
	assert.Equal(t, PhaseGameOver, st.Phase, "2 > floor(3/2) ends the game in round 2")
	assert.Equal(t, 2, st.BlueScore)
	assert.Equal(t, 1, st.Round)
	assert.Equal(t, "Blue wins the game!", c.Message())

	require.NoError(t, c.Start(now))
	st = c.State()
	assert.Equal(t, PhaseCountdown, st.Phase)
	assert.Zero(t, st.BlueScore)
	assert.Zero(t, st.RedScore)
	assert.Equal(t, 1, st.Round)
}

func TestRound_GameOverAtLastRoundTieGoesToRed(t *testing.T) {
	c := New(WithMaxRounds(4))
	now := t0
	for _, loser := range []engine.Slot{engine.SlotRed, engine.SlotBlue, engine.SlotRed} {
		now = playRound(t, c, now, loser)
		require.Equal(t, PhaseWaiting, c.State().Phase)
	}

	playRound(t, c, now, engine.SlotBlue)
	st := c.State()
	assert.Equal(t, PhaseGameOver, st.Phase)
	assert.Equal(t, 2, st.BlueScore)
	assert.Equal(t, 2, st.RedScore)
	assert.Equal(t, "Red wins the game!", c.Message())
}

func TestRound_BothOutBlueLoses(t *testing.T) {
	c := New()
	require.NoError(t, c.Start(t0))
	now := runCountdown(t, c, t0)
	c.Entity(engine.SlotBlue).Pos = engine.Vec2{X: -1000}
	c.Entity(engine.SlotRed).Pos = engine.Vec2{X: 1000}
	c.Tick(now.Add(frame))

	assert.Equal(t, 1, c.State().RedScore)
	assert.Zero(t, c.State().BlueScore)
}

func TestInput_Guards(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.ChargeStart(engine.SlotBlue), ErrRoundInactive)
	assert.ErrorIs(t, c.ActivateGhost(engine.SlotRed, t0), ErrRoundInactive)

	host, _ := hostWithOpponent(t)
	require.NoError(t, host.Start(t0))
	runCountdown(t, host, t0)
	assert.ErrorIs(t, host.ChargeStart(engine.SlotRed), ErrNotControlled)
	assert.ErrorIs(t, host.ChargeRelease(engine.SlotRed, engine.Vec2{}), ErrNotControlled)
	assert.NoError(t, host.ChargeStart(engine.SlotBlue))
	assert.ErrorIs(t, host.ChargeStart(engine.SlotBlue), engine.ErrAlreadyCharging)
}

func TestInput_ChargeAndRelease(t *testing.T) {
	c := New()
	require.NoError(t, c.Start(t0))
	now := runCountdown(t, c, t0)

	require.NoError(t, c.ChargeStart(engine.SlotBlue))
	for i := 1; i <= 30; i++ {
		c.Tick(now.Add(time.Duration(i) * frame))
	}
	blue := c.Entity(engine.SlotBlue)
	require.Equal(t, 1.0, blue.DashPower)

	// aim straight up from the spawn
	require.NoError(t, c.ChargeRelease(engine.SlotBlue, engine.Vec2{X: -80, Y: 100}))
	assert.InDelta(t, 0, blue.Vel.X, 1e-9)
	assert.InDelta(t, c.Params().MaxDashPower, blue.Vel.Y, 1e-9)
	assert.ErrorIs(t, c.ChargeRelease(engine.SlotBlue, engine.Vec2{}), engine.ErrNotCharging)
}

func TestGhost_DeactivatesAfterDuration(t *testing.T) {
	c := New()
	require.NoError(t, c.Start(t0))
	now := runCountdown(t, c, t0)

	blue, red := c.Entity(engine.SlotBlue), c.Entity(engine.SlotRed)
	require.NoError(t, c.ActivateGhost(engine.SlotBlue, now))
	assert.True(t, blue.GhostActive)

	// walk into red while ghosted; no collision happens
	red.Pos = blue.Pos.Add(engine.Vec2{X: 30, Y: 40})
	c.Tick(now.Add(400 * time.Millisecond))
	assert.True(t, blue.GhostActive)
	assert.Zero(t, blue.Vel)

	c.Tick(now.Add(500 * time.Millisecond))
	assert.False(t, blue.GhostActive)
	assert.Less(t, blue.Vel.X, 0.0, "separation kick pushes the pair apart")
	assert.Greater(t, red.Vel.X, 0.0)
}

func TestGhost_StaleTimerCancelledOnNewRound(t *testing.T) {
	c := New()
	require.NoError(t, c.SetParam("ghostDuration", 10))
	require.NoError(t, c.Start(t0))
	now := runCountdown(t, c, t0)

	require.NoError(t, c.ActivateGhost(engine.SlotBlue, now))
	require.True(t, c.sched.Pending(ghostKey(engine.SlotBlue)))

	c.Entity(engine.SlotRed).Pos = engine.Vec2{X: 1000}
	c.Tick(now.Add(frame))
	require.Equal(t, PhaseWaiting, c.State().Phase)

	now = now.Add(time.Second)
	require.NoError(t, c.Start(now))
	runCountdown(t, c, now)
	assert.False(t, c.sched.Pending(ghostKey(engine.SlotBlue)))
	assert.False(t, c.Entity(engine.SlotBlue).GhostActive)
}

func TestHost_SessionFlow(t *testing.T) {
	s := &recordingSender{}
	c := New(WithSender(s))
	c.Handle(types.GameCreated{GameID: "ABC123"}, t0)

	assert.Equal(t, ModeHost, c.Mode())
	assert.Equal(t, "ABC123", c.GameID())
	assert.Equal(t, StatusWaitingForOpponent, c.Status())
	slot, ok := c.LocalSlot()
	require.True(t, ok)
	assert.Equal(t, engine.SlotBlue, slot)
	assert.ErrorIs(t, c.Start(t0), ErrNoOpponent)

	c.Handle(types.PlayerJoined{}, t0)
	assert.Equal(t, StatusOpponentJoined, c.Status())
	push, ok := s.last(t).(types.UpdateParams)
	require.True(t, ok, "host pushes its parameters to the joiner")
	var pushed map[string]float64
	require.NoError(t, json.Unmarshal(push.Params, &pushed))
	assert.Equal(t, engine.DefaultParams().Map(), pushed)

	require.NoError(t, c.Start(t0))
	assert.Equal(t, types.StartGame{GameID: "ABC123"}, s.last(t))

	now := runCountdown(t, c, t0)
	assert.Len(t, s.ofType(types.TypePlayerState), 1, "one state per active tick")
	c.Tick(now.Add(frame))
	assert.Len(t, s.ofType(types.TypePlayerState), 2)

	// red's owner reports it far outside the arena
	c.Handle(stateFrom(t, types.EntitySnapshot{X: 1000}), now.Add(frame))
	c.Tick(now.Add(2 * frame))

	assert.Equal(t, PhaseRoundEnded, c.State().Phase)
	want := types.RoundEnd{GameID: "ABC123", RoundSummary: types.RoundSummary{
		BlueScore: 1, Message: "Blue wins the round!", NextRound: 2,
	}}
	ends := s.ofType(types.TypeRoundEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, want, ends[0])
	assert.ErrorIs(t, c.Start(now), ErrBadPhase, "waits for the relayed verdict")

	c.Handle(types.RoundResult{RoundSummary: want.RoundSummary}, now.Add(3*frame))
	st := c.State()
	assert.Equal(t, PhaseWaiting, st.Phase)
	assert.Equal(t, 2, st.Round)
	assert.Equal(t, 1, st.BlueScore)
}

func TestHost_RemoteEntityOnlyMovesBySnapshot(t *testing.T) {
	c, _ := hostWithOpponent(t)
	require.NoError(t, c.Start(t0))
	now := runCountdown(t, c, t0)

	blue, red := c.Entity(engine.SlotBlue), c.Entity(engine.SlotRed)
	blue.Vel = engine.Vec2{X: 5}
	red.Pos = engine.Vec2{X: -40}
	red.Vel = engine.Vec2{X: -5}

	c.Tick(now.Add(frame))
	assert.Equal(t, engine.Vec2{X: -40}, red.Pos)
	assert.Equal(t, engine.Vec2{X: -5}, red.Vel)
	assert.Less(t, blue.Vel.X, 0.0, "blue bounced off red")
}

func TestHost_SetParamPushesToGuest(t *testing.T) {
	c, s := hostWithOpponent(t)
	before := len(s.ofType(types.TypeUpdateParams))

	require.NoError(t, c.SetParam("friction", 0.1))
	assert.Len(t, s.ofType(types.TypeUpdateParams), before+1)
	assert.ErrorIs(t, c.SetParam("gravity", 1), engine.ErrUnknownParam)
	assert.Equal(t, 0.1, c.Params().Friction)
}

func TestGuest_SessionFlow(t *testing.T) {
	s := &recordingSender{}
	c := New(WithSender(s))
	c.Handle(types.GameJoined{GameID: "ABC123"}, t0)

	assert.Equal(t, ModeGuest, c.Mode())
	assert.True(t, c.HasOpponent())
	slot, _ := c.LocalSlot()
	assert.Equal(t, engine.SlotRed, slot)
	assert.ErrorIs(t, c.Start(t0), ErrNotHost)
	assert.ErrorIs(t, c.SetParam("mass", 1), ErrNotHost)

	c.Handle(types.ParamsUpdate{Params: json.RawMessage(`{"mass":9,"bogus":1}`)}, t0)
	assert.Equal(t, 9.0, c.Params().Mass)

	c.Handle(types.StartSignal{}, t0)
	require.Equal(t, PhaseCountdown, c.State().Phase)
	now := runCountdown(t, c, t0)

	sent, ok := s.last(t).(types.PlayerState)
	require.True(t, ok)
	var snap types.EntitySnapshot
	require.NoError(t, json.Unmarshal(sent.Player, &snap))
	assert.Equal(t, engine.Spawn(engine.SlotRed).X, snap.X, "guest reports its own red entity")

	c.Handle(stateFrom(t, types.EntitySnapshot{Y: 1000}), now.Add(frame))
	states := len(s.ofType(types.TypePlayerState))
	c.Tick(now.Add(frame))
	assert.Equal(t, PhaseActive, c.State().Phase, "guest keeps playing until the verdict")
	assert.Zero(t, c.State().RedScore, "guest does not score on its own")
	assert.Empty(t, s.ofType(types.TypeRoundEnd))
	assert.Len(t, s.ofType(types.TypePlayerState), states+1)

	c.Handle(types.RoundResult{RoundSummary: types.RoundSummary{
		RedScore: 1, Message: "Red wins the round!", NextRound: 2,
	}}, now.Add(2*frame))
	assert.Equal(t, 1, c.State().RedScore)
	assert.Equal(t, PhaseWaiting, c.State().Phase)
	assert.Equal(t, "Red wins the round!", c.Message())
}

func TestGuest_StartAfterGameOverResets(t *testing.T) {
	c := New()
	c.Handle(types.GameJoined{GameID: "ABC123"}, t0)
	c.Handle(types.RoundResult{RoundSummary: types.RoundSummary{
		BlueScore: 2, Message: "Blue wins the game!", NextRound: 1, GameOver: true,
	}}, t0)
	require.Equal(t, PhaseGameOver, c.State().Phase)

	c.Handle(types.StartSignal{}, t0)
	st := c.State()
	assert.Equal(t, PhaseCountdown, st.Phase)
	assert.Zero(t, st.BlueScore)
}

func TestGuest_InterpolatesRemoteOnly(t *testing.T) {
	c := New()
	c.Handle(types.GameJoined{GameID: "ABC123"}, t0)

	c.Handle(stateFrom(t, types.EntitySnapshot{X: 0}), t0)
	c.Handle(stateFrom(t, types.EntitySnapshot{X: 10}), t0.Add(100*time.Millisecond))

	got := c.DisplayPosition(engine.SlotBlue, t0.Add(150*time.Millisecond))
	assert.InDelta(t, 5, got.X, 1e-9)
	assert.InDelta(t, 0, got.Y, 1e-9)
	assert.Equal(t, 10.0, c.Entity(engine.SlotBlue).Pos.X, "physics uses the latest snapshot")

	red := c.Entity(engine.SlotRed)
	red.Pos = engine.Vec2{X: 33, Y: 3}
	assert.Equal(t, red.Pos, c.DisplayPosition(engine.SlotRed, t0.Add(150*time.Millisecond)))
}

func TestOpponentDisconnected_StopsRound(t *testing.T) {
	c, _ := hostWithOpponent(t)
	require.NoError(t, c.Start(t0))
	now := runCountdown(t, c, t0)
	require.NoError(t, c.ActivateGhost(engine.SlotBlue, now))

	c.Handle(types.OpponentDisconnected{}, now)
	assert.Equal(t, PhaseWaiting, c.State().Phase)
	assert.Equal(t, StatusOpponentDisconnected, c.Status())
	assert.False(t, c.HasOpponent())
	assert.Zero(t, c.sched.Len())
	assert.ErrorIs(t, c.Start(now), ErrNoOpponent)
}

func TestSendFailuresAreSkipped(t *testing.T) {
	c, s := hostWithOpponent(t)
	require.NoError(t, c.Start(t0))
	s.err = errors.New("connection closed")

	now := runCountdown(t, c, t0)
	c.Tick(now.Add(frame))
	assert.Equal(t, PhaseActive, c.State().Phase)
}

func TestStatusMessages(t *testing.T) {
	c := New()
	c.Handle(types.GameNotFound{}, t0)
	assert.Equal(t, StatusGameNotFound, c.Status())
	c.Handle(types.GameFull{}, t0)
	assert.Equal(t, StatusGameFull, c.Status())
	assert.Equal(t, ModeLocal, c.Mode())
}
