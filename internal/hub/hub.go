// Package hub is the session registry of the relay server. A single goroutine
// owns every connection and session, so each inbound message is handled to
// completion before the next one starts.
package hub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/ghost-dash/internal/store"
	"github.com/DoyleJ11/ghost-dash/internal/types"
)

var (
	ErrNoCode  = errors.New("could not allocate a free game id")
	ErrStopped = errors.New("hub stopped")
)

const (
	maxCodeAttempts      = 16
	defaultRecordTimeout = 5 * time.Second
)

type Msg interface{ isHubMsg() }

// Attach registers a connection. The hub is the only writer of Outbox and
// closes it when the connection detaches or the hub shuts down.
type Attach struct {
	ConnID string
	Outbox chan types.ServerMessage
}

type Inbound struct {
	ConnID string
	Msg    types.ClientMessage
}

type Detach struct{ ConnID string }

type Shutdown struct{}

// GetView asks the loop for a copy of its connections and sessions. Reply
// must be buffered; the loop does not wait for the reader.
type GetView struct {
	Reply chan View
}

func (Attach) isHubMsg()   {}
func (Inbound) isHubMsg()  {}
func (Detach) isHubMsg()   {}
func (Shutdown) isHubMsg() {}
func (GetView) isHubMsg()  {}

type SessionView struct {
	Host  string
	Guest string
}

type View struct {
	Conns    int
	Sessions map[string]SessionView
}

type session struct {
	id    string
	host  string
	guest string
}

func (s *session) other(connID string) string {
	if connID == s.host {
		return s.guest
	}
	return s.host
}

type conn struct {
	outbox chan types.ServerMessage
	gameID string
}

type Hub struct {
	inbox    chan Msg
	conns    map[string]*conn
	sessions map[string]*session
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	log           *zap.Logger
	recorder      store.Recorder
	newCode       func() (string, error)
	recordTimeout time.Duration
	pending       sync.WaitGroup
}

type Option func(*Hub)

func WithLogger(log *zap.Logger) Option {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// WithRecorder stores every finished match relayed through the hub.
func WithRecorder(r store.Recorder) Option {
	return func(h *Hub) { h.recorder = r }
}

func WithCodeGenerator(gen func() (string, error)) Option {
	return func(h *Hub) { h.newCode = gen }
}

func NewHub(parent context.Context, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:         make(chan Msg, 64),
		conns:         make(map[string]*conn),
		sessions:      make(map[string]*session),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		log:           zap.NewNop(),
		newCode:       GenerateCode,
		recordTimeout: defaultRecordTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

// Submit queues m for the hub. It reports false once the hub has stopped, so
// callers never block on a dead hub.
func (h *Hub) Submit(m Msg) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Wait blocks until the hub has stopped and every pending result has been
// recorded.
func (h *Hub) Wait() {
	<-h.done
	h.pending.Wait()
}

// Stats reads the live connections and sessions through the loop.
func (h *Hub) Stats(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !h.Submit(GetView{Reply: reply}) {
		return View{}, ErrStopped
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Attach:
				h.conns[msg.ConnID] = &conn{outbox: msg.Outbox}

			case Inbound:
				h.handle(msg.ConnID, msg.Msg)

			case Detach:
				h.detach(msg.ConnID)

			case GetView:
				msg.Reply <- h.view()

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) handle(connID string, m types.ClientMessage) {
	c := h.conns[connID]
	if c == nil {
		h.log.Warn("message from unknown connection", zap.String("conn_id", connID), zap.String("type", m.MessageType()))
		return
	}

	switch msg := m.(type) {
	case types.CreateGame:
		h.leave(connID, c)
		code, err := h.freeCode()
		if err != nil {
			h.log.Error("create game", zap.String("conn_id", connID), zap.Error(err))
			return
		}
		h.sessions[code] = &session{id: code, host: connID}
		c.gameID = code
		h.log.Info("session created", zap.String("game_id", code), zap.String("conn_id", connID))
		h.send(connID, types.GameCreated{GameID: code})

	case types.JoinGame:
		h.leave(connID, c)
		id := strings.ToUpper(strings.TrimSpace(msg.GameID))
		s := h.sessions[id]
		switch {
		case s == nil:
			h.send(connID, types.GameNotFound{})
		case s.guest != "":
			h.send(connID, types.GameFull{})
		default:
			s.guest = connID
			c.gameID = s.id
			h.log.Info("session joined", zap.String("game_id", s.id), zap.String("conn_id", connID))
			h.send(connID, types.GameJoined{GameID: s.id})
			h.send(s.host, types.PlayerJoined{})
		}

	case types.StartGame:
		s := h.hostedSession(connID, c, msg.GameID, m)
		if s == nil || s.guest == "" {
			return
		}
		h.send(s.guest, types.StartSignal{})

	case types.PlayerState:
		s := h.sessionOf(connID, c, msg.GameID)
		if s == nil {
			return
		}
		if other := s.other(connID); other != "" {
			h.send(other, types.GameState{Player: msg.Player})
		}

	case types.UpdateParams:
		s := h.hostedSession(connID, c, "", m)
		if s == nil || s.guest == "" {
			return
		}
		h.send(s.guest, types.ParamsUpdate{Params: msg.Params})

	case types.RoundEnd:
		s := h.hostedSession(connID, c, msg.GameID, m)
		if s == nil {
			return
		}
		result := types.RoundResult{RoundSummary: msg.RoundSummary}
		h.send(s.host, result)
		if s.guest != "" {
			h.send(s.guest, result)
		}
		if msg.GameOver {
			h.record(s.id, msg.RoundSummary)
		}
	}
}

// sessionOf resolves the sender's session. A payload game id that names a
// different session is dropped.
func (h *Hub) sessionOf(connID string, c *conn, gameID string) *session {
	if c.gameID == "" {
		return nil
	}
	if gameID != "" && gameID != c.gameID {
		h.log.Warn("game id mismatch",
			zap.String("conn_id", connID),
			zap.String("game_id", c.gameID),
			zap.String("payload_game_id", gameID))
		return nil
	}
	return h.sessions[c.gameID]
}

func (h *Hub) hostedSession(connID string, c *conn, gameID string, m types.ClientMessage) *session {
	s := h.sessionOf(connID, c, gameID)
	if s == nil || s.host != connID {
		h.log.Warn("host-only message dropped", zap.String("conn_id", connID), zap.String("type", m.MessageType()))
		return nil
	}
	return s
}

func (h *Hub) freeCode() (string, error) {
	for range maxCodeAttempts {
		code, err := h.newCode()
		if err != nil {
			return "", err
		}
		if _, taken := h.sessions[code]; !taken {
			return code, nil
		}
		h.log.Info("collision on game id, regenerating", zap.String("game_id", code))
	}
	return "", ErrNoCode
}

// leave tears down the session c belongs to and tells the other member.
func (h *Hub) leave(connID string, c *conn) {
	if c.gameID == "" {
		return
	}
	s := h.sessions[c.gameID]
	c.gameID = ""
	if s == nil {
		return
	}
	delete(h.sessions, s.id)
	h.log.Info("session deleted", zap.String("game_id", s.id), zap.String("conn_id", connID))

	if other := s.other(connID); other != "" {
		if oc := h.conns[other]; oc != nil {
			oc.gameID = ""
		}
		h.send(other, types.OpponentDisconnected{})
	}
}

func (h *Hub) detach(connID string) {
	c := h.conns[connID]
	if c == nil {
		return
	}
	h.leave(connID, c)
	delete(h.conns, connID)
	close(c.outbox)
}

// send never blocks the hub. A full outbox means the peer is not keeping up,
// and its frame is skipped.
func (h *Hub) send(connID string, m types.ServerMessage) {
	c := h.conns[connID]
	if c == nil {
		return
	}
	select {
	case c.outbox <- m:
	default:
		h.log.Debug("outbox full, message skipped", zap.String("conn_id", connID), zap.String("type", m.MessageType()))
	}
}

func (h *Hub) record(gameID string, sum types.RoundSummary) {
	if h.recorder == nil {
		return
	}
	winner := "red"
	if sum.BlueScore > sum.RedScore {
		winner = "blue"
	}
	res := store.Result{
		GameID:     gameID,
		BlueScore:  sum.BlueScore,
		RedScore:   sum.RedScore,
		Winner:     winner,
		Message:    sum.Message,
		FinishedAt: time.Now().UTC(),
	}

	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		// not h.ctx: a result reported just before shutdown should still land
		ctx, cancel := context.WithTimeout(context.Background(), h.recordTimeout)
		defer cancel()
		if err := h.recorder.Record(ctx, res); err != nil {
			h.log.Warn("record result", zap.String("game_id", gameID), zap.Error(err))
		}
	}()
}

func (h *Hub) view() View {
	v := View{Conns: len(h.conns), Sessions: make(map[string]SessionView, len(h.sessions))}
	for id, s := range h.sessions {
		v.Sessions[id] = SessionView{Host: s.host, Guest: s.guest}
	}
	return v
}

func (h *Hub) shutdown() {
	for id, c := range h.conns {
		close(c.outbox)
		delete(h.conns, id)
	}
	clear(h.sessions)
	h.cancel()
}
