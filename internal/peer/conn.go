// Package peer is the client end of the relay socket.
package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/ghost-dash/internal/types"
)

var ErrClosed = errors.New("connection closed")
var ErrOutboxFull = errors.New("outbox full")

const (
	outboxSize   = 64
	inboxSize    = 64
	writeTimeout = 3 * time.Second
)

type Conn struct {
	ws     *websocket.Conn
	out    chan types.ClientMessage
	in     chan types.ServerMessage
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	log    *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Dial opens a connection to the relay at url (ws:// or wss://).
func Dial(ctx context.Context, url string, log *zap.Logger) (*Conn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(runCtx)
	c := &Conn{
		ws:     ws,
		out:    make(chan types.ClientMessage, outboxSize),
		in:     make(chan types.ServerMessage, inboxSize),
		ctx:    gctx,
		cancel: cancel,
		group:  group,
		log:    log,
	}
	group.Go(c.readLoop)
	group.Go(c.writeLoop)
	return c, nil
}

// Send queues m without blocking. It fails when the connection is no longer
// open or the queue is full; callers are free to drop the message.
func (c *Conn) Send(m types.ClientMessage) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case c.out <- m:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Incoming delivers decoded server messages. It is closed when the
// connection ends.
func (c *Conn) Incoming() <-chan types.ServerMessage { return c.in }

// Done is closed once the connection has stopped.
func (c *Conn) Done() <-chan struct{} { return c.ctx.Done() }

// Wait blocks until both pumps have exited and returns the first failure.
func (c *Conn) Wait() error { return c.group.Wait() }

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		err := ignoreClosed(c.ws.Close(websocket.StatusNormalClosure, "bye"))
		c.cancel()
		c.closeErr = multierr.Append(err, c.group.Wait())
	})
	return c.closeErr
}

func (c *Conn) readLoop() error {
	defer close(c.in)
	// a server-side close stops the writer too
	defer c.cancel()
	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			return ignoreClosed(err)
		}
		m, err := types.DecodeServer(data)
		if err != nil {
			c.log.Warn("malformed message discarded", zap.Error(err))
			continue
		}
		select {
		case c.in <- m:
		case <-c.ctx.Done():
			return nil
		}
	}
}

func (c *Conn) writeLoop() error {
	for {
		select {
		case <-c.ctx.Done():
			return nil
		case m := <-c.out:
			payload, err := types.Encode(m)
			if err != nil {
				c.log.Error("encode", zap.String("type", m.MessageType()), zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err = c.ws.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return ignoreClosed(err)
			}
		}
	}
}

func ignoreClosed(err error) error {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
