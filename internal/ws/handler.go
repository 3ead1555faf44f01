// Package ws serves the relay's socket endpoint. Each connection gets a reader
// loop feeding the hub, a writer goroutine draining its outbox and a heartbeat.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/ghost-dash/internal/hub"
	"github.com/DoyleJ11/ghost-dash/internal/types"
)

type Options struct {
	// HeartbeatInterval is both the ping period and how long a ping may go
	// unanswered before the connection is dropped.
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	OutboxSize        int
	// OriginPatterns are extra hosts allowed to open the socket cross-origin.
	OriginPatterns []string
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 64
	}
	return o
}

func Handler(h *hub.Hub, opts Options, log *zap.Logger) http.HandlerFunc {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Warn("websocket accept", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		connID := uuid.NewString()
		log := log.With(zap.String("conn_id", connID))

		out := make(chan types.ServerMessage, opts.OutboxSize)
		if !h.Submit(hub.Attach{ConnID: connID, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
		defer h.Submit(hub.Detach{ConnID: connID})
		log.Debug("connection attached")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writeLoop(ctx, cancel, conn, out, opts.WriteTimeout, log)
		go heartbeat(ctx, cancel, conn, opts.HeartbeatInterval, log)

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch status := websocket.CloseStatus(err); status {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					log.Debug("connection closed", zap.Int("status", int(status)))
				default:
					if !errors.Is(err, context.Canceled) {
						log.Debug("read", zap.Error(err))
					}
				}
				return
			}

			msg, err := types.DecodeClient(data)
			if err != nil {
				log.Warn("malformed message discarded", zap.Error(err))
				continue
			}
			if !h.Submit(hub.Inbound{ConnID: connID, Msg: msg}) {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
		}
	}
}

func writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan types.ServerMessage, timeout time.Duration, log *zap.Logger) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return

		case m, ok := <-out:
			if !ok {
				// the hub let go of this connection
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			payload, err := types.Encode(m)
			if err != nil {
				log.Error("encode", zap.String("type", m.MessageType()), zap.Error(err))
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, timeout)
			err = conn.Write(wctx, websocket.MessageText, payload)
			wcancel()
			if err != nil {
				log.Debug("write", zap.String("type", m.MessageType()), zap.Error(err))
				return
			}
		}
	}
}

// heartbeat pings once per interval. A ping still unanswered when the next
// one is due ends the connection, which the hub sees as a disconnect.
func heartbeat(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(ctx, interval)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				if ctx.Err() == nil {
					log.Info("heartbeat timeout", zap.Error(err))
				}
				cancel()
				return
			}
		}
	}
}
