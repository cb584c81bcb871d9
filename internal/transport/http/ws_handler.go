package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/yemishi/chatteroo-server/internal/config"
	"github.com/yemishi/chatteroo-server/internal/core"
	"github.com/yemishi/chatteroo-server/internal/proto"
	"github.com/yemishi/chatteroo-server/internal/utils"
)

var errSessionEnded = errors.New("session ended")

// WSHandler upgrades HTTP connections and bridges them to core.Session.
type WSHandler struct {
	hub             *core.Hub
	originPatterns  []string
	maxMessageBytes int64
	sendBuffer      int
	rateLimit       int
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		hub:             hub,
		originPatterns:  cfg.AllowedOrigins,
		maxMessageBytes: cfg.MaxMessageBytes,
		sendBuffer:      cfg.SendBuffer,
		rateLimit:       cfg.RateLimitPerMinute,
		log:             logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: len(h.originPatterns) == 0,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	sess := core.NewSession(utils.NewConnID(), r.URL.Query().Get(proto.HandshakeUserParam), h.sendBuffer)
	if err := h.hub.Attach(sess); err != nil {
		h.log.Warn().Err(err).Str("conn_id", sess.ID).Msg("attach failed")
		conn.Close(websocket.StatusTryAgainLater, "server shutting down")
		return
	}
	defer h.hub.Detach(sess)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sess)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	if errors.Is(err, errSessionEnded) {
		return
	}

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", sess.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop dispatches inbound frames one at a time so a connection's events
// are handled in arrival order.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session) error {
	limiter := newRateLimiter(h.rateLimit)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			h.hub.ReplyError(sess, core.NewCoreError(core.ErrCodeBadRequest, "text frames only"))
			continue
		}

		frame, err := decodeFrame(data)
		if err != nil {
			h.log.Debug().Err(err).Str("conn_id", sess.ID).Msg("failed to decode frame")
			h.hub.ReplyError(sess, core.NewCoreError(core.ErrCodeBadRequest, "malformed frame"))
			continue
		}

		if !limiter.allow() {
			h.hub.ReplyError(sess, core.NewCoreError(core.ErrCodeRateLimited, "too many events"))
			continue
		}

		if err := h.hub.Dispatch(ctx, sess, frame.Event, frame.Data); errors.Is(err, core.ErrSessionClosed) {
			// the writer notices the closed queue and ends the connection
			<-ctx.Done()
			return nil
		}
	}
}

// writeLoop is the only writer of conn. Once the hub closes the session's
// queue it completes the close handshake itself, while the reader is still
// running, and returns errSessionEnded.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session) error {
	for {
		select {
		case event, ok := <-sess.Events():
			if !ok {
				if err := conn.Close(websocket.StatusNormalClosure, "closing"); err != nil {
					h.log.Debug().Err(err).Str("conn_id", sess.ID).Msg("close after session end")
				}
				return errSessionEnded
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", sess.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
