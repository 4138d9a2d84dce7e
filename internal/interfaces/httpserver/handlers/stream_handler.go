package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/realtime"
	"github.com/deskline/queue-api/internal/interfaces/httpserver/responses"
)

const (
	streamPingInterval = 25 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamReadTimeout  = 60 * time.Second
)

// StreamHandler pushes the caller's dashboard over a WebSocket whenever it
// changes.
type StreamHandler struct {
	watcher  Watcher
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewStreamHandler constructs the handler.
func NewStreamHandler(watcher Watcher, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		watcher: watcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log.With().Str("handler", "stream").Logger(),
	}
}

type streamError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Stream handles GET /v1/stream
// @Summary Stream the caller's dashboard
// @Description Upgrades to a WebSocket and pushes a dashboard frame whenever the queue changes.
// @Tags Queue
// @Produce json
// @Security BearerAuth
// @Success 101 {object} responses.DashboardResponse
// @Router /v1/stream [get]
func (h *StreamHandler) Stream(c *gin.Context) {
	caller := callerFrom(c)
	if err := caller.Validate(c.Request.Context()); err != nil {
		responses.HandleError(c, err, "stream requires a caller")
		return
	}
	filter := queueFilter(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	watcher, err := h.watcher.Watch(ctx, caller, filter)
	if err != nil {
		_ = conn.WriteJSON(streamError{Type: "error", Message: err.Error()})
		return
	}
	defer watcher.Stop()

	log := h.log.With().Str("organization_id", caller.OrganizationID).Str("agent_id", caller.AgentID).Logger()
	log.Debug().Msg("stream opened")

	go h.readLoop(conn, watcher, cancel)

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(streamWriteTimeout))
			log.Debug().Msg("stream closed")
			return
		case d := <-watcher.Updates():
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(responses.NewDashboardResponse(d)); err != nil {
				log.Debug().Err(err).Msg("stream write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// readLoop keeps the read deadline alive and turns any client text frame
// into a refresh. It cancels the stream when the client goes away.
func (h *StreamHandler) readLoop(conn *websocket.Conn, watcher *realtime.QueueWatcher, cancel context.CancelFunc) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	})

	for {
		kind, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		if kind == websocket.TextMessage {
			watcher.Trigger()
		}
	}
}
