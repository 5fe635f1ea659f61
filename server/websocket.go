package server

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/hupe1980/agentstream/logging"
	"github.com/hupe1980/agentstream/stream"
)

const wsWriteWait = 10 * time.Second

// ChatRequest is the single frame a WebSocket client sends to start a run.
// Message is forwarded as-is; an empty or missing message is a valid turn.
type ChatRequest struct {
	Message      string `json:"message"`
	CheckpointID string `json:"checkpoint_id,omitempty"`
}

// handleChatWebSocket serves one run per connection. Request-level errors
// are sent as an error record followed by a close frame.
func (s *Server) handleChatWebSocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.opts.Logger.Warn("server.ws.upgrade_failed", "error", err.Error())
		return
	}
	defer ws.Close()

	var req ChatRequest
	if err := ws.ReadJSON(&req); err != nil {
		s.opts.Logger.Debug("server.ws.read_failed", "error", err.Error())
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	st, err := s.runner.Run(ctx, req.Message, req.CheckpointID)
	if err != nil {
		_, status := rejectStatus(err)
		s.opts.Metrics.RequestRejected(transportWebSocket, status)
		s.closeWithError(ws, websocket.ClosePolicyViolation, err)
		return
	}
	done := s.opts.Metrics.StreamStarted(transportWebSocket)
	logger := logging.With(s.opts.Logger, "session_id", st.SessionID, "run_id", st.RunID, "transport", transportWebSocket)

	// The hijacked connection no longer cancels the request context, so a
	// reader watches for the client going away.
	go func() {
		for {
			if _, _, err := ws.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	written := 0
	for rec := range st.Records() {
		_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := ws.WriteJSON(rec); err != nil {
			logger.Debug("server.stream.write_failed", "error", err.Error())
			cancel()
			drain(st)
			break
		}
		written++
	}

	status := outcome(st.Err())
	done(status)
	logger.Info("server.stream.closed", "status", status, "records", written)

	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
}

func (s *Server) closeWithError(ws *websocket.Conn, code int, err error) {
	_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = ws.WriteJSON(stream.Error(err.Error()))
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, truncateReason(err.Error())),
		time.Now().Add(wsWriteWait))
}

// truncateReason keeps a close reason within the 123 byte control frame limit.
func truncateReason(s string) string {
	const limit = 123
	if len(s) <= limit {
		return s
	}
	for i := limit; i > 0; i-- {
		if utf8.RuneStart(s[i]) {
			return s[:i]
		}
	}
	return ""
}
