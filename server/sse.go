package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/agentstream/logging"
	"github.com/hupe1980/agentstream/stream"
)

// SetSSEHeaders prepares w for an unbuffered event stream.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

func (s *Server) handleChatStream(c *gin.Context) {
	message := c.Param("message")
	checkpointID := c.Query("checkpoint_id")

	st, err := s.runner.Run(c.Request.Context(), message, checkpointID)
	if err != nil {
		s.reject(c, transportSSE, err)
		return
	}
	done := s.opts.Metrics.StreamStarted(transportSSE)
	logger := logging.With(s.opts.Logger, "session_id", st.SessionID, "run_id", st.RunID, "transport", transportSSE)

	SetSSEHeaders(c.Writer)
	c.Status(http.StatusOK)
	c.Writer.Flush()

	enc := stream.NewEncoder(c.Writer)
	written := 0
	for rec := range st.Records() {
		if err := enc.Encode(rec); err != nil {
			logger.Debug("server.stream.write_failed", "error", err.Error())
			_ = s.runner.Cancel(st.RunID)
			drain(st)
			break
		}
		c.Writer.Flush()
		written++
	}

	status := outcome(st.Err())
	done(status)
	logger.Info("server.stream.closed", "status", status, "records", written)
}
