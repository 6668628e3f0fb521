package server

import (
	"time"

	"github.com/gin-gonic/gin"
)

const keepAlive = 15 * time.Second

// jobEvents streams job events as server-sent events. The first event is the
// current snapshot; the stream ends after a terminal event.
func (s *Server) jobEvents(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	snap, ch, cancel, err := s.engine.Subscribe(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("snapshot", snap)
	c.Writer.Flush()
	if snap.Status.IsTerminal() {
		return
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
		case ev, open := <-ch:
			if !open {
				s.logger.Debug("sse.closed", "job_id", id)
				return
			}
			c.SSEvent(string(ev.Kind), ev)
			if ev.Terminal() {
				c.Writer.Flush()
				s.logger.Debug("sse.closed", "job_id", id)
				return
			}
		}
		c.Writer.Flush()
	}
}
