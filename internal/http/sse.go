package http

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleStream streams ranking snapshots via Server-Sent Events.
//
// Event types are "partial" and "final"; data is the snapshot JSON. With
// ?final_only=true partial snapshots are skipped. The stream stays open
// until the client disconnects.
//
//	GET /api/v1/snapshots/stream
//
//	event: partial
//	data: {"id":"…","request_id":4,"final":false,"candidates":[…]}
//
//	event: final
//	data: {"id":"…","request_id":4,"final":true,"status":"ok","candidates":[…]}
func (s *Server) handleStream(c echo.Context) error {
	finalOnly := c.QueryParam("final_only") == "true"

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Response().WriteHeader(200)
	c.Response().Flush()

	snapshots, unsubscribe := s.snapshots.Subscribe(16)
	defer unsubscribe()

	// Heartbeat ticker to prevent proxy timeouts
	ticker := time.NewTicker(s.config.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if finalOnly && !snap.Final {
				continue
			}
			data, err := json.Marshal(snap)
			if err != nil {
				s.logger.Warn("failed to encode snapshot", zap.Error(err))
				continue
			}
			fmt.Fprintf(c.Response(), "event: %s\n", snap.Kind())
			fmt.Fprintf(c.Response(), "data: %s\n\n", data)
			c.Response().Flush()

		case <-ticker.C:
			fmt.Fprintf(c.Response(), ": heartbeat\n\n")
			c.Response().Flush()

		case <-c.Request().Context().Done():
			// Client disconnected
			return nil
		}
	}
}
