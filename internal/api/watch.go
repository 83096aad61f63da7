package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/helix/internal/models"
)

const watchWriteTimeout = 10 * time.Second

// handleWatch upgrades to a websocket and pushes a batch snapshot every time
// the record changes, closing after the completed snapshot was sent.
func (s *Server) handleWatch(c *gin.Context) {
	batch, ok := s.ownedBatch(c)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "batch_id", batch.ID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends anything; reading only detects a closed socket.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.opts.WatchInterval)
	defer ticker.Stop()

	var last models.Batch
	sent := false
	for {
		if !sent || changed(last, batch) {
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			if err := conn.WriteJSON(batch); err != nil {
				s.logger.Debug("watch write failed", "batch_id", batch.ID, "error", err)
				return
			}
			last, sent = batch, true
		}
		if batch.Completed() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "completed")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		next, err := s.batches.GetBatch(ctx, batch.ID)
		if err != nil {
			s.logger.Warn("watch reload failed", "batch_id", batch.ID, "error", err)
			continue
		}
		batch = next
	}
}

func changed(a, b models.Batch) bool {
	if a.Status != b.Status || len(a.Items) != len(b.Items) || !a.UpdatedAt.Equal(b.UpdatedAt) {
		return true
	}
	for i := range a.Items {
		if a.Items[i] != b.Items[i] {
			return true
		}
	}
	return false
}
