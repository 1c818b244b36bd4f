package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/reverie-ai/reverie/internal/service"
)

const (
	jobPollInterval = 200 * time.Millisecond
	wsWriteTimeout  = 10 * time.Second
)

var jobEventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
}

// handleJobEvents streams job snapshots over a websocket until the job
// finishes. Each message is one snapshot; a normal close follows the
// final one.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.GetJob(chi.URLParam(r, "id"))
	if job == nil {
		s.writeError(w, http.StatusNotFound, errors.New("job not found"))
		return
	}

	conn, err := jobEventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Drain reads so control frames are processed and disconnects surface.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	var lastStatus service.JobStatus
	lastProgress := -1
	for {
		snap := job.Snapshot()
		if snap.Status != lastStatus || snap.Progress != lastProgress {
			lastStatus, lastProgress = snap.Status, snap.Progress

			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(&snap); err != nil {
				return
			}
			if snap.Status == service.JobStatusCompleted || snap.Status == service.JobStatusFailed {
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(wsWriteTimeout),
				)
				return
			}
		}

		select {
		case <-disconnected:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
