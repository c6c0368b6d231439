package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"miniforge/internal/jobqueue"
)

const (
	watchWriteWait    = 10 * time.Second
	watchPollInterval = 2 * time.Second
)

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type watchEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// watchJob streams the job's status over a websocket until it reaches a
// terminal state or the client goes away.
func (h *Handler) watchJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.Store.Get(r.Context(), id); errors.Is(err, jobqueue.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	conn, err := watchUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: watch upgrade for %s: %v", id, err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	lastStatus := ""
	for {
		job, err := h.Store.Get(r.Context(), id)
		if err != nil {
			return
		}
		if string(job.Status) != lastStatus {
			lastStatus = string(job.Status)
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteJSON(watchEvent{
				ID:     job.ID,
				Status: lastStatus,
				Result: job.Result,
				Error:  job.Error,
			}); err != nil {
				return
			}
		}
		if job.Terminal() {
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
