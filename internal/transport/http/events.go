package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

// EventSubscriber is the in-process event stream the admin dashboard reads.
type EventSubscriber interface {
	Subscribe(jobID string) (<-chan domain.LifecycleEvent, func())
}

const sseKeepAlive = 15 * time.Second

// streamEvents serves lifecycle events as server-sent events. The optional
// job_id query parameter narrows the stream to one job.
func (h *handlers) streamEvents(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !actor.CanManageStaffing() {
		writeError(w, http.StatusForbidden, codeForbidden, domain.ErrForbidden.Error())
		return
	}

	rc := http.NewResponseController(w)
	events, unsubscribe := h.events.Subscribe(r.URL.Query().Get("job_id"))
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("sse flush unsupported", "err", err)
		return
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("encode event", "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
