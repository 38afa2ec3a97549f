package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/job-matcher/internal/services"
)

type EventsHandler struct {
	worker    services.Worker
	heartbeat time.Duration
}

func NewEventsHandler(worker services.Worker, heartbeat time.Duration) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &EventsHandler{
		worker:    worker,
		heartbeat: heartbeat,
	}
}

// HandleEvents handles GET /runs/:id/events as a server-sent event stream.
// The first event is a snapshot of the run; the stream ends after the
// complete event.
func (h *EventsHandler) HandleEvents(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid run ID format",
		})
	}

	if _, err := h.worker.Snapshot(runID); err != nil {
		return runError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	hub := h.worker.Events()
	id := runID.String()
	ch := hub.Subscribe(id)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer hub.Unsubscribe(id, ch)

		snap, err := h.worker.Snapshot(runID)
		if err != nil {
			return
		}
		if snap.Status.Finished() {
			_ = writeEvent(w, string(services.EventComplete), snap)
			return
		}
		if err := writeEvent(w, "snapshot", snap); err != nil {
			return
		}

		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if err := writeEvent(w, string(evt.Type), evt); err != nil {
					log.Printf("ℹ️  SSE client for run %s disconnected\n", id)
					return
				}
				if evt.Type == services.EventComplete {
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}

func writeEvent(w *bufio.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
