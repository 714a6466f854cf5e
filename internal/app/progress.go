package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/aipowergrid/imagine-mint/internal/progress"
)

const progressBuffer = 32

// handleProgress streams progress events as server-sent events. With a
// session query parameter only that session's events are sent; without one
// every event is sent with its session removed.
func (a *App) handleProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan progress.Event, progressBuffer)
	deliver := func(e progress.Event) {
		select {
		case events <- e:
		default:
			log.Printf("⚠️ progress stream full, dropping step %d for session %s", e.Step, e.Session)
		}
	}

	// Unscoped listeners see every run, so they never learn session ids.
	var sub progress.Subscription
	if session := r.URL.Query().Get("session"); session != "" {
		sub = a.notifier.SubscribeSession(session, deliver)
	} else {
		sub = a.notifier.Subscribe(func(e progress.Event) {
			e.Session = ""
			deliver(e)
		})
	}
	defer a.notifier.Unsubscribe(sub)

	ping := time.NewTicker(a.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-a.streamsDone:
			return
		case e := <-events:
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
