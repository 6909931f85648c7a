package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/medicore/hospital-portal/app/errors"
	authmw "github.com/medicore/hospital-portal/app/middleware"
)

// sseHeartbeatInterval keeps idle streams alive through proxies that reap
// quiet connections.
const sseHeartbeatInterval = 25 * time.Second

// notificationsStreamHandler streams the user's notifications as server-sent
// events. The subscription lives for exactly as long as the request.
func (app *application) notificationsStreamHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authmw.UserIDFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, errors.NewUnauthorized("user not found in context"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorResponse(w, errors.NewInternal("streaming not supported"))
		return
	}

	sub, err := app.notifyBus.Subscribe(r.Context(), userID)
	if err != nil {
		log := authmw.GetLoggerFromContext(r.Context())
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to subscribe to notifications")
		writeErrorResponse(w, errors.NewInternal("failed to open notification stream"))
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, open := <-sub.C:
			if !open {
				return
			}
			payload, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
