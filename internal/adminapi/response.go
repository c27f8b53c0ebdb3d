// Package adminapi exposes the daemon's side-channel HTTP control surface:
// health, session listing, and credential management. It is bound to its
// own address, separate from the RPC wire protocol.
package adminapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/virtrpcd/virtrpcd/internal/logger"
)

// response is the standard envelope every admin API endpoint replies with.
type response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// writeJSON encodes to a buffer first so an encoding failure doesn't leave
// a partially-written body behind a 200 status line.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("failed to encode admin API response", "error", err)
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func okResponse(data interface{}) response {
	return response{Status: "ok", Timestamp: time.Now().UTC(), Data: data}
}

func errorResponse(msg string) response {
	return response{Status: "error", Timestamp: time.Now().UTC(), Error: msg}
}
