package server

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/respect/internal/tasks"
)

const maxRequestBody = 1 << 16

// SyncHandler serves POST /sync.
type SyncHandler struct {
	runner SyncRunner
	logger *log.Logger
}

// NewSyncHandler creates a SyncHandler running requests on runner.
func NewSyncHandler(runner SyncRunner, logger *log.Logger) *SyncHandler {
	return &SyncHandler{runner: runner, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *SyncHandler) Routes() []string {
	return []string{"/sync"}
}

// ServeHTTP decodes the request, runs it for the authenticated caller and writes the summary.
//
// Logical failures are reported with a 200 and success false.
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req tasks.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller")
		return
	}
	req.CallerID = caller

	res := h.runner.Run(r.Context(), req, nil)
	writeJSON(w, http.StatusOK, res)
}

// HealthHandler answers liveness probes.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
