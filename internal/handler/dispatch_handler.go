// internal/handler/dispatch_handler.go
package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/adworldmediaonline/email-cron/internal/dispatch"
)

// DispatchHandler exposes the claim cycle to external triggers (a platform
// cron hitting the endpoint). Guarded by a pre-shared bearer secret compared
// in constant time before anything touches the store.
type DispatchHandler struct {
	Engine    dispatch.CycleRunner
	Scheduler *dispatch.Scheduler
	Secret    string
	Logger    zerolog.Logger
}

func (h *DispatchHandler) authorized(r *http.Request) bool {
	if h.Secret == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.Secret)) == 1
}

// RunCycle handles POST /api/cron/dispatch.
func (h *DispatchHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.Logger.Warn().Str("remote", r.RemoteAddr).Msg("dispatch trigger rejected: bad secret")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	summary := h.Engine.RunClaimCycle(r.Context())
	writeJSON(w, http.StatusOK, summary)
}

// Status handles GET /api/cron/status.
func (h *DispatchHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	status := dispatch.SchedulerStatus{}
	if h.Scheduler != nil {
		status = h.Scheduler.Status()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"running":  status.Running,
		"interval": status.Interval.String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
