package handlers

import (
	"context"
	"net/http"
	"time"
)

// Health reports liveness and whether the generation API accepts our key.
// The process is healthy even when upstream is not.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	upstream := "unconfigured"
	if a.WorldLabs != nil && a.WorldLabs.HasCredentials() {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		upstream = "down"
		if a.WorldLabs.HealthCheck(ctx) {
			upstream = "ok"
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "upstream": upstream})
}
