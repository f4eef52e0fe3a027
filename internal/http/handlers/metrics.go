package handlers

import (
	"net/http"

	"spatia/internal/domain"
)

// Dashboard summarizes the live process state for the UI header.
func (a *App) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts := map[domain.JobStatus]int{
		domain.JobStatusPending:   0,
		domain.JobStatusRunning:   0,
		domain.JobStatusCompleted: 0,
		domain.JobStatusFailed:    0,
	}
	list := a.Jobs.List()
	for _, job := range list {
		counts[job.Status]++
	}
	a.json(w, http.StatusOK, map[string]any{
		"jobs_total":     len(list),
		"jobs":           counts,
		"poller_running": a.Jobs.Poller().Running(),
		"last_event_seq": a.Jobs.Events().LastSeq(),
		"viewer_state":   a.Viewer.Snapshot().State,
	})
}
