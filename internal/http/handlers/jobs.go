package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"spatia/internal/domain"
	"spatia/internal/export"
	"spatia/internal/middleware"
)

// SubmitJob starts a generation and tracks it until it finishes.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	job, err := a.Jobs.Submit(r.Context(), req.input(), locale)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, job)
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"jobs": a.Jobs.List()})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

func (a *App) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := a.Jobs.Delete(chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// completedWorld loads a job and insists that it carries a world.
func (a *App) completedWorld(w http.ResponseWriter, r *http.Request) (*domain.World, bool) {
	job, err := a.Jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	if job.Status != domain.JobStatusCompleted || job.World == nil {
		a.error(w, http.StatusConflict, "not_ready", fmt.Sprintf("job is %s", job.Status))
		return nil, false
	}
	return job.World, true
}

// JobExport returns the Unreal Engine export plan for a completed job.
func (a *App) JobExport(w http.ResponseWriter, r *http.Request) {
	world, ok := a.completedWorld(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, export.Advise(world.DisplayName, world.Assets))
}

// JobExportZip downloads the export plan as a zip of guidance files.
func (a *App) JobExportZip(w http.ResponseWriter, r *http.Request) {
	world, ok := a.completedWorld(w, r)
	if !ok {
		return
	}
	plan := export.Advise(world.DisplayName, world.Assets)
	data, err := export.Bundle(plan)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	name := world.WorldID
	if name == "" {
		name = "world"
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"_unreal.zip"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ViewJob opens the viewer on one of the job's splats: ?key= picks a
// resolution, otherwise the first key in sorted order is used.
func (a *App) ViewJob(w http.ResponseWriter, r *http.Request) {
	world, ok := a.completedWorld(w, r)
	if !ok {
		return
	}
	splats := world.Assets.SplatURLs()
	if len(splats) == 0 {
		a.fail(w, r, domain.ErrNoSplat)
		return
	}
	url, found := splats[r.URL.Query().Get("key")]
	if !found {
		keys := make([]string, 0, len(splats))
		for k := range splats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		url = splats[keys[0]]
	}
	snap, err := a.Viewer.Open(url)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

// JobHistory lists archived outcomes. It needs a database.
func (a *App) JobHistory(w http.ResponseWriter, r *http.Request) {
	if a.Archive == nil {
		a.fail(w, r, &domain.ConfigurationError{Setting: "DATABASE_URL"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := a.Archive.Recent(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": entries})
}

// Events returns notifications newer than ?since=. The response carries the
// last sequence so clients can resume.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "since must be a non-negative integer")
			return
		}
		since = n
	}
	events := a.Jobs.Events().Since(since)
	last := since
	if len(events) > 0 {
		last = events[len(events)-1].Seq
	}
	a.json(w, http.StatusOK, map[string]any{"events": events, "last_seq": last})
}
