package handlers

import (
	"net/http"
)

type viewerOpenRequest struct {
	URL string `json:"url"`
}

type fullscreenRequest struct {
	On bool `json:"on"`
}

func (a *App) ViewerSnapshot(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Viewer.Snapshot())
}

// ViewerOpen starts a session on an arbitrary splat URL.
func (a *App) ViewerOpen(w http.ResponseWriter, r *http.Request) {
	var req viewerOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := a.Viewer.Open(req.URL)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

func (a *App) ViewerClose(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Viewer.Close())
}

// ViewerReset puts the camera back on the default pose. It is a no-op unless
// the viewer is ready.
func (a *App) ViewerReset(w http.ResponseWriter, r *http.Request) {
	reset := a.Viewer.ResetView()
	a.json(w, http.StatusOK, map[string]any{"reset": reset, "viewer": a.Viewer.Snapshot()})
}

func (a *App) ViewerFullscreen(w http.ResponseWriter, r *http.Request) {
	var req fullscreenRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	a.Viewer.SetFullscreen(req.On)
	a.json(w, http.StatusOK, a.Viewer.Snapshot())
}
