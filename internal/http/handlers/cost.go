package handlers

import (
	"net/http"
	"strconv"

	"spatia/internal/cost"
	"spatia/internal/domain"
)

// EstimateCost quotes the credits for a generation: ?quality=draft|professional,
// ?mode=text|image|multi-image and ?pano=true for panoramic images.
func (a *App) EstimateCost(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quality := domain.Quality(q.Get("quality"))
	if quality != "" && quality != domain.QualityDraft && quality != domain.QualityProfessional {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported quality")
		return
	}
	mode := domain.InputMode(q.Get("mode"))
	switch mode {
	case "":
		mode = domain.InputModeText
	case domain.InputModeText, domain.InputModeImage, domain.InputModeMultiImage:
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported mode")
		return
	}
	pano, _ := strconv.ParseBool(q.Get("pano"))

	model := quality.Model()
	kind := cost.KindForMode(mode, pano)
	credits, ok := a.Cost.Credits(model, kind)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "no price for selection")
		return
	}
	a.json(w, http.StatusOK, cost.Estimate{Model: model, Kind: kind, Credits: credits})
}
