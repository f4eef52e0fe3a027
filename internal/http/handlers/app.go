package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"spatia/internal/archive"
	"spatia/internal/cost"
	"spatia/internal/domain"
	"spatia/internal/infra"
	"spatia/internal/jobs"
	"spatia/internal/metrics"
	"spatia/internal/viewer"
	"spatia/internal/worldlabs"
)

// App carries the collaborators every handler needs. Archive is nil when no
// database is configured.
type App struct {
	WorldLabs     *worldlabs.Client
	Jobs          *jobs.Service
	Viewer        *viewer.Manager
	Cost          *cost.Calculator
	Archive       *archive.Recorder
	Metrics       *metrics.Collector
	Logger        *infra.Logger
	RelayClient   *http.Client
	RelayMaxBytes int64
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail maps domain errors onto HTTP responses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *domain.ValidationError
		cerr   *domain.ConfigurationError
		rerr   *domain.RemoteError
		uerr   *domain.UploadError
		renErr *domain.RendererError
	)
	switch {
	case errors.As(err, &verr):
		a.error(w, http.StatusBadRequest, "bad_request", verr.Error())
	case errors.As(err, &cerr):
		a.error(w, http.StatusInternalServerError, "not_configured", cerr.Error())
	case errors.As(err, &rerr):
		a.json(w, http.StatusBadGateway, map[string]any{
			"error": map[string]any{
				"code":            "upstream_error",
				"message":         rerr.Error(),
				"upstream_status": rerr.StatusCode,
			},
		})
	case errors.As(err, &uerr):
		a.error(w, http.StatusBadGateway, "upload_failed", uerr.Error())
	case errors.As(err, &renErr):
		a.error(w, http.StatusBadGateway, "renderer_error", renErr.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrNoSplat):
		a.error(w, http.StatusConflict, "no_splat", err.Error())
	default:
		a.log().Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) log() *infra.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	l := zerolog.Nop()
	return &l
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Message: "invalid payload"}
	}
	return nil
}

// generateRequest is the body of POST /v1/generate and POST /v1/jobs. Field
// names follow the browser contract.
type generateRequest struct {
	Prompt           string              `json:"prompt"`
	ImageURL         string              `json:"imageUrl"`
	ImageBase64      string              `json:"imageBase64"`
	MediaAssetID     string              `json:"mediaAssetId"`
	Images           []multiImageRequest `json:"images"`
	Quality          string              `json:"quality"`
	Name             string              `json:"name"`
	IsPano           bool                `json:"isPano"`
	Seed             *int                `json:"seed"`
	Public           bool                `json:"public"`
	DisableRecaption bool                `json:"disableRecaption"`
}

type multiImageRequest struct {
	Azimuth      int    `json:"azimuth"`
	Base64       string `json:"base64"`
	URL          string `json:"url"`
	MediaAssetID string `json:"mediaAssetId"`
}

func (req generateRequest) input() domain.GenerationInput {
	in := domain.GenerationInput{
		Prompt:           strings.TrimSpace(req.Prompt),
		IsPano:           req.IsPano,
		DisplayName:      strings.TrimSpace(req.Name),
		Quality:          domain.Quality(strings.ToLower(strings.TrimSpace(req.Quality))),
		Seed:             req.Seed,
		Public:           req.Public,
		DisableRecaption: req.DisableRecaption,
	}
	// A URL wins over an uploaded asset, which wins over inline bytes.
	switch {
	case strings.TrimSpace(req.ImageURL) != "":
		in.Image = &domain.ImageSource{URI: strings.TrimSpace(req.ImageURL)}
	case strings.TrimSpace(req.MediaAssetID) != "":
		in.Image = &domain.ImageSource{MediaAssetID: strings.TrimSpace(req.MediaAssetID)}
	case req.ImageBase64 != "":
		in.Image = &domain.ImageSource{DataBase64: req.ImageBase64}
	}
	for _, img := range req.Images {
		in.Images = append(in.Images, domain.AzimuthImage{
			Azimuth: img.Azimuth,
			Image:   domain.ImageSource{URI: img.URL, MediaAssetID: img.MediaAssetID, DataBase64: img.Base64},
		})
	}
	return in
}
