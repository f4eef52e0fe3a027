package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"spatia/internal/domain"
	"spatia/internal/worldlabs"
)

// maxUploadBytes bounds multipart uploads held in memory.
const maxUploadBytes = 64 << 20

type generateResponse struct {
	OperationID string `json:"operationId"`
	Model       string `json:"model"`
	CreatedAt   string `json:"createdAt,omitempty"`
	Credits     int    `json:"credits,omitempty"`
}

// Generate starts a generation without tracking it as a job.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	in := req.input()
	op, err := a.WorldLabs.StartGeneration(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := generateResponse{OperationID: op.OperationID, Model: op.Model, CreatedAt: op.CreatedAt}
	if a.Cost != nil {
		if est, err := a.Cost.Estimate(in); err == nil {
			resp.Credits = est.Credits
		}
	}
	a.json(w, http.StatusOK, resp)
}

type statusResponse struct {
	Done      bool                   `json:"done"`
	Progress  int                    `json:"progress"`
	WorldID   string                 `json:"worldId,omitempty"`
	Error     *domain.OperationError `json:"error,omitempty"`
	World     *domain.World          `json:"world,omitempty"`
	CreatedAt string                 `json:"createdAt,omitempty"`
	UpdatedAt string                 `json:"updatedAt,omitempty"`
}

// Status returns one normalized poll of an operation.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	st, err := a.WorldLabs.PollStatus(r.Context(), chi.URLParam(r, "operationID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, statusResponse{
		Done:      st.Done,
		Progress:  st.ProgressOrZero(),
		WorldID:   st.WorldID,
		Error:     st.Error,
		World:     st.World,
		CreatedAt: st.CreatedAt,
		UpdatedAt: st.UpdatedAt,
	})
}

type uploadResponse struct {
	MediaAssetID string `json:"mediaAssetId"`
	FileName     string `json:"fileName"`
	Kind         string `json:"kind"`
}

// Upload registers the multipart "file" part as a media asset and transfers
// its bytes to the signed target.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "file too large")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "No file provided")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	kind, extension := uploadKind(header.Filename, contentType)
	prepared, err := a.WorldLabs.PrepareUpload(r.Context(), header.Filename, kind, extension)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.WorldLabs.PerformUpload(r.Context(), prepared.UploadInfo, data, contentType); err != nil {
		a.fail(w, r, err)
		return
	}
	a.log().Info().
		Str("media_asset_id", prepared.MediaAsset.MediaAssetID).
		Str("kind", kind).
		Int("bytes", len(data)).
		Msg("upload complete")
	a.json(w, http.StatusOK, uploadResponse{
		MediaAssetID: prepared.MediaAsset.MediaAssetID,
		FileName:     prepared.MediaAsset.FileName,
		Kind:         prepared.MediaAsset.Kind,
	})
}

// uploadKind derives the asset kind from the content type and the extension
// from the file name, defaulting to an image with a jpg extension.
func uploadKind(fileName, contentType string) (kind, extension string) {
	kind = worldlabs.KindImage
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mt, "video/") {
		kind = worldlabs.KindVideo
	}
	extension = strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if extension == "" {
		extension = "jpg"
	}
	return kind, extension
}

// ListWorlds pages through prior results. The status filter defaults to
// SUCCEEDED.
func (a *App) ListWorlds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := worldlabs.ListOptions{
		PageSize:  20,
		PageToken: q.Get("pageToken"),
		Status:    strings.ToUpper(strings.TrimSpace(q.Get("status"))),
		Model:     q.Get("model"),
	}
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "pageSize must be a positive integer")
			return
		}
		opts.PageSize = n
	}
	if opts.Status == "" {
		opts.Status = worldlabs.StatusSucceeded
	}
	page, err := a.WorldLabs.ListWorlds(r.Context(), opts)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, page)
}

// GetWorld returns one world.
func (a *App) GetWorld(w http.ResponseWriter, r *http.Request) {
	world, err := a.WorldLabs.GetWorld(r.Context(), chi.URLParam(r, "worldID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, world)
}
