package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"spatia/internal/domain"
)

func TestFail_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "validation", err: &domain.ValidationError{Field: "images", Message: "too many"}, status: http.StatusBadRequest, code: "bad_request"},
		{name: "configuration", err: domain.ErrMissingAPIKey, status: http.StatusInternalServerError, code: "not_configured"},
		{name: "remote", err: fmt.Errorf("start: %w", &domain.RemoteError{StatusCode: 401, Message: "bad key"}), status: http.StatusBadGateway, code: "upstream_error"},
		{name: "upload", err: &domain.UploadError{StatusCode: 500}, status: http.StatusBadGateway, code: "upload_failed"},
		{name: "not found", err: domain.ErrJobNotFound, status: http.StatusNotFound, code: "not_found"},
		{name: "no splat", err: domain.ErrNoSplat, status: http.StatusConflict, code: "no_splat"},
		{name: "other", err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal"},
	}
	app := &App{}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.fail(rec, httptest.NewRequest(http.MethodGet, "/x", nil), tc.err)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tc.code {
				t.Fatalf("code = %q, want %q", body.Error.Code, tc.code)
			}
		})
	}
}

func TestGenerateRequestInput(t *testing.T) {
	req := generateRequest{
		Prompt:           "  guidance ",
		ImageURL:         "https://img.test/a.png",
		ImageBase64:      "AAAA",
		Quality:          "Professional",
		IsPano:           true,
		Public:           true,
		DisableRecaption: true,
	}
	in := req.input()
	if in.Image == nil || in.Image.URI != "https://img.test/a.png" || in.Image.DataBase64 != "" {
		t.Fatalf("url should win over inline bytes: %+v", in.Image)
	}
	if in.Prompt != "guidance" || in.Quality != domain.QualityProfessional || !in.IsPano || !in.Public || !in.DisableRecaption {
		t.Fatalf("input = %+v", in)
	}
	if mode, err := in.Mode(); err != nil || mode != domain.InputModeImage {
		t.Fatalf("mode = %q, %v", mode, err)
	}

	multi := generateRequest{Images: []multiImageRequest{{Azimuth: 90, Base64: "AA=="}, {Azimuth: 180, MediaAssetID: "ma-2"}}}.input()
	if mode, err := multi.Mode(); err != nil || mode != domain.InputModeMultiImage {
		t.Fatalf("multi mode = %q, %v", mode, err)
	}
	if multi.Images[1].Image.MediaAssetID != "ma-2" {
		t.Fatalf("multi images = %+v", multi.Images)
	}

	asset := generateRequest{MediaAssetID: "ma-1"}.input()
	if asset.Image == nil || asset.Image.MediaAssetID != "ma-1" {
		t.Fatalf("media asset input = %+v", asset.Image)
	}
}

func TestUploadKind(t *testing.T) {
	tests := []struct {
		file, contentType string
		kind, ext         string
	}{
		{file: "scene.PNG", contentType: "image/png", kind: "image", ext: "png"},
		{file: "walk.mov", contentType: "video/quicktime", kind: "video", ext: "mov"},
		{file: "noext", contentType: "", kind: "image", ext: "jpg"},
		{file: "clip.mp4", contentType: "video/mp4; codecs=avc1", kind: "video", ext: "mp4"},
	}
	for _, tc := range tests {
		kind, ext := uploadKind(tc.file, tc.contentType)
		if kind != tc.kind || ext != tc.ext {
			t.Fatalf("uploadKind(%q, %q) = %q, %q", tc.file, tc.contentType, kind, ext)
		}
	}
}
