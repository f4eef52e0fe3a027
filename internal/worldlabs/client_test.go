package worldlabs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"spatia/internal/domain"
)

type captureTransport struct {
	mu        sync.Mutex
	responses map[string]responseStub
	requests  []*http.Request
	bodies    [][]byte
}

type responseStub struct {
	status int
	body   string
}

func newCaptureTransport() *captureTransport {
	return &captureTransport{responses: map[string]responseStub{}}
}

func (c *captureTransport) on(path string, status int, body string) {
	c.responses[path] = responseStub{status: status, body: body}
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		body = raw
	}
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.bodies = append(c.bodies, body)
	c.mu.Unlock()
	stub, ok := c.responses[req.URL.Path]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("not found")), Header: http.Header{}}, nil
	}
	return &http.Response{
		StatusCode: stub.status,
		Body:       io.NopCloser(strings.NewReader(stub.body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}, nil
}

func (c *captureTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *captureTransport) lastBody(t *testing.T) map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bodies) == 0 {
		t.Fatalf("no request captured")
	}
	var payload map[string]any
	if err := json.Unmarshal(c.bodies[len(c.bodies)-1], &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return payload
}

func newTestClient(key string, transport http.RoundTripper) *Client {
	return NewClient(Options{
		APIKey:     key,
		BaseURL:    "https://api.test/marble/v1",
		HTTPClient: &http.Client{Transport: transport},
		Now:        func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) },
	})
}

func TestStartGenerationTextPayload(t *testing.T) {
	transport := newCaptureTransport()
	transport.on("/marble/v1/worlds:generate", http.StatusOK, `{"operation_id":"op-1","done":false,"created_at":"2026-03-04T10:00:00Z"}`)
	client := newTestClient("key-123", transport)

	op, err := client.StartGeneration(context.Background(), domain.GenerationInput{Prompt: "red chair"})
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if op.OperationID != "op-1" || op.Model != domain.ModelMini {
		t.Fatalf("unexpected operation: %+v", op)
	}
	if got := transport.requests[0].Header.Get("WLT-Api-Key"); got != "key-123" {
		t.Fatalf("api key header = %q", got)
	}

	payload := transport.lastBody(t)
	prompt := payload["world_prompt"].(map[string]any)
	if prompt["type"] != "text" || prompt["text_prompt"] != "red chair" {
		t.Fatalf("world_prompt = %#v", prompt)
	}
	for _, key := range []string{"image_prompt", "multi_image_prompt", "is_pano"} {
		if _, ok := prompt[key]; ok {
			t.Fatalf("%s should be omitted for text prompts", key)
		}
	}
	if payload["display_name"] != "Spatia Environment - 2026-03-04" {
		t.Fatalf("display_name = %v", payload["display_name"])
	}
	tags := payload["tags"].([]any)
	if len(tags) != 2 || tags[0] != "environment" || tags[1] != "spatia" {
		t.Fatalf("tags = %v", tags)
	}
	if _, ok := payload["seed"]; ok {
		t.Fatalf("seed should be omitted when unset")
	}
	if _, ok := payload["permission"]; ok {
		t.Fatalf("permission should be omitted for private worlds")
	}
	if _, ok := prompt["disable_recaption"]; ok {
		t.Fatalf("disable_recaption should be omitted when unset")
	}
}

func TestStartGenerationPublicWithoutRecaption(t *testing.T) {
	transport := newCaptureTransport()
	transport.on("/marble/v1/worlds:generate", http.StatusOK, `{"operation_id":"op-1","done":false}`)
	client := newTestClient("key", transport)

	in := domain.GenerationInput{Prompt: "tidal pool", Public: true, DisableRecaption: true}
	if _, err := client.StartGeneration(context.Background(), in); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}

	payload := transport.lastBody(t)
	perm, ok := payload["permission"].(map[string]any)
	if !ok || perm["public"] != true {
		t.Fatalf("permission = %#v", payload["permission"])
	}
	prompt := payload["world_prompt"].(map[string]any)
	if prompt["disable_recaption"] != true {
		t.Fatalf("world_prompt = %#v", prompt)
	}
}

func TestStartGenerationMultiImagePayload(t *testing.T) {
	transport := newCaptureTransport()
	transport.on("/marble/v1/worlds:generate", http.StatusOK, `{"operation_id":"op-2"}`)
	client := newTestClient("key", transport)
	seed := 42

	_, err := client.StartGeneration(context.Background(), domain.GenerationInput{
		Prompt:  "cozy cabin",
		Quality: domain.QualityProfessional,
		Seed:    &seed,
		Images: []domain.AzimuthImage{
			{Azimuth: 0, Image: domain.ImageSource{DataBase64: "AAAA"}},
			{Azimuth: 270, Image: domain.ImageSource{MediaAssetID: "asset-9"}},
		},
	})
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	payload := transport.lastBody(t)
	if payload["model"] != domain.ModelPlus {
		t.Fatalf("model = %v", payload["model"])
	}
	if payload["seed"].(float64) != 42 {
		t.Fatalf("seed = %v", payload["seed"])
	}
	prompt := payload["world_prompt"].(map[string]any)
	if prompt["type"] != "multi-image" || prompt["text_prompt"] != "cozy cabin" {
		t.Fatalf("world_prompt = %#v", prompt)
	}
	items := prompt["multi_image_prompt"].([]any)
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	second := items[1].(map[string]any)
	content := second["content"].(map[string]any)
	if second["azimuth"].(float64) != 270 || content["source"] != "media_asset" || content["media_asset_id"] != "asset-9" {
		t.Fatalf("second item = %#v", second)
	}
}

func TestStartGenerationImagePano(t *testing.T) {
	transport := newCaptureTransport()
	transport.on("/marble/v1/worlds:generate", http.StatusOK, `{"operation_id":"op-3"}`)
	client := newTestClient("key", transport)

	_, err := client.StartGeneration(context.Background(), domain.GenerationInput{
		Image:  &domain.ImageSource{URI: "https://cdn.test/pano.jpg"},
		IsPano: true,
	})
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	prompt := transport.lastBody(t)["world_prompt"].(map[string]any)
	image := prompt["image_prompt"].(map[string]any)
	if image["source"] != "uri" || image["uri"] != "https://cdn.test/pano.jpg" {
		t.Fatalf("image_prompt = %#v", image)
	}
	if prompt["is_pano"] != true {
		t.Fatalf("is_pano = %v", prompt["is_pano"])
	}
}

func TestStartGenerationRejectsBeforeNetwork(t *testing.T) {
	transport := newCaptureTransport()

	_, err := newTestClient("", transport).StartGeneration(context.Background(), domain.GenerationInput{Prompt: "x"})
	if !errors.Is(err, domain.ErrMissingAPIKey) {
		t.Fatalf("missing key error = %v", err)
	}
	_, err = newTestClient("key", transport).StartGeneration(context.Background(), domain.GenerationInput{})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("empty input error = %v", err)
	}
	if transport.count() != 0 {
		t.Fatalf("expected no requests, got %d", transport.count())
	}
}

func TestPollStatusNormalizes(t *testing.T) {
	transport := newCaptureTransport()
	transport.on("/marble/v1/operations/op-1", http.StatusOK, `{"operation_id":"op-1","done":false}`)
	transport.on("/marble/v1/operations/op-2", http.StatusOK, `{
		"operation_id":"op-2","done":true,
		"metadata":{"progress_percentage":100,"world_id":"w-2"},
		"response":{"world_id":"w-2","display_name":"Room","world_marble_url":"https://marble/w-2",
			"assets":{"splats":{"spz_urls":{"full_res":"https://cdn/w-2.spz"}}}}
	}`)
	transport.on("/marble/v1/operations/op-3", http.StatusOK, `{"operation_id":"op-3","done":true,"error":{"code":8,"message":"quota exceeded"}}`)
	client := newTestClient("key", transport)

	st, err := client.PollStatus(context.Background(), "op-1")
	if err != nil {
		t.Fatalf("PollStatus op-1: %v", err)
	}
	if st.Done || st.Progress != nil || st.ProgressOrZero() != 0 {
		t.Fatalf("op-1 status = %+v", st)
	}

	st, err = client.PollStatus(context.Background(), "op-2")
	if err != nil {
		t.Fatalf("PollStatus op-2: %v", err)
	}
	if !st.Done || st.ProgressOrZero() != 100 || st.WorldID != "w-2" || st.World == nil {
		t.Fatalf("op-2 status = %+v", st)
	}
	if st.World.Assets.SplatURLs()["full_res"] != "https://cdn/w-2.spz" {
		t.Fatalf("splats = %#v", st.World.Assets.SplatURLs())
	}

	st, err = client.PollStatus(context.Background(), "op-3")
	if err != nil {
		t.Fatalf("PollStatus op-3: %v", err)
	}
	if st.Error == nil || st.Error.Message != "quota exceeded" || st.Error.Code != 8 {
		t.Fatalf("op-3 error = %+v", st.Error)
	}
}

func TestRemoteErrorCarriesStatus(t *testing.T) {
	transport := newCaptureTransport()
	transport.on("/marble/v1/operations/gone", http.StatusNotFound, `operation not found`)
	client := newTestClient("key", transport)

	_, err := client.PollStatus(context.Background(), "gone")
	var remote *domain.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("error = %v, want RemoteError", err)
	}
	if remote.StatusCode != http.StatusNotFound || remote.Message != "operation not found" {
		t.Fatalf("remote error = %+v", remote)
	}
}

func TestListWorldsBody(t *testing.T) {
	transport := newCaptureTransport()
	transport.on("/marble/v1/worlds:list", http.StatusOK, `{"worlds":[{"world_id":"w-1","display_name":"A","world_marble_url":"u"}],"next_page_token":"tok-2"}`)
	client := newTestClient("key", transport)

	page, err := client.ListWorlds(context.Background(), ListOptions{PageSize: 20, PageToken: "tok-1", Status: StatusSucceeded})
	if err != nil {
		t.Fatalf("ListWorlds: %v", err)
	}
	if len(page.Worlds) != 1 || page.NextPageToken != "tok-2" {
		t.Fatalf("page = %+v", page)
	}
	body := transport.lastBody(t)
	if body["page_size"].(float64) != 20 || body["page_token"] != "tok-1" || body["status"] != "SUCCEEDED" {
		t.Fatalf("list body = %#v", body)
	}

	if _, err := client.ListWorlds(context.Background(), ListOptions{Status: "DONE"}); err == nil {
		t.Fatalf("expected validation error for unknown status")
	}
}

func TestUploadTwoPhase(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte
	var gotMethod string
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	transport := newCaptureTransport()
	transport.on("/marble/v1/media-assets:prepare_upload", http.StatusOK, `{
		"media_asset":{"media_asset_id":"ma-1","file_name":"room.png","kind":"image"},
		"upload_info":{"upload_url":"`+target.URL+`/signed","upload_method":"PUT","required_headers":{"x-goog-meta":"abc"}}
	}`)
	client := NewClient(Options{APIKey: "key", BaseURL: "https://api.test/marble/v1", HTTPClient: &http.Client{Transport: routeTransport{api: transport, fallback: http.DefaultTransport}}})

	prepared, err := client.PrepareUpload(context.Background(), "room.png", KindImage, "png")
	if err != nil {
		t.Fatalf("PrepareUpload: %v", err)
	}
	if prepared.MediaAsset.MediaAssetID != "ma-1" {
		t.Fatalf("prepared = %+v", prepared)
	}
	body := transport.lastBody(t)
	if body["file_name"] != "room.png" || body["kind"] != "image" || body["extension"] != "png" {
		t.Fatalf("prepare body = %#v", body)
	}

	if err := client.PerformUpload(context.Background(), prepared.UploadInfo, []byte("pngbytes"), "image/png"); err != nil {
		t.Fatalf("PerformUpload: %v", err)
	}
	if gotMethod != http.MethodPut || string(gotBody) != "pngbytes" {
		t.Fatalf("upload method=%s body=%q", gotMethod, gotBody)
	}
	if gotHeaders.Get("Content-Type") != "image/png" || gotHeaders.Get("X-Goog-Meta") != "abc" {
		t.Fatalf("upload headers = %v", gotHeaders)
	}
}

func TestPerformUploadFailure(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer target.Close()

	client := NewClient(Options{APIKey: "key"})
	err := client.PerformUpload(context.Background(), domain.UploadInfo{UploadURL: target.URL, UploadMethod: "PUT"}, []byte("x"), "image/png")
	var uerr *domain.UploadError
	if !errors.As(err, &uerr) || uerr.StatusCode != http.StatusForbidden {
		t.Fatalf("error = %v, want UploadError 403", err)
	}
}

// routeTransport sends API calls to the capture transport and everything else
// to a real transport.
type routeTransport struct {
	api      http.RoundTripper
	fallback http.RoundTripper
}

func (r routeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host == "api.test" {
		return r.api.RoundTrip(req)
	}
	return r.fallback.RoundTrip(req)
}
