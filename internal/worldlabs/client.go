package worldlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"spatia/internal/domain"
	"spatia/internal/infra"
)

const defaultBaseURL = "https://api.worldlabs.ai/marble/v1"

// Tags is the fixed classification attached to every generated world.
var Tags = []string{"environment", "spatia"}

// Options configures the World Labs Marble client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	Now            func() time.Time
}

// Client performs HTTP calls against the World Labs Marble API. It never
// retries; callers decide whether to repeat a request.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	now        func() time.Time
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		now:        now,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// StartGeneration validates the input, builds the world prompt and starts a
// generation. The returned operation is still pending.
func (c *Client) StartGeneration(ctx context.Context, in domain.GenerationInput) (*domain.PendingOperation, error) {
	if !c.HasCredentials() {
		return nil, domain.ErrMissingAPIKey
	}
	payload, err := c.buildGenerateRequest(in)
	if err != nil {
		return nil, err
	}
	var op operation
	if err := c.do(ctx, http.MethodPost, "/worlds:generate", payload, &op); err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("operation_id", op.OperationID).
		Str("model", payload.Model).
		Str("prompt_type", payload.WorldPrompt.Type).
		Msg("worldlabs: generation started")
	return &domain.PendingOperation{
		OperationID: op.OperationID,
		Model:       payload.Model,
		CreatedAt:   op.CreatedAt,
	}, nil
}

func (c *Client) buildGenerateRequest(in domain.GenerationInput) (*generateRequest, error) {
	mode, err := in.Mode()
	if err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(in.Prompt)
	wp := worldPrompt{Type: string(mode)}
	switch mode {
	case domain.InputModeMultiImage:
		wp.MultiImagePrompt = make([]multiImageEntry, 0, len(in.Images))
		for _, item := range in.Images {
			wp.MultiImagePrompt = append(wp.MultiImagePrompt, multiImageEntry{
				Azimuth: item.Azimuth,
				Content: encodeImage(item.Image),
			})
		}
		wp.TextPrompt = prompt
	case domain.InputModeImage:
		content := encodeImage(*in.Image)
		wp.ImagePrompt = &content
		wp.TextPrompt = prompt
		pano := in.IsPano
		wp.IsPano = &pano
	case domain.InputModeText:
		wp.TextPrompt = prompt
	}
	if in.DisableRecaption {
		disable := true
		wp.DisableRecaption = &disable
	}

	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = "Spatia Environment - " + c.now().UTC().Format("2006-01-02")
	}
	req := &generateRequest{
		WorldPrompt: wp,
		DisplayName: name,
		Model:       in.Quality.Model(),
		Tags:        append([]string(nil), Tags...),
		Seed:        in.Seed,
	}
	if in.Public {
		req.Permission = &domain.Permission{Public: true}
	}
	return req, nil
}

func encodeImage(src domain.ImageSource) imageContent {
	switch {
	case strings.TrimSpace(src.URI) != "":
		return imageContent{Source: "uri", URI: strings.TrimSpace(src.URI)}
	case strings.TrimSpace(src.MediaAssetID) != "":
		return imageContent{Source: "media_asset", MediaAssetID: strings.TrimSpace(src.MediaAssetID)}
	default:
		return imageContent{Source: "data_base64", DataBase64: src.DataBase64}
	}
}

// PollStatus fetches an operation and normalizes it. Missing metadata is
// tolerated: progress stays nil and the caller picks a fallback.
func (c *Client) PollStatus(ctx context.Context, operationID string) (*domain.OperationStatus, error) {
	if !c.HasCredentials() {
		return nil, domain.ErrMissingAPIKey
	}
	operationID = strings.TrimSpace(operationID)
	if operationID == "" {
		return nil, &domain.ValidationError{Field: "operation_id", Message: "is required"}
	}
	var op operation
	if err := c.do(ctx, http.MethodGet, "/operations/"+url.PathEscape(operationID), nil, &op); err != nil {
		return nil, err
	}
	status := &domain.OperationStatus{
		Done:      op.Done,
		Error:     op.Error,
		World:     op.Response,
		CreatedAt: op.CreatedAt,
		UpdatedAt: op.UpdatedAt,
	}
	if op.Metadata != nil {
		status.Progress = op.Metadata.ProgressPercentage
		status.WorldID = op.Metadata.WorldID
	}
	return status, nil
}

// GetWorld fetches one world by id.
func (c *Client) GetWorld(ctx context.Context, worldID string) (*domain.World, error) {
	if !c.HasCredentials() {
		return nil, domain.ErrMissingAPIKey
	}
	var world domain.World
	if err := c.do(ctx, http.MethodGet, "/worlds/"+url.PathEscape(strings.TrimSpace(worldID)), nil, &world); err != nil {
		return nil, err
	}
	return &world, nil
}

// ListWorlds returns one page of prior results.
func (c *Client) ListWorlds(ctx context.Context, opts ListOptions) (*domain.WorldPage, error) {
	if !c.HasCredentials() {
		return nil, domain.ErrMissingAPIKey
	}
	if opts.Status != "" && !ValidListStatus(opts.Status) {
		return nil, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unsupported status %q", opts.Status)}
	}
	req := listRequest{
		PageSize:  opts.PageSize,
		PageToken: opts.PageToken,
		Status:    opts.Status,
		Model:     opts.Model,
	}
	var page domain.WorldPage
	if err := c.do(ctx, http.MethodPost, "/worlds:list", req, &page); err != nil {
		return nil, err
	}
	if page.Worlds == nil {
		page.Worlds = []domain.World{}
	}
	return &page, nil
}

// PrepareUpload registers a media asset and returns its signed upload target.
func (c *Client) PrepareUpload(ctx context.Context, fileName, kind, extension string) (*domain.PreparedUpload, error) {
	if !c.HasCredentials() {
		return nil, domain.ErrMissingAPIKey
	}
	if kind != KindImage && kind != KindVideo {
		return nil, &domain.ValidationError{Field: "kind", Message: fmt.Sprintf("unsupported kind %q", kind)}
	}
	var prepared domain.PreparedUpload
	req := prepareUploadRequest{FileName: fileName, Kind: kind, Extension: extension}
	if err := c.do(ctx, http.MethodPost, "/media-assets:prepare_upload", req, &prepared); err != nil {
		return nil, err
	}
	return &prepared, nil
}

// PerformUpload transfers raw bytes to a signed target. Required headers from
// the prepare step win over the content type.
func (c *Client) PerformUpload(ctx context.Context, info domain.UploadInfo, data []byte, contentType string) error {
	if !c.HasCredentials() {
		return domain.ErrMissingAPIKey
	}
	method := strings.ToUpper(strings.TrimSpace(info.UploadMethod))
	if method == "" {
		method = http.MethodPut
	}
	req, err := http.NewRequestWithContext(ctx, method, info.UploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("worldlabs: build upload request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range info.RequiredHeaders {
		req.Header.Set(k, v)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("worldlabs: upload: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.UploadError{StatusCode: resp.StatusCode}
	}
	c.logger.Debug().Int("bytes", len(data)).Str("content_type", contentType).Msg("worldlabs: upload complete")
	return nil
}

// HealthCheck reports whether the API answers an authenticated request.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if !c.HasCredentials() {
		return false
	}
	return c.do(ctx, http.MethodGet, "/", nil, nil) == nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("worldlabs: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("worldlabs: build request: %w", err)
	}
	req.Header.Set("WLT-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("worldlabs: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("worldlabs: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Msg("worldlabs: request rejected")
		return &domain.RemoteError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("worldlabs: decode response: %w", err)
	}
	return nil
}
