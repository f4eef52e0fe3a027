package splat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"spatia/internal/domain"
	"spatia/internal/infra"
	"spatia/internal/viewer"
)

const (
	defaultMaxBytes = 512 << 20
	// dampingTau is the time constant of the camera easing.
	dampingTau  = 120 * time.Millisecond
	poseEpsilon = 1e-4
)

// Options configures New.
type Options struct {
	HTTPClient *http.Client
	MaxBytes   int64
	Logger     *infra.Logger
}

// Renderer implements viewer.Renderer without a GPU. It keeps the decoded
// cloud in memory and eases the camera toward the requested pose.
type Renderer struct {
	client   *http.Client
	maxBytes int64
	logger   infra.Logger

	mu       sync.Mutex
	cloud    *Cloud
	camera   viewer.CameraPose
	goal     viewer.CameraPose
	disposed bool
}

// New returns a renderer ready for one Load.
func New(opts Options) *Renderer {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Renderer{
		client:   client,
		maxBytes: maxBytes,
		logger:   logger,
		camera:   viewer.DefaultPose,
		goal:     viewer.DefaultPose,
	}
}

// Factory adapts New to viewer.RendererFactory.
func Factory(opts Options) viewer.RendererFactory {
	return func() viewer.Renderer { return New(opts) }
}

// Load downloads assetURL, reporting progress from Content-Length when the
// server sends it, and decodes the result.
func (r *Renderer) Load(ctx context.Context, assetURL string, progress viewer.ProgressFunc) error {
	fail := func(err error) error { return &domain.RendererError{URL: assetURL, Err: err} }

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return fail(fmt.Errorf("splat: build request: %w", err))
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fail(fmt.Errorf("splat: fetch: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(fmt.Errorf("splat: fetch: status %d", resp.StatusCode))
	}
	if resp.ContentLength > r.maxBytes {
		return fail(fmt.Errorf("splat: asset is %s, limit %s",
			humanize.IBytes(uint64(resp.ContentLength)), humanize.IBytes(uint64(r.maxBytes))))
	}

	pr := &progressReader{r: io.LimitReader(resp.Body, r.maxBytes+1), total: resp.ContentLength, report: progress}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, pr); err != nil {
		return fail(fmt.Errorf("splat: read: %w", err))
	}
	if int64(buf.Len()) > r.maxBytes {
		return fail(fmt.Errorf("splat: asset exceeds %s", humanize.IBytes(uint64(r.maxBytes))))
	}

	cloud, err := Decode(buf.Bytes())
	if err != nil {
		return fail(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return fail(fmt.Errorf("splat: renderer disposed during load"))
	}
	r.cloud = cloud
	if progress != nil {
		progress(100)
	}
	r.logger.Debug().
		Str("format", string(cloud.Format)).
		Int("points", cloud.Points).
		Int("sh_degree", cloud.SHDegree).
		Str("size", humanize.IBytes(uint64(buf.Len()))).
		Msg("splat: decoded")
	return nil
}

// Frame eases the camera toward the goal pose with exponential damping.
func (r *Renderer) Frame(dt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed || r.cloud == nil || dt <= 0 {
		return
	}
	alpha := 1 - math.Exp(-float64(dt)/float64(dampingTau))
	r.camera.Position = ease(r.camera.Position, r.goal.Position, alpha)
	r.camera.Target = ease(r.camera.Target, r.goal.Target, alpha)
}

func ease(from, to viewer.Vec3, alpha float64) viewer.Vec3 {
	next := viewer.Vec3{
		X: from.X + (to.X-from.X)*alpha,
		Y: from.Y + (to.Y-from.Y)*alpha,
		Z: from.Z + (to.Z-from.Z)*alpha,
	}
	if math.Abs(next.X-to.X) < poseEpsilon && math.Abs(next.Y-to.Y) < poseEpsilon && math.Abs(next.Z-to.Z) < poseEpsilon {
		return to
	}
	return next
}

// SetCamera sets the goal pose; the camera converges over the next frames.
func (r *Renderer) SetCamera(pose viewer.CameraPose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.goal = pose
}

// Dispose drops the decoded cloud. Later loads fail and frames are no-ops.
func (r *Renderer) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cloud = nil
	r.disposed = true
}

// Camera returns the current eased pose.
func (r *Renderer) Camera() viewer.CameraPose {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.camera
}

// Cloud returns the decoded descriptor, or nil before load and after dispose.
func (r *Renderer) Cloud() *Cloud {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cloud
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report viewer.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.report != nil && p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 99 {
			pct = 99
		}
		if pct > p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
