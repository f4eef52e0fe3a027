// Package viewer owns the lifecycle of the single live renderer session: load,
// frame loop, camera reset and teardown.
package viewer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spatia/internal/domain"
	"spatia/internal/infra"
	"spatia/internal/metrics"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateDisposing    State = "disposing"
	StateError        State = "error"
)

// DefaultFrameInterval is one display frame at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Snapshot is a point-in-time copy of the viewer state.
type Snapshot struct {
	Session    uint64     `json:"session"`
	State      State      `json:"state"`
	URL        string     `json:"url,omitempty"`
	LoadURL    string     `json:"load_url,omitempty"`
	Progress   int        `json:"progress"`
	Error      string     `json:"error,omitempty"`
	Fullscreen bool       `json:"fullscreen"`
	Camera     CameraPose `json:"camera"`
	Frames     uint64     `json:"frames"`
}

// Options configures NewManager.
type Options struct {
	NewRenderer   RendererFactory
	Surface       Surface
	RelayBase     string
	FrameInterval time.Duration
	Logger        *infra.Logger
	Metrics       *metrics.Collector
}

// Manager runs at most one renderer session at a time. Lifecycle calls are
// serialized; the frame loop and load callbacks only touch state under mu and
// are tied to a session id so superseded sessions cannot write.
type Manager struct {
	ctx           context.Context
	newRenderer   RendererFactory
	surface       Surface
	relayBase     string
	frameInterval time.Duration
	logger        infra.Logger
	metrics       *metrics.Collector

	lifecycle sync.Mutex

	mu         sync.Mutex
	session    uint64
	state      State
	url        string
	loadURL    string
	progress   int
	errMsg     string
	fullscreen bool
	pose       CameraPose
	frames     uint64
	renderer   Renderer
	node       string
	cancel     context.CancelFunc
	loopDone   chan struct{}
}

// NewManager builds an idle manager. Sessions stop when ctx is cancelled.
func NewManager(ctx context.Context, opts Options) *Manager {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	interval := opts.FrameInterval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	surface := opts.Surface
	if surface == nil {
		surface = NewMemorySurface()
	}
	m := &Manager{
		ctx:           ctx,
		newRenderer:   opts.NewRenderer,
		surface:       surface,
		relayBase:     opts.RelayBase,
		frameInterval: interval,
		logger:        logger,
		metrics:       opts.Metrics,
		state:         StateIdle,
		pose:          DefaultPose,
	}
	surface.OnFullscreenChange(func(on bool) {
		m.mu.Lock()
		m.fullscreen = on
		m.mu.Unlock()
	})
	return m
}

// Open starts a session for assetURL. A live session for a different URL is
// closed first; a live session for the same URL is left as is.
func (m *Manager) Open(assetURL string) (Snapshot, error) {
	assetURL = strings.TrimSpace(assetURL)
	if assetURL == "" {
		return Snapshot{}, &domain.ValidationError{Field: "url", Message: "asset url is required"}
	}
	if m.newRenderer == nil {
		return Snapshot{}, errors.New("viewer: no renderer configured")
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	live := m.state == StateInitializing || m.state == StateReady
	if live && m.url == assetURL {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}
	needsClose := m.state != StateIdle
	m.mu.Unlock()
	if needsClose {
		m.closeSession()
	}

	renderer := m.newRenderer()
	node := m.surface.Attach()
	ctx, cancel := context.WithCancel(m.ctx)
	loadURL := ProxyURL(m.relayBase, assetURL)

	m.mu.Lock()
	m.session++
	id := m.session
	m.state = StateInitializing
	m.url = assetURL
	m.loadURL = loadURL
	m.progress = 0
	m.errMsg = ""
	m.pose = DefaultPose
	m.frames = 0
	m.renderer = renderer
	m.node = node
	m.cancel = cancel
	m.loopDone = nil
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info().Uint64("session", id).Str("url", assetURL).Msg("viewer: opening")
	go m.load(ctx, id, renderer, loadURL)
	return snap, nil
}

func (m *Manager) load(ctx context.Context, id uint64, r Renderer, loadURL string) {
	err := r.Load(ctx, loadURL, func(percent int) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		m.mu.Lock()
		if m.session == id && m.state == StateInitializing && percent > m.progress {
			m.progress = percent
		}
		m.mu.Unlock()
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != id || m.state != StateInitializing {
		m.logger.Debug().Uint64("session", id).Msg("viewer: discarding stale load")
		return
	}
	if err != nil {
		var rerr *domain.RendererError
		if !errors.As(err, &rerr) {
			rerr = &domain.RendererError{URL: m.url, Err: err}
		}
		m.state = StateError
		m.errMsg = rerr.Error()
		m.metrics.ViewerLoad("error")
		m.logger.Warn().Err(err).Uint64("session", id).Msg("viewer: load failed")
		return
	}
	m.state = StateReady
	m.progress = 100
	r.SetCamera(m.pose)
	done := make(chan struct{})
	m.loopDone = done
	m.metrics.ViewerLoad("ok")
	m.logger.Info().Uint64("session", id).Msg("viewer: ready")
	go m.frameLoop(ctx, id, r, done)
}

func (m *Manager) frameLoop(ctx context.Context, id uint64, r Renderer, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.frameInterval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			r.Frame(now.Sub(last))
			last = now
			m.mu.Lock()
			if m.session == id {
				m.frames++
			}
			m.mu.Unlock()
		}
	}
}

// Close tears the current session down and returns to idle. Calling it with
// no session, or twice, is a no-op.
func (m *Manager) Close() Snapshot {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.closeSession()
	return m.Snapshot()
}

func (m *Manager) closeSession() {
	m.mu.Lock()
	if m.state == StateIdle {
		m.mu.Unlock()
		return
	}
	id := m.session
	m.session++
	m.state = StateDisposing
	cancel, loopDone, renderer, node := m.cancel, m.loopDone, m.renderer, m.node
	m.cancel, m.loopDone, m.renderer, m.node = nil, nil, nil, ""
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if loopDone != nil {
		<-loopDone
	}
	if renderer != nil {
		renderer.Dispose()
	}
	if node != "" {
		m.surface.Detach(node)
	}

	m.mu.Lock()
	m.state = StateIdle
	m.url = ""
	m.loadURL = ""
	m.progress = 0
	m.errMsg = ""
	m.pose = DefaultPose
	m.mu.Unlock()
	m.logger.Info().Uint64("session", id).Msg("viewer: closed")
}

// ResetView restores DefaultPose. It reports false outside the ready state.
func (m *Manager) ResetView() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady || m.renderer == nil {
		return false
	}
	m.pose = DefaultPose
	m.renderer.SetCamera(DefaultPose)
	return true
}

// SetFullscreen asks the surface to change fullscreen; the tracked state
// follows the surface's change notification.
func (m *Manager) SetFullscreen(on bool) {
	m.surface.RequestFullscreen(on)
}

func (m *Manager) Fullscreen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullscreen
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Session:    m.session,
		State:      m.state,
		URL:        m.url,
		LoadURL:    m.loadURL,
		Progress:   m.progress,
		Error:      m.errMsg,
		Fullscreen: m.fullscreen,
		Camera:     m.pose,
		Frames:     m.frames,
	}
}
