package viewer

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Vec3 is a point or direction in renderer space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// CameraPose is a camera position and the point it looks at.
type CameraPose struct {
	Position Vec3 `json:"position"`
	Target   Vec3 `json:"target"`
}

// DefaultPose is restored by ResetView.
var DefaultPose = CameraPose{
	Position: Vec3{X: 0, Y: 0, Z: 3},
	Target:   Vec3{X: 0, Y: 0, Z: 0},
}

// ProgressFunc receives load progress in percent (0-100).
type ProgressFunc func(percent int)

// Renderer is the 3D renderer capability a viewer session drives. One
// instance backs exactly one session and is never reused after Dispose.
type Renderer interface {
	// Load fetches and decodes the asset. It should return early when ctx is
	// cancelled.
	Load(ctx context.Context, assetURL string, progress ProgressFunc) error
	// Frame advances the scene by dt.
	Frame(dt time.Duration)
	SetCamera(pose CameraPose)
	// Dispose releases every buffer the renderer holds.
	Dispose()
}

// RendererFactory builds a fresh renderer for each session.
type RendererFactory func() Renderer

// ProxyURL rewrites assetURL to go through the same-origin relay mounted at
// base. An empty base leaves the URL untouched.
func ProxyURL(base, assetURL string) string {
	if base == "" {
		return assetURL
	}
	return strings.TrimRight(base, "/") + "/v1/proxy?url=" + url.QueryEscape(assetURL)
}
