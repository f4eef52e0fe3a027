package viewer

import (
	"fmt"
	"sync"
)

// Surface is the container a session renders into. It hands out nodes for
// renderer output and reports fullscreen changes made on the container.
type Surface interface {
	Attach() string
	Detach(node string)
	RequestFullscreen(on bool)
	OnFullscreenChange(fn func(on bool))
}

// MemorySurface is an in-process container that keeps track of attached nodes.
type MemorySurface struct {
	mu         sync.Mutex
	next       int
	nodes      map[string]struct{}
	fullscreen bool
	listeners  []func(bool)
}

// NewMemorySurface returns an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{nodes: make(map[string]struct{})}
}

func (s *MemorySurface) Attach() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	node := fmt.Sprintf("canvas-%d", s.next)
	s.nodes[node] = struct{}{}
	return node
}

func (s *MemorySurface) Detach(node string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, node)
}

// Nodes returns how many nodes are currently attached.
func (s *MemorySurface) Nodes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// RequestFullscreen changes the container state and notifies listeners when
// it actually changed.
func (s *MemorySurface) RequestFullscreen(on bool) {
	s.mu.Lock()
	if s.fullscreen == on {
		s.mu.Unlock()
		return
	}
	s.fullscreen = on
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(on)
	}
}

func (s *MemorySurface) OnFullscreenChange(fn func(on bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
