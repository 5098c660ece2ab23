// Package sound plays short audible cues for alerts and proximity changes.
package sound

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Kind identifies a cue.
type Kind string

const (
	KindAlert     Kind = "alert"
	KindProximity Kind = "proximity"
	KindSafe      Kind = "safe"
)

// ErrUnavailable is returned by backends that cannot produce sound.
var ErrUnavailable = errors.New("sound backend unavailable")

// Backend produces cues.
type Backend interface {
	Open() error
	Play(kind Kind) error
}

// Manager gates a backend behind an explicit enable switch. Cues played while
// disabled are dropped.
type Manager struct {
	mu      sync.Mutex
	backend Backend
	enabled bool
	logger  *slog.Logger
}

// NewManager creates a disabled Manager.
func NewManager(backend Backend, logger *slog.Logger) *Manager {
	return &Manager{backend: backend, logger: logger}
}

// Enable opens the backend. On failure the manager stays disabled.
func (m *Manager) Enable() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend == nil {
		return fmt.Errorf("enable sound: %w", ErrUnavailable)
	}
	if err := m.backend.Open(); err != nil {
		return fmt.Errorf("enable sound: %w", err)
	}
	m.enabled = true
	return nil
}

// Disable silences all cues.
func (m *Manager) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enabled reports whether cues are currently played.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Play emits a cue. Playback errors are logged and otherwise ignored.
func (m *Manager) Play(kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	if err := m.backend.Play(kind); err != nil {
		m.logger.Debug("sound cue failed", "kind", kind, "error", err)
	}
}

// LogBackend writes one structured log line per cue.
type LogBackend struct {
	Logger *slog.Logger
}

func (b LogBackend) Open() error {
	if b.Logger == nil {
		return ErrUnavailable
	}
	return nil
}

func (b LogBackend) Play(kind Kind) error {
	b.Logger.Info("sound cue", "kind", kind)
	return nil
}

// BellBackend rings the terminal bell on W, with a distinct pattern per cue.
type BellBackend struct {
	W io.Writer
}

var bellPatterns = map[Kind]int{
	KindAlert:     1,
	KindProximity: 3,
	KindSafe:      2,
}

func (b BellBackend) Open() error {
	if b.W == nil {
		return ErrUnavailable
	}
	return nil
}

func (b BellBackend) Play(kind Kind) error {
	n, ok := bellPatterns[kind]
	if !ok {
		return fmt.Errorf("unknown cue %q", kind)
	}
	if _, err := io.WriteString(b.W, strings.Repeat("\a", n)); err != nil {
		return fmt.Errorf("ring bell: %w", err)
	}
	return nil
}
