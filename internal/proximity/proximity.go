// Package proximity decides whether the observer stands inside an incident's
// danger radius.
//
// Two outputs are computed from the same geometry. The banner names the single
// nearest incident the observer is inside, and has no memory. The Engine keeps an
// inside-set with hysteresis so entry and exit events do not flicker when the
// observer hovers near a boundary.
package proximity

import (
	"math"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/sound"
)

// DefaultHysteresisMeters is the extra distance past the radius required to exit.
const DefaultHysteresisMeters = 30.0

// State is the proximity banner.
type State struct {
	Safe           bool            `json:"safe"`
	IncidentID     string          `json:"incident_id,omitempty"`
	CategoryLabel  string          `json:"category_label,omitempty"`
	DistanceMeters int             `json:"distance_m"`
	OccurredAt     time.Time       `json:"occurred_at,omitzero"`
	Severity       domain.Severity `json:"severity,omitempty"`
}

// SafeState is the banner shown when the observer is inside no radius.
var SafeState = State{Safe: true}

// Banner returns the nearest incident whose radius contains observer. A nil
// observer is treated as safe. Ties keep the first incident in iteration order.
func Banner(observer *domain.Position, incidents []domain.Incident) State {
	if observer == nil {
		return SafeState
	}

	var (
		nearest *domain.Incident
		best    float64
	)
	for i := range incidents {
		inc := &incidents[i]
		d := domain.DistanceMeters(*observer, inc.Position())
		if d > inc.RadiusMeters {
			continue
		}
		if nearest == nil || d < best {
			nearest, best = inc, d
		}
	}
	if nearest == nil {
		return SafeState
	}
	return State{
		IncidentID:     nearest.ID,
		CategoryLabel:  nearest.CategoryLabel,
		DistanceMeters: int(math.Round(best)),
		OccurredAt:     nearest.OccurredAt,
		Severity:       nearest.Severity,
	}
}

// Transition reports what changed in one Update.
type Transition struct {
	Entered []string
	Safe    bool
}

// Player plays sound cues.
type Player interface {
	Play(kind sound.Kind)
}

// Engine tracks which incidents the observer is inside.
type Engine struct {
	inside     map[string]bool
	hysteresis float64
	player     Player
}

// NewEngine creates an Engine. player may be nil.
func NewEngine(hysteresisMeters float64, player Player) *Engine {
	if hysteresisMeters < 0 {
		hysteresisMeters = DefaultHysteresisMeters
	}
	return &Engine{
		inside:     make(map[string]bool),
		hysteresis: hysteresisMeters,
		player:     player,
	}
}

// Update recomputes the inside-set for a new observer position or incident list.
// Incidents are entered at distance <= radius and exited at distance >=
// radius + hysteresis. Incidents no longer in the list leave the set. Safe is
// reported when the set goes from non-empty to empty. A nil observer leaves the
// engine untouched.
func (e *Engine) Update(observer *domain.Position, incidents []domain.Incident) Transition {
	if observer == nil {
		return Transition{}
	}

	wasInside := len(e.inside) > 0

	visible := make(map[string]bool, len(incidents))
	for _, inc := range incidents {
		visible[inc.ID] = true
	}
	for id := range e.inside {
		if !visible[id] {
			delete(e.inside, id)
		}
	}

	var tr Transition
	for _, inc := range incidents {
		d := domain.DistanceMeters(*observer, inc.Position())
		switch {
		case !e.inside[inc.ID] && d <= inc.RadiusMeters:
			e.inside[inc.ID] = true
			tr.Entered = append(tr.Entered, inc.ID)
		case e.inside[inc.ID] && d >= inc.RadiusMeters+e.hysteresis:
			delete(e.inside, inc.ID)
		}
	}
	tr.Safe = wasInside && len(e.inside) == 0

	if e.player != nil {
		if len(tr.Entered) > 0 {
			e.player.Play(sound.KindProximity)
		}
		if tr.Safe {
			e.player.Play(sound.KindSafe)
		}
	}
	return tr
}

// Inside reports whether the observer is currently inside incident id.
func (e *Engine) Inside(id string) bool {
	return e.inside[id]
}

// Len returns the size of the inside-set.
func (e *Engine) Len() int {
	return len(e.inside)
}
