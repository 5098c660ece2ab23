// Package store keeps the client's view of active incidents: a remote partition
// fed by polling and streaming, and a local partition of incidents created here.
//
// A Store is not safe for concurrent use. The radar runtime owns it from a single
// goroutine.
package store

import (
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
)

const (
	// DefaultCapacity bounds each partition.
	DefaultCapacity = 1000

	// DefaultAuditSize bounds the supersession log.
	DefaultAuditSize = 100
)

// Config tunes a Store. Zero values select defaults.
type Config struct {
	Capacity     int
	ActiveWindow time.Duration
	AuditSize    int
	Reconciler   Reconciler
}

// Supersession records a local incident replaced by its server-confirmed twin.
type Supersession struct {
	LocalID  string    `json:"local_id"`
	RemoteID string    `json:"remote_id"`
	At       time.Time `json:"at"`
}

// Insertion is the outcome of InsertStreamed.
type Insertion struct {
	Inserted     bool
	SupersededID string
}

// Store holds both partitions, each ordered most-recent-first.
type Store struct {
	local  []domain.Incident
	remote []domain.Incident

	capacity   int
	window     time.Duration
	auditSize  int
	reconciler Reconciler
	audit      []Supersession
}

// New creates an empty Store.
func New(cfg Config) *Store {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = domain.ActiveWindow
	}
	if cfg.AuditSize <= 0 {
		cfg.AuditSize = DefaultAuditSize
	}
	if cfg.Reconciler.RadiusMeters <= 0 || cfg.Reconciler.Window <= 0 {
		cfg.Reconciler = NewReconciler(cfg.Reconciler.RadiusMeters, cfg.Reconciler.Window)
	}
	return &Store{
		capacity:   cfg.Capacity,
		window:     cfg.ActiveWindow,
		auditSize:  cfg.AuditSize,
		reconciler: cfg.Reconciler,
	}
}

// ReplaceRemote swaps the remote partition for batch. Duplicate ids keep their first
// occurrence and inactive incidents are dropped. It returns the number kept.
func (s *Store) ReplaceRemote(batch []domain.Incident, now time.Time) int {
	seen := make(map[string]bool, len(batch))
	next := make([]domain.Incident, 0, min(len(batch), s.capacity))
	for _, inc := range batch {
		if seen[inc.ID] || !inc.ActiveAt(now, s.window) {
			continue
		}
		seen[inc.ID] = true
		inc.Provenance = domain.ProvenanceRemote
		next = append(next, inc)
		if len(next) == s.capacity {
			break
		}
	}
	s.remote = next
	return len(next)
}

// AddLocal prepends an incident created by this client. A local incident with the
// same id is replaced.
func (s *Store) AddLocal(inc domain.Incident) {
	inc.Provenance = domain.ProvenanceLocal
	s.local = prepend(removeID(s.local, inc.ID), inc, s.capacity)
}

// InsertStreamed adds a remote incident delivered by the stream. Inactive incidents
// and redelivered ids are ignored. When the incident confirms a local one, the local
// record is superseded and leaves the live view.
func (s *Store) InsertStreamed(inc domain.Incident, now time.Time) Insertion {
	if !inc.ActiveAt(now, s.window) || s.hasRemote(inc.ID) {
		return Insertion{}
	}

	var out Insertion
	if i, ok := s.reconciler.Match(s.local, inc); ok {
		out.SupersededID = s.local[i].ID
		s.local = append(s.local[:i:i], s.local[i+1:]...)
		s.recordSupersession(Supersession{LocalID: out.SupersededID, RemoteID: inc.ID, At: now})
	}

	inc.Provenance = domain.ProvenanceRemote
	s.remote = prepend(s.remote, inc, s.capacity)
	out.Inserted = true
	return out
}

// Sweep drops incidents that left the active window and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	var evicted int
	s.local, evicted = s.keepActive(s.local, now)
	var n int
	s.remote, n = s.keepActive(s.remote, now)
	return evicted + n
}

// Active returns the merged view: local incidents first, then remote ones whose id
// is not already taken by a local incident.
func (s *Store) Active() []domain.Incident {
	out := make([]domain.Incident, 0, len(s.local)+len(s.remote))
	ids := make(map[string]bool, len(s.local))
	for _, inc := range s.local {
		ids[inc.ID] = true
		out = append(out, inc)
	}
	for _, inc := range s.remote {
		if ids[inc.ID] {
			continue
		}
		out = append(out, inc)
	}
	return out
}

// Len returns the number of local and remote records.
func (s *Store) Len() (local, remote int) {
	return len(s.local), len(s.remote)
}

// Supersessions returns the supersession log, oldest first.
func (s *Store) Supersessions() []Supersession {
	return append([]Supersession(nil), s.audit...)
}

func (s *Store) hasRemote(id string) bool {
	for _, inc := range s.remote {
		if inc.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) recordSupersession(sup Supersession) {
	s.audit = append(s.audit, sup)
	if over := len(s.audit) - s.auditSize; over > 0 {
		s.audit = append(s.audit[:0:0], s.audit[over:]...)
	}
}

func (s *Store) keepActive(list []domain.Incident, now time.Time) ([]domain.Incident, int) {
	kept := list[:0]
	for _, inc := range list {
		if inc.ActiveAt(now, s.window) {
			kept = append(kept, inc)
		}
	}
	evicted := len(list) - len(kept)
	clear(list[len(kept):])
	return kept, evicted
}

func prepend(list []domain.Incident, inc domain.Incident, capacity int) []domain.Incident {
	out := make([]domain.Incident, 0, min(len(list)+1, capacity))
	out = append(out, inc)
	for _, existing := range list {
		if len(out) == capacity {
			break
		}
		out = append(out, existing)
	}
	return out
}

func removeID(list []domain.Incident, id string) []domain.Incident {
	for i, inc := range list {
		if inc.ID == id {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
