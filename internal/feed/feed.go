// Package feed holds short-lived alerts ("toasts") with per-alert expiry.
//
// Expiries live in a min-heap of (deadline, id, generation). Cancelling or
// rescheduling an alert bumps its generation, which turns older heap entries into
// no-ops. The owner drives the feed with Tick and re-arms a single timer to
// NextDeadline. A Feed is not safe for concurrent use.
package feed

import (
	"container/heap"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/sound"
)

const (
	// DefaultCapacity bounds the number of visible alerts.
	DefaultCapacity = 10

	// DefaultTTL applies to alerts pushed without their own TTL.
	DefaultTTL = 5 * time.Second

	// DefaultMaxAge is the age after which Prune drops an alert, pinned or not.
	DefaultMaxAge = time.Hour
)

// Alert is one feed entry.
type Alert struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Color       string        `json:"color,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Pinned      bool          `json:"pinned"`
	TTL         time.Duration `json:"-"`
	Cue         sound.Kind    `json:"-"`
}

// Player plays sound cues.
type Player interface {
	Play(kind sound.Kind)
}

// Options configure a Feed.
type Options struct {
	Capacity int
	TTL      time.Duration
	// OnDismiss runs once for every alert removed by expiry, Dismiss or Prune.
	OnDismiss func(Alert)
	Player    Player
}

type item struct {
	alert      Alert
	generation uint64
	focused    bool
}

// Feed is the alert list, most recent first.
type Feed struct {
	items     []*item
	byID      map[string]*item
	expiries  expiryHeap
	capacity  int
	ttl       time.Duration
	onDismiss func(Alert)
	player    Player
}

// New creates an empty Feed.
func New(opts Options) *Feed {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Feed{
		byID:      make(map[string]*item),
		capacity:  opts.Capacity,
		ttl:       opts.TTL,
		onDismiss: opts.OnDismiss,
		player:    opts.Player,
	}
}

// Push inserts alert at the front, replacing an alert with the same id, and
// schedules its expiry unless the id is pinned. The oldest alert is dropped
// silently when the feed is full.
func (f *Feed) Push(alert Alert, now time.Time) {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}

	it, exists := f.byID[alert.ID]
	if exists {
		alert.Pinned = it.alert.Pinned
		it.alert = alert
		f.remove(it)
	} else {
		it = &item{alert: alert}
		f.byID[alert.ID] = it
	}
	f.items = append([]*item{it}, f.items...)

	if !it.alert.Pinned && !it.focused {
		f.schedule(it, now)
	}

	for len(f.items) > f.capacity {
		oldest := f.items[len(f.items)-1]
		f.items = f.items[:len(f.items)-1]
		delete(f.byID, oldest.alert.ID)
		oldest.generation++
	}

	if alert.Cue != "" && f.player != nil {
		f.player.Play(alert.Cue)
	}
}

// Focus cancels the pending expiry of id, for example while the user hovers it.
func (f *Feed) Focus(id string) bool {
	it, ok := f.byID[id]
	if !ok {
		return false
	}
	it.focused = true
	it.generation++
	return true
}

// Blur restarts a full-length expiry for id unless it is pinned.
func (f *Feed) Blur(id string, now time.Time) bool {
	it, ok := f.byID[id]
	if !ok {
		return false
	}
	it.focused = false
	if !it.alert.Pinned {
		f.schedule(it, now)
	}
	return true
}

// Pin cancels the expiry of id until it is dismissed.
func (f *Feed) Pin(id string) bool {
	it, ok := f.byID[id]
	if !ok {
		return false
	}
	it.alert.Pinned = true
	it.generation++
	return true
}

// Dismiss removes id and clears its pin.
func (f *Feed) Dismiss(id string) bool {
	it, ok := f.byID[id]
	if !ok {
		return false
	}
	f.drop(it)
	return true
}

// Tick expires every alert whose deadline is at or before now and returns them.
func (f *Feed) Tick(now time.Time) []Alert {
	var expired []Alert
	for f.expiries.Len() > 0 {
		next := f.expiries[0]
		if next.deadline.After(now) {
			break
		}
		heap.Pop(&f.expiries)

		it, ok := f.byID[next.id]
		if !ok || it.generation != next.generation {
			continue
		}
		expired = append(expired, it.alert)
		f.drop(it)
	}
	return expired
}

// NextDeadline returns the earliest pending expiry.
func (f *Feed) NextDeadline() (time.Time, bool) {
	for f.expiries.Len() > 0 {
		next := f.expiries[0]
		if it, ok := f.byID[next.id]; ok && it.generation == next.generation {
			return next.deadline, true
		}
		heap.Pop(&f.expiries)
	}
	return time.Time{}, false
}

// Prune drops alerts created more than maxAge before now and returns how many.
func (f *Feed) Prune(now time.Time, maxAge time.Duration) int {
	var stale []*item
	for _, it := range f.items {
		if now.Sub(it.alert.CreatedAt) > maxAge {
			stale = append(stale, it)
		}
	}
	for _, it := range stale {
		f.drop(it)
	}
	return len(stale)
}

// Items returns the visible alerts, most recent first.
func (f *Feed) Items() []Alert {
	out := make([]Alert, 0, len(f.items))
	for _, it := range f.items {
		out = append(out, it.alert)
	}
	return out
}

// Len returns the number of visible alerts.
func (f *Feed) Len() int {
	return len(f.items)
}

func (f *Feed) schedule(it *item, now time.Time) {
	ttl := it.alert.TTL
	if ttl <= 0 {
		ttl = f.ttl
	}
	it.generation++
	heap.Push(&f.expiries, expiry{deadline: now.Add(ttl), id: it.alert.ID, generation: it.generation})
}

func (f *Feed) drop(it *item) {
	f.remove(it)
	delete(f.byID, it.alert.ID)
	it.generation++
	if f.onDismiss != nil {
		f.onDismiss(it.alert)
	}
}

func (f *Feed) remove(it *item) {
	for i, existing := range f.items {
		if existing == it {
			f.items = append(f.items[:i:i], f.items[i+1:]...)
			return
		}
	}
}

type expiry struct {
	deadline   time.Time
	id         string
	generation uint64
}

type expiryHeap []expiry

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].id < h[j].id
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h expiryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *expiryHeap) Push(x any) { *h = append(*h, x.(expiry)) }

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
