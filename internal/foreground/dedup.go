// Package foreground suppresses repeated pop-ups for the same event and routes notification clicks
// for a live client session.
package foreground

import (
	"sync"
	"time"
)

// DefaultCooldown is how long a shown event key suppresses repeats.
const DefaultCooldown = 30 * time.Second

// Timer is the part of *time.Timer the Deduplicator needs.
type Timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) Timer

// Deduplicator remembers recently shown event keys. Each key owns at most one eviction timer, which
// is replaced whenever the key is shown again.
type Deduplicator struct {
	cooldown time.Duration
	now      func() time.Time
	after    afterFunc

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	shownAt time.Time
	timer   Timer
}

// Option customizes a Deduplicator.
type Option func(*Deduplicator)

// WithClock replaces the wall clock and timer source.
func WithClock(now func() time.Time, after func(d time.Duration, f func()) Timer) Option {
	return func(d *Deduplicator) {
		if now != nil {
			d.now = now
		}
		if after != nil {
			d.after = after
		}
	}
}

// NewDeduplicator builds a Deduplicator. A non-positive cooldown uses DefaultCooldown.
func NewDeduplicator(cooldown time.Duration, opts ...Option) *Deduplicator {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	d := &Deduplicator{
		cooldown: cooldown,
		now:      time.Now,
		after: func(dur time.Duration, f func()) Timer {
			return time.AfterFunc(dur, f)
		},
		entries: map[string]*entry{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Key is the dedup key for an event.
func Key(eventType, relatedID string) string {
	return eventType + "_" + relatedID
}

// Allow reports whether the event should be shown and records it when it is.
func (d *Deduplicator) Allow(eventType, relatedID string) bool {
	return d.AllowKey(Key(eventType, relatedID))
}

// AllowKey is Allow for a prebuilt key.
func (d *Deduplicator) AllowKey(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if e, ok := d.entries[key]; ok {
		if now.Sub(e.shownAt) < d.cooldown {
			return false
		}
		e.timer.Stop()
	}

	e := &entry{shownAt: now}
	e.timer = d.after(d.cooldown, func() { d.evict(key, e) })
	d.entries[key] = e
	return true
}

// evict removes key only if owner is still its current entry.
func (d *Deduplicator) evict(key string, owner *entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.entries[key] == owner {
		delete(d.entries, key)
	}
}

// Len returns the number of remembered keys.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Close stops every pending eviction timer.
func (d *Deduplicator) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, e := range d.entries {
		e.timer.Stop()
		delete(d.entries, key)
	}
}
