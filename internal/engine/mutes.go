package engine

import (
	"sort"
	"time"

	"github.com/dealerpulse/pulse/internal/models"
)

// muteRegistry maps dedupe keys to absolute suppression expiries.
// Not safe for concurrent use on its own; the Engine serializes access.
type muteRegistry struct {
	entries map[string]time.Time
}

func newMuteRegistry() *muteRegistry {
	return &muteRegistry{entries: make(map[string]time.Time)}
}

// mute installs or overwrites the expiry for key at now + ttlMinutes.
// An empty key or non-positive TTL is a no-op.
func (r *muteRegistry) mute(key string, ttlMinutes int, now time.Time) {
	if key == "" || ttlMinutes <= 0 {
		return
	}
	r.entries[key] = now.Add(time.Duration(ttlMinutes) * time.Minute)
}

// unmute removes the entry for key immediately, regardless of expiry.
func (r *muteRegistry) unmute(key string) {
	delete(r.entries, key)
}

// isActive reports whether key is suppressed at now.
func (r *muteRegistry) isActive(key string, now time.Time) bool {
	expiresAt, ok := r.entries[key]
	return ok && now.Before(expiresAt)
}

// purgeExpired drops entries whose expiry has passed. Returns the number
// of entries removed.
func (r *muteRegistry) purgeExpired(now time.Time) int {
	removed := 0
	for key, expiresAt := range r.entries {
		if !now.Before(expiresAt) {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

// snapshot returns the entries still active at now, sorted by key.
// Entries past their expiry are omitted even if a sweep has not purged
// them yet.
func (r *muteRegistry) snapshot(now time.Time) []models.MuteEntry {
	entries := make([]models.MuteEntry, 0, len(r.entries))
	for key, expiresAt := range r.entries {
		if now.Before(expiresAt) {
			entries = append(entries, models.MuteEntry{Key: key, ExpiresAt: expiresAt})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

func (r *muteRegistry) size() int {
	return len(r.entries)
}
