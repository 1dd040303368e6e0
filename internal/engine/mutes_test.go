package engine

import (
	"testing"
	"time"
)

func TestMuteRegistry_ActiveUntilExpiry(t *testing.T) {
	r := newMuteRegistry()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	r.mute("gbp-sync-fail", 15, t0)

	if !r.isActive("gbp-sync-fail", t0) {
		t.Error("key should be active immediately after mute")
	}
	if !r.isActive("gbp-sync-fail", t0.Add(14*time.Minute)) {
		t.Error("key should be active before expiry")
	}
	if r.isActive("gbp-sync-fail", t0.Add(15*time.Minute)) {
		t.Error("key should be inactive at expiry")
	}
	if r.isActive("gbp-sync-fail", t0.Add(20*time.Minute)) {
		t.Error("key should stay inactive after expiry")
	}
}

func TestMuteRegistry_Idempotent(t *testing.T) {
	r := newMuteRegistry()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	r.mute("k", 15, t0)
	r.mute("k", 15, t0)

	if r.size() != 1 {
		t.Errorf("expected 1 entry after double mute, got %d", r.size())
	}
	if !r.isActive("k", t0.Add(14*time.Minute)) {
		t.Error("double mute changed the suppression outcome")
	}
	if r.isActive("k", t0.Add(16*time.Minute)) {
		t.Error("double mute extended the expiry")
	}
}

func TestMuteRegistry_OverwriteExtends(t *testing.T) {
	r := newMuteRegistry()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	r.mute("k", 15, t0)
	r.mute("k", 60, t0.Add(10*time.Minute))

	if !r.isActive("k", t0.Add(30*time.Minute)) {
		t.Error("re-mute should have overwritten the expiry")
	}
}

func TestMuteRegistry_NonPositiveTTLIsNoop(t *testing.T) {
	r := newMuteRegistry()
	t0 := time.Now()

	r.mute("k", 0, t0)
	r.mute("k", -5, t0)

	if r.size() != 0 {
		t.Errorf("expected no entries, got %d", r.size())
	}
	if r.isActive("k", t0) {
		t.Error("non-positive TTL must not install a suppression")
	}

	// An existing entry must survive a bogus re-mute.
	r.mute("k", 15, t0)
	r.mute("k", 0, t0)
	if !r.isActive("k", t0.Add(time.Minute)) {
		t.Error("zero TTL re-mute clobbered an existing entry")
	}
}

func TestMuteRegistry_Unmute(t *testing.T) {
	r := newMuteRegistry()
	t0 := time.Now()

	r.mute("k", 60, t0)
	r.unmute("k")

	if r.isActive("k", t0) {
		t.Error("key still active after unmute")
	}
	// Unmuting an absent key is total.
	r.unmute("missing")
}

func TestMuteRegistry_Snapshot(t *testing.T) {
	r := newMuteRegistry()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	r.mute("zulu", 60, t0)
	r.mute("alpha", 30, t0)
	r.mute("short", 5, t0)

	entries := r.snapshot(t0.Add(10 * time.Minute))
	if len(entries) != 2 {
		t.Fatalf("expected 2 active entries, got %d: %v", len(entries), entries)
	}
	if entries[0].Key != "alpha" || entries[1].Key != "zulu" {
		t.Errorf("entries not sorted by key: %v", entries)
	}
	if want := t0.Add(30 * time.Minute); !entries[0].ExpiresAt.Equal(want) {
		t.Errorf("alpha expiry: got %v, want %v", entries[0].ExpiresAt, want)
	}
}

func TestMuteRegistry_PurgeExpired(t *testing.T) {
	r := newMuteRegistry()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	r.mute("short", 5, t0)
	r.mute("long", 60, t0)

	removed := r.purgeExpired(t0.Add(10 * time.Minute))
	if removed != 1 {
		t.Errorf("expected 1 purged entry, got %d", removed)
	}
	if r.isActive("short", t0.Add(10*time.Minute)) {
		t.Error("purged key still active")
	}
	if !r.isActive("long", t0.Add(10*time.Minute)) {
		t.Error("live key purged too early")
	}
}
