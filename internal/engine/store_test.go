package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/dealerpulse/pulse/internal/models"
)

func storeCard(id string, ts time.Time) models.PulseCard {
	return models.PulseCard{ID: id, TS: ts, Kind: models.KindKPIDelta, Title: "card " + id}
}

func TestCardStore_InsertSortsMostRecentFirst(t *testing.T) {
	s := newCardStore(10)
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	s.insert(storeCard("b", t0.Add(time.Minute)))
	s.insert(storeCard("a", t0.Add(3*time.Minute)), storeCard("c", t0))

	snap := s.snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(snap))
	}
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if snap[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, snap[i].ID, id)
		}
	}
}

func TestCardStore_CapacityKeepsMostRecent(t *testing.T) {
	s := newCardStore(5)
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		s.insert(storeCard(fmt.Sprintf("c%02d", i), t0.Add(time.Duration(i)*time.Minute)))
		if s.size() > 5 {
			t.Fatalf("capacity exceeded after insert %d: %d cards", i, s.size())
		}
	}

	snap := s.snapshot()
	if len(snap) != 5 {
		t.Fatalf("expected 5 cards, got %d", len(snap))
	}
	// The five most recent by timestamp, newest first.
	for i, id := range []string{"c11", "c10", "c09", "c08", "c07"} {
		if snap[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, snap[i].ID, id)
		}
	}
}

func TestCardStore_HasRecentDuplicate(t *testing.T) {
	s := newCardStore(10)
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	window := 10 * time.Minute

	card := storeCard("a", t0)
	card.DedupeKey = "gbp-sync-fail"
	s.insert(card)

	if !s.hasRecentDuplicate("gbp-sync-fail", t0.Add(5*time.Minute), window) {
		t.Error("card inside the bundling window not detected")
	}
	if !s.hasRecentDuplicate("gbp-sync-fail", t0.Add(-5*time.Minute), window) {
		t.Error("window comparison must be symmetric")
	}
	if s.hasRecentDuplicate("gbp-sync-fail", t0.Add(10*time.Minute), window) {
		t.Error("card exactly at the window edge should not match")
	}
	if s.hasRecentDuplicate("other-key", t0.Add(5*time.Minute), window) {
		t.Error("different key matched")
	}
	if s.hasRecentDuplicate("", t0, window) {
		t.Error("empty key must never match")
	}
}

func TestCardStore_RemoveExpired(t *testing.T) {
	s := newCardStore(10)
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	short := storeCard("short", t0)
	short.TTLSec = 60
	long := storeCard("long", t0)
	long.TTLSec = 3600
	forever := storeCard("forever", t0)
	s.insert(short, long, forever)

	removed := s.removeExpired(t0.Add(2 * time.Minute))
	if removed != 1 {
		t.Fatalf("expected 1 removed card, got %d", removed)
	}
	if _, ok := s.byID("short"); ok {
		t.Error("expired card still resident")
	}
	if _, ok := s.byID("long"); !ok {
		t.Error("live card evicted")
	}
	if _, ok := s.byID("forever"); !ok {
		t.Error("card without TTL evicted")
	}
}

func TestCardStore_SnapshotIsACopy(t *testing.T) {
	s := newCardStore(10)
	s.insert(storeCard("a", time.Now()))

	snap := s.snapshot()
	snap[0].ID = "mutated"

	if got, _ := s.byID("a"); got.ID != "a" {
		t.Error("snapshot mutation leaked into the store")
	}
}
