package journal

import (
	"fmt"
	"testing"
	"time"

	"github.com/dealerpulse/pulse/internal/engine"
	"github.com/dealerpulse/pulse/internal/models"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:", 1000)
	if err != nil {
		t.Fatalf("failed to create test journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func testCard(id string) models.PulseCard {
	return models.PulseCard{
		ID:        id,
		TS:        time.Now(),
		Kind:      models.KindIncidentOpened,
		Level:     models.LevelCritical,
		Title:     "GBP sync failing",
		DedupeKey: "gbp-sync-fail",
		Thread:    &models.ThreadRef{Type: "incident", ID: "inc-1"},
	}
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j := newTestJournal(t)

	j.CardAdmitted(testCard("card-1"))
	j.CardDropped(testCard("card-2"), engine.DropDuplicate)

	entries, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].CardID != "card-2" || entries[0].Outcome != string(engine.DropDuplicate) {
		t.Errorf("unexpected head entry: %+v", entries[0])
	}
	if entries[1].CardID != "card-1" || entries[1].Outcome != "admitted" {
		t.Errorf("unexpected tail entry: %+v", entries[1])
	}
	if entries[1].DedupeKey != "gbp-sync-fail" {
		t.Errorf("dedupe key not recorded: %+v", entries[1])
	}
}

func TestJournal_CountByOutcome(t *testing.T) {
	j := newTestJournal(t)

	j.CardAdmitted(testCard("a"))
	j.CardAdmitted(testCard("b"))
	j.CardDropped(testCard("c"), engine.DropMuted)
	j.CardDropped(testCard("d"), engine.DropStale)

	counts, err := j.CountByOutcome()
	if err != nil {
		t.Fatalf("CountByOutcome: %v", err)
	}
	if counts["admitted"] != 2 {
		t.Errorf("expected 2 admitted, got %d", counts["admitted"])
	}
	if counts[string(engine.DropMuted)] != 1 || counts[string(engine.DropStale)] != 1 {
		t.Errorf("unexpected drop counts: %v", counts)
	}
}

func TestJournal_RowCap(t *testing.T) {
	j, err := Open(":memory:", 100)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	for i := 0; i < 120; i++ {
		j.CardAdmitted(testCard(fmt.Sprintf("card-%03d", i)))
	}

	entries, err := j.Recent(200)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 100 {
		t.Fatalf("expected 100 rows after rotation, got %d", len(entries))
	}
}
