package engine

import (
	"sort"
	"time"

	"github.com/dealerpulse/pulse/internal/models"
)

// cardStore is the bounded, most-recent-first collection of surfaced cards.
// When capacity is exceeded the oldest cards silently drop off.
type cardStore struct {
	maxCards int
	cards    []models.PulseCard
}

func newCardStore(maxCards int) *cardStore {
	return &cardStore{maxCards: maxCards}
}

// insert merges accepted cards with the resident set, sorts the union by
// timestamp descending, and truncates to capacity.
func (s *cardStore) insert(cards ...models.PulseCard) {
	if len(cards) == 0 {
		return
	}
	s.cards = append(s.cards, cards...)
	sort.SliceStable(s.cards, func(i, j int) bool {
		return s.cards[i].TS.After(s.cards[j].TS)
	})
	if len(s.cards) > s.maxCards {
		s.cards = s.cards[:s.maxCards]
	}
}

// hasRecentDuplicate reports whether a resident card shares key with a
// timestamp within window of ts. An empty key never matches.
func (s *cardStore) hasRecentDuplicate(key string, ts time.Time, window time.Duration) bool {
	if key == "" {
		return false
	}
	for i := range s.cards {
		if s.cards[i].DedupeKey != key {
			continue
		}
		gap := ts.Sub(s.cards[i].TS)
		if gap < 0 {
			gap = -gap
		}
		if gap < window {
			return true
		}
	}
	return false
}

// byID returns the resident card with the given id.
func (s *cardStore) byID(id string) (models.PulseCard, bool) {
	for i := range s.cards {
		if s.cards[i].ID == id {
			return s.cards[i], true
		}
	}
	return models.PulseCard{}, false
}

// removeExpired drops cards whose TTL has lapsed at now. Returns the number
// of cards removed.
func (s *cardStore) removeExpired(now time.Time) int {
	kept := s.cards[:0]
	removed := 0
	for _, card := range s.cards {
		if card.Expired(now) {
			removed++
			continue
		}
		kept = append(kept, card)
	}
	s.cards = kept
	return removed
}

// snapshot returns a copy of the surfaced cards, most recent first.
func (s *cardStore) snapshot() []models.PulseCard {
	out := make([]models.PulseCard, len(s.cards))
	copy(out, s.cards)
	return out
}

func (s *cardStore) size() int {
	return len(s.cards)
}
