package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/dealerpulse/pulse/internal/models"
)

// threadIndex maps correlation references to capped event histories.
// The index itself is bounded: when more than maxThreads distinct refs are
// tracked, the least-recently-updated thread is evicted.
type threadIndex struct {
	maxThreads      int
	maxThreadEvents int
	threads         map[string]*models.PulseThread
}

func newThreadIndex(maxThreads, maxThreadEvents int) *threadIndex {
	return &threadIndex{
		maxThreads:      maxThreads,
		maxThreadEvents: maxThreadEvents,
		threads:         make(map[string]*models.PulseThread),
	}
}

// upsert creates the thread for ref on first sight, seeded with card;
// otherwise it prepends card to the event history and caps its length.
func (x *threadIndex) upsert(ref models.ThreadRef, card models.PulseCard, now time.Time) {
	t, ok := x.threads[ref.ID]
	if !ok {
		x.threads[ref.ID] = &models.PulseThread{
			ID:        uuid.New().String(),
			Ref:       ref,
			Events:    []models.PulseCard{card},
			CreatedAt: now,
			UpdatedAt: now,
		}
		x.evictOverflow()
		return
	}
	t.Events = append([]models.PulseCard{card}, t.Events...)
	if len(t.Events) > x.maxThreadEvents {
		t.Events = t.Events[:x.maxThreadEvents]
	}
	t.UpdatedAt = now
}

// evictOverflow removes least-recently-updated threads until the index fits
// its capacity again.
func (x *threadIndex) evictOverflow() {
	for len(x.threads) > x.maxThreads {
		var oldestKey string
		var oldestAt time.Time
		for key, t := range x.threads {
			if oldestKey == "" || t.UpdatedAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = t.UpdatedAt
			}
		}
		delete(x.threads, oldestKey)
	}
}

// get returns a copy of the thread for ref, if present.
func (x *threadIndex) get(ref models.ThreadRef) (models.PulseThread, bool) {
	t, ok := x.threads[ref.ID]
	if !ok {
		return models.PulseThread{}, false
	}
	cp := *t
	cp.Events = make([]models.PulseCard, len(t.Events))
	copy(cp.Events, t.Events)
	return cp, true
}

func (x *threadIndex) size() int {
	return len(x.threads)
}
