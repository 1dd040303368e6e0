// Package engine implements the in-memory Pulse decision-inbox store:
// card ingestion with mute, freshness, and bundling filters, per-thread
// event histories, and a periodic sweep of expired cards and mute entries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dealerpulse/pulse/internal/logger"
	"github.com/dealerpulse/pulse/internal/models"
)

// Config holds the engine tunables. Zero fields fall back to defaults so
// tests can override only the windows they compress.
type Config struct {
	MaxCards        int
	MaxThreadEvents int
	MaxThreads      int
	BundleWindow    time.Duration
	SweepInterval   time.Duration
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		MaxCards:        200,
		MaxThreadEvents: 100,
		MaxThreads:      500,
		BundleWindow:    10 * time.Minute,
		SweepInterval:   time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxCards <= 0 {
		c.MaxCards = def.MaxCards
	}
	if c.MaxThreadEvents <= 0 {
		c.MaxThreadEvents = def.MaxThreadEvents
	}
	if c.MaxThreads <= 0 {
		c.MaxThreads = def.MaxThreads
	}
	if c.BundleWindow <= 0 {
		c.BundleWindow = def.BundleWindow
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	return c
}

// DropReason classifies why an ingested card was not surfaced.
type DropReason string

const (
	DropMuted     DropReason = "muted"
	DropDuplicate DropReason = "duplicate"
	DropStale     DropReason = "stale"
	DropInvalid   DropReason = "invalid"
)

// Report summarizes one ingest call.
type Report struct {
	Accepted  int `json:"accepted"`
	Muted     int `json:"muted"`
	Duplicate int `json:"duplicate"`
	Stale     int `json:"stale"`
	Invalid   int `json:"invalid"`

	// Cards admitted by this call, for notifier fan-out. Not serialized.
	Cards []models.PulseCard `json:"-"`
}

// Dropped returns the total number of cards this call did not admit.
func (r Report) Dropped() int {
	return r.Muted + r.Duplicate + r.Stale + r.Invalid
}

// Journal receives admitted cards and drop decisions for offline reporting.
// The engine never reads anything back; implementations must tolerate calls
// from multiple goroutines.
type Journal interface {
	CardAdmitted(card models.PulseCard)
	CardDropped(card models.PulseCard, reason DropReason)
}

// SweepRecorder receives the duration of each background sweep pass and the
// state sizes it left behind. Implementations must tolerate calls from the
// sweeper goroutine.
type SweepRecorder interface {
	ObserveSweep(d time.Duration)
	SetCounts(cards, threads, mutes int)
}

// Snooze durations accepted by Snooze.
const (
	Snooze15m      = "15m"
	Snooze1h       = "1h"
	SnoozeEndOfDay = "end_of_day"
)

// ErrCardNotFound is returned by Snooze when the referenced card is not
// resident in the store.
var ErrCardNotFound = errors.New("card not found")

// Engine owns all Pulse state. One mutex guards every mutation, including
// the ones made by the background sweeper.
type Engine struct {
	cfg      Config
	now      func() time.Time
	journal  Journal
	recorder SweepRecorder

	mu      sync.Mutex
	mutes   *muteRegistry
	threads *threadIndex
	store   *cardStore
}

// New creates an engine with the given tunables and the wall clock.
func New(cfg Config) *Engine {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock creates an engine whose notion of "now" comes from clock.
// Tests use this to run compressed time windows deterministically.
func NewWithClock(cfg Config, clock func() time.Time) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:     cfg,
		now:     clock,
		mutes:   newMuteRegistry(),
		threads: newThreadIndex(cfg.MaxThreads, cfg.MaxThreadEvents),
		store:   newCardStore(cfg.MaxCards),
	}
}

// SetJournal attaches an optional ingest journal. Call before Start.
func (e *Engine) SetJournal(j Journal) {
	e.journal = j
}

// SetSweepRecorder attaches an optional sweep instrument. Call before Start.
func (e *Engine) SetSweepRecorder(r SweepRecorder) {
	e.recorder = r
}

// IngestOne runs a single card through the admission pipeline.
func (e *Engine) IngestOne(card models.PulseCard) Report {
	return e.IngestMany([]models.PulseCard{card})
}

type ingestOutcome struct {
	card     models.PulseCard
	reason   DropReason
	admitted bool
}

// IngestMany admits a batch of cards: mute check, freshness check, bundling
// filter, thread upsert, store insert. Dedup within a batch is incremental:
// cards admitted earlier in the call are visible to the bundling filter for
// later ones, so same-batch duplicates collapse to the first occurrence.
func (e *Engine) IngestMany(cards []models.PulseCard) Report {
	now := e.now()
	var rep Report
	outcomes := make([]ingestOutcome, 0, len(cards))

	e.mu.Lock()
	var accepted []models.PulseCard
	seenRecently := func(key string, ts time.Time) bool {
		if e.store.hasRecentDuplicate(key, ts, e.cfg.BundleWindow) {
			return true
		}
		for i := range accepted {
			if accepted[i].DedupeKey != key {
				continue
			}
			gap := ts.Sub(accepted[i].TS)
			if gap < 0 {
				gap = -gap
			}
			if gap < e.cfg.BundleWindow {
				return true
			}
		}
		return false
	}

	for _, card := range cards {
		if card.ID == "" {
			card.ID = uuid.New().String()
		}
		if err := card.Validate(); err != nil {
			rep.Invalid++
			outcomes = append(outcomes, ingestOutcome{card: card, reason: DropInvalid})
			logger.Warn("Rejecting card %s: %v", card.ID, err)
			continue
		}
		if card.DedupeKey != "" && e.mutes.isActive(card.DedupeKey, now) {
			rep.Muted++
			outcomes = append(outcomes, ingestOutcome{card: card, reason: DropMuted})
			continue
		}
		if card.Expired(now) {
			rep.Stale++
			outcomes = append(outcomes, ingestOutcome{card: card, reason: DropStale})
			continue
		}
		if card.DedupeKey != "" && seenRecently(card.DedupeKey, card.TS) {
			rep.Duplicate++
			outcomes = append(outcomes, ingestOutcome{card: card, reason: DropDuplicate})
			continue
		}
		if card.Thread != nil {
			e.threads.upsert(*card.Thread, card, now)
		}
		accepted = append(accepted, card)
		rep.Accepted++
		outcomes = append(outcomes, ingestOutcome{card: card, admitted: true})
	}
	e.store.insert(accepted...)
	e.mu.Unlock()

	rep.Cards = accepted

	// Journal writes happen outside the lock; they may hit disk.
	if e.journal != nil {
		for _, o := range outcomes {
			if o.admitted {
				e.journal.CardAdmitted(o.card)
			} else {
				e.journal.CardDropped(o.card, o.reason)
			}
		}
	}

	if rep.Dropped() > 0 {
		logger.Debug("Ingested %d cards: %d accepted, %d muted, %d duplicate, %d stale, %d invalid",
			len(cards), rep.Accepted, rep.Muted, rep.Duplicate, rep.Stale, rep.Invalid)
	}
	return rep
}

// Snapshot returns the surfaced cards, most recent first.
func (e *Engine) Snapshot() []models.PulseCard {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.snapshot()
}

// ThreadFor returns the aggregated history for ref, if one exists.
func (e *Engine) ThreadFor(ref models.ThreadRef) (models.PulseThread, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.threads.get(ref)
}

// Mute suppresses cards carrying key for ttlMinutes from now.
// A non-positive TTL is a no-op.
func (e *Engine) Mute(key string, ttlMinutes int) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mutes.mute(key, ttlMinutes, now)
}

// Unmute lifts a suppression immediately.
func (e *Engine) Unmute(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mutes.unmute(key)
}

// ActiveMutes returns the suppressions currently in force, sorted by key.
func (e *Engine) ActiveMutes() []models.MuteEntry {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mutes.snapshot(now)
}

// MuteActive reports whether key is currently suppressed.
func (e *Engine) MuteActive(key string) bool {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mutes.isActive(key, now)
}

// Snooze mutes the dedupe key of the referenced card for the given duration
// tag. A resident card without a dedupe key snoozes to a no-op.
func (e *Engine) Snooze(cardID, duration string) error {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()

	card, ok := e.store.byID(cardID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	minutes, err := snoozeMinutes(duration, now)
	if err != nil {
		return err
	}
	if card.DedupeKey == "" {
		return nil
	}
	e.mutes.mute(card.DedupeKey, minutes, now)
	return nil
}

// snoozeMinutes maps a snooze duration tag to minutes from now.
// end_of_day runs until local midnight.
func snoozeMinutes(duration string, now time.Time) (int, error) {
	switch duration {
	case Snooze15m:
		return 15, nil
	case Snooze1h:
		return 60, nil
	case SnoozeEndOfDay:
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		minutes := int(midnight.Sub(now).Minutes())
		if minutes < 1 {
			minutes = 1
		}
		return minutes, nil
	default:
		return 0, fmt.Errorf("unknown snooze duration %q", duration)
	}
}

// Sweep evicts expired cards and expired mute entries. Returns the number
// removed from each. Safe to call at any time; the background sweeper uses
// the same path.
func (e *Engine) Sweep() (cards, mutes int) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.removeExpired(now), e.mutes.purgeExpired(now)
}

// Start launches the periodic sweeper. It returns immediately; the sweeper
// stops when ctx is cancelled. Sweeps are idempotent, so a skipped or
// repeated cycle is harmless.
func (e *Engine) Start(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				cards, mutes := e.Sweep()
				if e.recorder != nil {
					e.recorder.ObserveSweep(time.Since(start))
					e.recorder.SetCounts(e.Counts())
				}
				if cards > 0 || mutes > 0 {
					logger.Debug("Sweep evicted %d expired cards, %d expired mutes", cards, mutes)
				}
			}
		}
	}()
}

// Counts returns the current store, thread index, and mute registry sizes.
func (e *Engine) Counts() (cards, threads, mutes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.size(), e.threads.size(), e.mutes.size()
}
