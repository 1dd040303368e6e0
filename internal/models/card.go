// Package models defines the core domain entities: pulse cards, threads, and mutes.
package models

import (
	"errors"
	"time"
)

// Card kinds surfaced by the decision inbox. The set is open: producers may
// introduce new kinds without an engine change.
const (
	KindKPIDelta         = "kpi_delta"
	KindIncidentOpened   = "incident_opened"
	KindIncidentResolved = "incident_resolved"
	KindSLABreach        = "sla_breach"
	KindMarketSignal     = "market_signal"
	KindSystemHealth     = "system_health"
	KindAutoFix          = "auto_fix"
)

// Severity levels. Used for filtering and display only; the engine's
// admission logic ignores them.
const (
	LevelInfo     = "info"
	LevelLow      = "low"
	LevelMedium   = "medium"
	LevelHigh     = "high"
	LevelCritical = "critical"
)

// ThreadRef correlates a card to a broader thread, e.g. one incident's
// lifecycle.
type ThreadRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PulseCard is one discrete operational event surfaced to the decision inbox.
// Cards sharing a non-empty DedupeKey within the bundling window collapse
// into the earlier-admitted card.
type PulseCard struct {
	ID        string     `json:"id"`
	TS        time.Time  `json:"ts"`
	Kind      string     `json:"kind"`
	Level     string     `json:"level"`
	Title     string     `json:"title"`
	Detail    string     `json:"detail,omitempty"`
	Delta     float64    `json:"delta,omitempty"`
	DedupeKey string     `json:"dedupe_key,omitempty"`
	TTLSec    int        `json:"ttl_sec,omitempty"`
	Thread    *ThreadRef `json:"thread,omitempty"`
	Actions   []string   `json:"actions,omitempty"`
}

// Validate checks card field constraints.
func (c *PulseCard) Validate() error {
	if c.ID == "" {
		return errors.New("card ID must not be empty")
	}
	if c.TS.IsZero() {
		return errors.New("card timestamp must not be zero")
	}
	if c.Kind == "" {
		return errors.New("card kind must not be empty")
	}
	if c.TTLSec < 0 {
		return errors.New("card TTL must not be negative")
	}
	if c.Thread != nil {
		if c.Thread.Type == "" {
			return errors.New("thread ref type must not be empty")
		}
		if c.Thread.ID == "" {
			return errors.New("thread ref ID must not be empty")
		}
	}
	return nil
}

// Expired reports whether the card has aged past its TTL at now.
// Cards without a TTL never expire.
func (c *PulseCard) Expired(now time.Time) bool {
	if c.TTLSec <= 0 {
		return false
	}
	return now.Sub(c.TS) > time.Duration(c.TTLSec)*time.Second
}

// PulseThread aggregates the history of cards sharing one correlation
// reference. Events are kept most-recent-first and capped by the engine.
type PulseThread struct {
	ID        string      `json:"id"`
	Ref       ThreadRef   `json:"ref"`
	Events    []PulseCard `json:"events"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// MuteEntry records a temporary suppression for one dedupe key.
type MuteEntry struct {
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}
