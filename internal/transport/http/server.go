// Package transporthttp exposes the pulse engine to producers and consumers
// over a JSON HTTP API.
package transporthttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dealerpulse/pulse/internal/engine"
	"github.com/dealerpulse/pulse/internal/logger"
	"github.com/dealerpulse/pulse/internal/models"
)

// Notifier receives admitted critical cards.
type Notifier interface {
	SendCards(cards []models.PulseCard) error
}

// Recorder receives ingest outcomes and engine gauges.
type Recorder interface {
	IncIngested(outcome string, n int)
	SetCounts(cards, threads, mutes int)
}

// Server wires the engine to HTTP handlers. The notifier and recorder are
// optional.
type Server struct {
	engine   *engine.Engine
	notifier Notifier
	recorder Recorder
}

func NewServer(eng *engine.Engine, notifier Notifier, recorder Recorder) *Server {
	return &Server{engine: eng, notifier: notifier, recorder: recorder}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("POST /pulse", s.handleIngest)
	mux.HandleFunc("GET /pulse", s.handleSnapshot)
	mux.HandleFunc("GET /pulse/thread/{type}/{id}", s.handleThread)
	mux.HandleFunc("POST /pulse/{id}/snooze", s.handleSnooze)
	mux.HandleFunc("POST /mute", s.handleMute)
	mux.HandleFunc("GET /mutes", s.handleMutes)
	mux.HandleFunc("DELETE /mute/{key}", s.handleUnmute)
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cardPayload is the wire form of a pulse card; timestamps arrive as RFC 3339.
type cardPayload struct {
	ID        string            `json:"id"`
	TS        string            `json:"ts"`
	Kind      string            `json:"kind"`
	Level     string            `json:"level"`
	Title     string            `json:"title"`
	Detail    string            `json:"detail"`
	Delta     float64           `json:"delta"`
	DedupeKey string            `json:"dedupe_key"`
	TTLSec    int               `json:"ttl_sec"`
	Thread    *models.ThreadRef `json:"thread"`
	Actions   []string          `json:"actions"`
}

func (p cardPayload) toCard() (models.PulseCard, error) {
	ts, err := time.Parse(time.RFC3339, p.TS)
	if err != nil {
		return models.PulseCard{}, err
	}
	return models.PulseCard{
		ID:        p.ID,
		TS:        ts,
		Kind:      p.Kind,
		Level:     p.Level,
		Title:     p.Title,
		Detail:    p.Detail,
		Delta:     p.Delta,
		DedupeKey: p.DedupeKey,
		TTLSec:    p.TTLSec,
		Thread:    p.Thread,
		Actions:   p.Actions,
	}, nil
}

// handleIngest accepts a single card object or an array of cards. Cards with
// unparseable timestamps are rejected individually and show up in the
// report's invalid count; they never fail the whole request.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	var payloads []cardPayload
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &payloads); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	} else {
		var one cardPayload
		if err := json.Unmarshal(raw, &one); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		payloads = []cardPayload{one}
	}

	cards := make([]models.PulseCard, 0, len(payloads))
	badTimestamps := 0
	for _, p := range payloads {
		card, err := p.toCard()
		if err != nil {
			badTimestamps++
			logger.Warn("Rejecting card with malformed timestamp %q: %v", p.TS, err)
			continue
		}
		cards = append(cards, card)
	}

	rep := s.engine.IngestMany(cards)
	rep.Invalid += badTimestamps

	if s.recorder != nil {
		s.recorder.IncIngested("accepted", rep.Accepted)
		s.recorder.IncIngested("muted", rep.Muted)
		s.recorder.IncIngested("duplicate", rep.Duplicate)
		s.recorder.IncIngested("stale", rep.Stale)
		s.recorder.IncIngested("invalid", rep.Invalid)
		s.recorder.SetCounts(s.engine.Counts())
	}

	if s.notifier != nil {
		var critical []models.PulseCard
		for _, card := range rep.Cards {
			if card.Level == models.LevelCritical {
				critical = append(critical, card)
			}
		}
		if len(critical) > 0 {
			go func() {
				if err := s.notifier.SendCards(critical); err != nil {
					logger.Error("Failed to send notification: %v", err)
				}
			}()
		}
	}

	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	cards := s.engine.Snapshot()

	q := r.URL.Query()
	level := q.Get("level")
	kind := q.Get("kind")
	var since time.Time
	if raw := q.Get("since"); raw != "" {
		var err error
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
	}

	filtered := make([]models.PulseCard, 0, len(cards))
	for _, card := range cards {
		if level != "" && card.Level != level {
			continue
		}
		if kind != "" && card.Kind != kind {
			continue
		}
		if !since.IsZero() && card.TS.Before(since) {
			continue
		}
		filtered = append(filtered, card)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"as_of": time.Now().UTC(),
		"count": len(filtered),
		"cards": filtered,
	})
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	ref := models.ThreadRef{Type: r.PathValue("type"), ID: r.PathValue("id")}
	thread, ok := s.engine.ThreadFor(ref)
	if !ok {
		s.writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"thread": thread})
}

func (s *Server) handleSnooze(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Duration string `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	cardID := r.PathValue("id")
	err := s.engine.Snooze(cardID, payload.Duration)
	switch {
	case errors.Is(err, engine.ErrCardNotFound):
		s.writeError(w, http.StatusNotFound, "card not found")
	case err != nil:
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "snoozed"})
	}
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Key        string `json:"key"`
		TTLMinutes int    `json:"ttl_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if payload.Key == "" {
		s.writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	s.engine.Mute(payload.Key, payload.TTLMinutes)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "muted"})
}

func (s *Server) handleMutes(w http.ResponseWriter, r *http.Request) {
	entries := s.engine.ActiveMutes()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count": len(entries),
		"mutes": entries,
	})
}

func (s *Server) handleUnmute(w http.ResponseWriter, r *http.Request) {
	s.engine.Unmute(r.PathValue("key"))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "unmuted"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug("Failed to write response body: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
