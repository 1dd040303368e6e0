package models

import (
	"testing"
	"time"
)

func TestPulseCardValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		card    PulseCard
		wantErr bool
	}{
		{
			name: "valid card",
			card: PulseCard{
				ID:    "card-1",
				TS:    now,
				Kind:  KindIncidentOpened,
				Level: LevelCritical,
				Title: "GBP sync failing",
			},
			wantErr: false,
		},
		{
			name: "valid card with thread",
			card: PulseCard{
				ID:     "card-2",
				TS:     now,
				Kind:   KindIncidentResolved,
				Thread: &ThreadRef{Type: "incident", ID: "inc-42"},
			},
			wantErr: false,
		},
		{
			name:    "empty ID",
			card:    PulseCard{TS: now, Kind: KindKPIDelta},
			wantErr: true,
		},
		{
			name:    "zero timestamp",
			card:    PulseCard{ID: "card-3", Kind: KindKPIDelta},
			wantErr: true,
		},
		{
			name:    "empty kind",
			card:    PulseCard{ID: "card-4", TS: now},
			wantErr: true,
		},
		{
			name:    "negative TTL",
			card:    PulseCard{ID: "card-5", TS: now, Kind: KindMarketSignal, TTLSec: -10},
			wantErr: true,
		},
		{
			name: "thread ref missing ID",
			card: PulseCard{
				ID:     "card-6",
				TS:     now,
				Kind:   KindIncidentOpened,
				Thread: &ThreadRef{Type: "incident"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.card.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("PulseCard.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPulseCardExpired(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	card := PulseCard{ID: "c", TS: t0, Kind: KindKPIDelta, TTLSec: 60}

	if card.Expired(t0.Add(59 * time.Second)) {
		t.Error("card expired before its TTL lapsed")
	}
	if !card.Expired(t0.Add(61 * time.Second)) {
		t.Error("card not expired after its TTL lapsed")
	}

	noTTL := PulseCard{ID: "c2", TS: t0, Kind: KindKPIDelta}
	if noTTL.Expired(t0.Add(24 * time.Hour)) {
		t.Error("card without TTL should never expire")
	}
}
