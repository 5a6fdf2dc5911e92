package slots

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/clinic/agenda/internal/domain/booking"
)

var day = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func TestDirectory_DefaultTemplate(t *testing.T) {
	d := NewDirectory(DefaultTemplate())

	slots, err := d.SlotsFor(context.Background(), 1, day.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 template slots, got %d", len(slots))
	}
	wantHours := []int{8, 9, 10, 11}
	for i, s := range slots {
		if s.DateTime.Hour() != wantHours[i] {
			t.Errorf("slot %d: hour = %d, want %d", i, s.DateTime.Hour(), wantHours[i])
		}
		if !s.DateTime.Truncate(24 * time.Hour).Equal(day) {
			t.Errorf("slot %d: expected day %s, got %s", i, day, s.DateTime)
		}
	}
	if slots[2].Available {
		t.Error("expected the 10:00 slot to be unavailable")
	}
}

func TestDirectory_ExplicitSlotsReplaceTemplate(t *testing.T) {
	d := NewDirectory(DefaultTemplate())
	d.AddSlot(2, booking.TimeSlot{DateTime: day.Add(14 * time.Hour), Available: true})
	d.AddSlot(2, booking.TimeSlot{DateTime: day.Add(13 * time.Hour), Available: true})

	slots, err := d.SlotsFor(context.Background(), 2, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 explicit slots, got %d", len(slots))
	}
	if slots[0].DateTime.Hour() != 13 || slots[1].DateTime.Hour() != 14 {
		t.Errorf("expected slots sorted 13:00, 14:00, got %v", slots)
	}

	// Other facilities and days keep the template.
	other, _ := d.SlotsFor(context.Background(), 1, day)
	if len(other) != 4 {
		t.Errorf("expected template for facility 1, got %d slots", len(other))
	}
	next, _ := d.SlotsFor(context.Background(), 2, day.AddDate(0, 0, 1))
	if len(next) != 4 {
		t.Errorf("expected template for the next day, got %d slots", len(next))
	}
}

func TestDirectory_AddSlotReplacesSameInstant(t *testing.T) {
	d := NewDirectory(nil)
	at := day.Add(9 * time.Hour)
	d.AddSlot(1, booking.TimeSlot{DateTime: at, Available: true})
	d.AddSlot(1, booking.TimeSlot{DateTime: at, Available: false})

	slots, _ := d.SlotsFor(context.Background(), 1, day)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if slots[0].Available {
		t.Error("expected the replacement to mark the slot unavailable")
	}
}

func TestDirectory_EmptyTemplate(t *testing.T) {
	d := NewDirectory(nil)
	slots, err := d.SlotsFor(context.Background(), 1, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots, got %d", len(slots))
	}
}

func TestDirectory_Load(t *testing.T) {
	d := NewDirectory(DefaultTemplate())
	n, err := d.Load(strings.NewReader(`[
		{"unidadeId": 2, "dataHorario": "2024-01-15T14:00:00Z", "disponivel": true},
		{"unidadeId": 2, "dataHorario": "2024-01-15T12:30:00-03:00", "disponivel": false}
	]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 slots loaded, got %d", n)
	}

	slots, _ := d.SlotsFor(context.Background(), 2, day)
	if len(slots) != 2 {
		t.Fatalf("expected the explicit slots only, got %v", slots)
	}
	if slots[0].DateTime.Hour() != 14 || slots[1].DateTime.Hour() != 15 || slots[1].Available {
		t.Errorf("unexpected slots %v", slots)
	}
}

func TestDirectory_LoadRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"not json":         `{`,
		"missing facility": `[{"dataHorario": "2024-01-15T14:00:00Z"}]`,
		"missing time":     `[{"unidadeId": 1}]`,
	}
	for name, input := range tests {
		d := NewDirectory(DefaultTemplate())
		if _, err := d.Load(strings.NewReader(input)); err == nil {
			t.Errorf("%s: expected error", name)
		}
		if slots, _ := d.SlotsFor(context.Background(), 1, day); len(slots) != 4 {
			t.Errorf("%s: a rejected file must not add slots", name)
		}
	}
}
