package slots

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/clinic/agenda/internal/domain/booking"
)

const dayLayout = "2006-01-02"

// Template is a time of day, in UTC, at which every facility offers a slot
// unless the day has explicit slots.
type Template struct {
	Hour      int
	Minute    int
	Available bool
}

// DefaultTemplate is the daily grid used when nothing else is configured.
func DefaultTemplate() []Template {
	return []Template{
		{Hour: 8, Available: true},
		{Hour: 9, Available: true},
		{Hour: 10, Available: false},
		{Hour: 11, Available: true},
	}
}

// Directory is an in-memory booking.SlotSource. A day either uses the
// template or, once any slot was added for it, only its explicit slots.
type Directory struct {
	mu       sync.RWMutex
	template []Template
	explicit map[int64]map[string][]booking.TimeSlot // facility ID -> day -> slots
}

// NewDirectory creates a Directory that fills days from template.
func NewDirectory(template []Template) *Directory {
	return &Directory{
		template: template,
		explicit: make(map[int64]map[string][]booking.TimeSlot),
	}
}

// AddSlot sets an explicit slot for a facility, replacing one at the same
// instant.
func (d *Directory) AddSlot(facilityID int64, slot booking.TimeSlot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot.DateTime = slot.DateTime.UTC()
	days, ok := d.explicit[facilityID]
	if !ok {
		days = make(map[string][]booking.TimeSlot)
		d.explicit[facilityID] = days
	}
	key := slot.DateTime.Format(dayLayout)
	for i, s := range days[key] {
		if s.DateTime.Equal(slot.DateTime) {
			days[key][i] = slot
			return
		}
	}
	days[key] = append(days[key], slot)
}

// SlotsFor returns the slots offered by facilityID on day, sorted by start.
func (d *Directory) SlotsFor(_ context.Context, facilityID int64, day time.Time) ([]booking.TimeSlot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	day = day.UTC()
	var results []booking.TimeSlot
	if explicit, ok := d.explicit[facilityID][day.Format(dayLayout)]; ok {
		results = append(results, explicit...)
	} else {
		for _, t := range d.template {
			results = append(results, booking.TimeSlot{
				DateTime:  time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, time.UTC),
				Available: t.Available,
			})
		}
	}

	booking.SortSlots(results)
	return results, nil
}

// slotEntry is one explicit slot in a slots file.
type slotEntry struct {
	FacilityID int64     `json:"unidadeId"`
	DateTime   time.Time `json:"dataHorario"`
	Available  bool      `json:"disponivel"`
}

// Load reads a JSON array of {unidadeId, dataHorario, disponivel} entries
// and adds each as an explicit slot. It returns the number of slots added.
func (d *Directory) Load(r io.Reader) (int, error) {
	var entries []slotEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return 0, fmt.Errorf("decode slots: %w", err)
	}
	for i, e := range entries {
		if e.FacilityID <= 0 || e.DateTime.IsZero() {
			return 0, fmt.Errorf("slot %d: unidadeId and dataHorario are required", i)
		}
	}
	for _, e := range entries {
		d.AddSlot(e.FacilityID, booking.TimeSlot{DateTime: e.DateTime, Available: e.Available})
	}
	return len(entries), nil
}
