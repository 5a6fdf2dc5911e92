package booking

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory AppointmentRepository and PatientRepository,
// used when no database is configured and in tests.
type MemoryStore struct {
	mu           sync.RWMutex
	appointments map[int64]*Appointment
	patients     map[int64]*Patient
	bookedSlots  map[slotKey]int64 // facility+instant -> Scheduled appointment ID
	nextApptID   int64
	nextPatient  int64
}

type slotKey struct {
	facilityID int64
	at         int64
}

func keyFor(facilityID int64, at time.Time) slotKey {
	return slotKey{facilityID: facilityID, at: at.UTC().Unix()}
}

// NewMemoryStore creates an empty store. New patient ids start after the
// highest seeded id.
func NewMemoryStore(seed ...Patient) *MemoryStore {
	m := &MemoryStore{
		appointments: make(map[int64]*Appointment),
		patients:     make(map[int64]*Patient),
		bookedSlots:  make(map[slotKey]int64),
	}
	for _, p := range seed {
		p := p
		m.patients[p.ID] = &p
		if p.ID > m.nextPatient {
			m.nextPatient = p.ID
		}
	}
	return m
}

// DefaultPatients returns the patients already registered at the clinic.
func DefaultPatients() []Patient {
	return []Patient{
		{ID: 101, FullName: "João Silva", TaxID: "123.456.789-00"},
		{ID: 102, FullName: "Maria Souza", TaxID: "456.789.123-00"},
	}
}

func (m *MemoryStore) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyFor(a.Facility.ID, a.DateTime)
	if _, booked := m.bookedSlots[key]; booked {
		return ErrSlotTaken
	}

	m.nextApptID++
	now := time.Now()
	a.ID = m.nextApptID
	a.CreatedAt = now
	a.UpdatedAt = now

	cp := *a
	m.appointments[a.ID] = &cp
	if a.Status == StatusScheduled {
		m.bookedSlots[key] = a.ID
	}
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id int64) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, status Status, limit, offset int) ([]*Appointment, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*Appointment
	for _, a := range m.appointments {
		if status != "" && a.Status != status {
			continue
		}
		cp := *a
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].DateTime.Equal(all[j].DateTime) {
			return all[i].ID < all[j].ID
		}
		return all[i].DateTime.Before(all[j].DateTime)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (m *MemoryStore) ListScheduled(_ context.Context, facilityID int64, from, to time.Time) ([]*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*Appointment
	for _, a := range m.appointments {
		if a.Status != StatusScheduled || a.Facility.ID != facilityID {
			continue
		}
		if a.DateTime.Before(from) || !a.DateTime.Before(to) {
			continue
		}
		cp := *a
		results = append(results, &cp)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].DateTime.Before(results[j].DateTime)
	})
	return results, nil
}

func (m *MemoryStore) Cancel(_ context.Context, id int64, now time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if err := a.Cancel(now); err != nil {
		return nil, err
	}
	// Free the slot for a new booking.
	delete(m.bookedSlots, keyFor(a.Facility.ID, a.DateTime))

	cp := *a
	return &cp, nil
}

// Patients returns a PatientRepository view of the store.
func (m *MemoryStore) Patients() PatientRepository { return memoryPatients{m} }

type memoryPatients struct{ m *MemoryStore }

func (p memoryPatients) Create(_ context.Context, pt *Patient) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()

	p.m.nextPatient++
	pt.ID = p.m.nextPatient
	pt.CreatedAt = time.Now()
	cp := *pt
	p.m.patients[pt.ID] = &cp
	return nil
}

func (p memoryPatients) GetByID(_ context.Context, id int64) (*Patient, error) {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()

	pt, ok := p.m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *pt
	return &cp, nil
}
