package booking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func scheduled(facilityID int64, at time.Time) *Appointment {
	return &Appointment{
		Patient:  PatientSummary{ID: 101, FullName: "João Silva"},
		Exam:     Exam{ID: 1},
		Facility: Facility{ID: facilityID},
		DateTime: at,
		Status:   StatusScheduled,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	at := time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC)

	a := scheduled(1, at)
	if err := m.Create(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID != 1 || a.CreatedAt.IsZero() {
		t.Errorf("expected id and timestamps to be assigned, got %+v", a)
	}

	got, err := m.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got.Status = StatusCompleted
	again, _ := m.GetByID(ctx, a.ID)
	if again.Status != StatusScheduled {
		t.Error("GetByID must return a copy")
	}

	if _, err := m.GetByID(ctx, 99); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestMemoryStore_SlotTaken(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	at := time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC)

	if err := m.Create(ctx, scheduled(1, at)); err != nil {
		t.Fatal(err)
	}
	brt := time.FixedZone("BRT", -3*60*60)
	if err := m.Create(ctx, scheduled(1, at.In(brt))); !errors.Is(err, ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken for the same instant, got %v", err)
	}
	if err := m.Create(ctx, scheduled(2, at)); err != nil {
		t.Errorf("another facility may book the same instant, got %v", err)
	}
}

func TestMemoryStore_CancelFreesSlot(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	at := now.AddDate(0, 0, 1)

	a := scheduled(1, at)
	if err := m.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	cancelled, err := m.Cancel(ctx, a.ID, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected CANCELADO, got %s", cancelled.Status)
	}
	if _, err := m.Cancel(ctx, a.ID, now); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("expected ErrNotCancellable, got %v", err)
	}
	if err := m.Create(ctx, scheduled(1, at)); err != nil {
		t.Errorf("expected freed slot to be bookable, got %v", err)
	}
	if _, err := m.Cancel(ctx, 99, now); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestMemoryStore_CancelPast(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	a := scheduled(1, now.Add(-time.Hour))
	if err := m.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Cancel(ctx, a.ID, now); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("expected ErrNotCancellable, got %v", err)
	}
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2030, 1, 2, 8, 0, 0, 0, time.UTC)
	now := base.Add(-24 * time.Hour)

	for i := 3; i >= 0; i-- {
		if err := m.Create(ctx, scheduled(1, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.Cancel(ctx, 1, now); err != nil {
		t.Fatal(err)
	}

	all, total, err := m.List(ctx, "", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || len(all) != 4 {
		t.Fatalf("expected 4 appointments, got %d/%d", len(all), total)
	}
	for i := 1; i < len(all); i++ {
		if all[i].DateTime.Before(all[i-1].DateTime) {
			t.Fatal("expected ascending date order")
		}
	}

	page, total, _ := m.List(ctx, StatusScheduled, 2, 1)
	if total != 3 || len(page) != 2 {
		t.Errorf("expected page of 2 out of 3 scheduled, got %d/%d", len(page), total)
	}

	empty, total, _ := m.List(ctx, StatusCancelled, 10, 5)
	if total != 1 || len(empty) != 0 {
		t.Errorf("expected empty page past the end, got %d/%d", len(empty), total)
	}
}

func TestMemoryStore_ListScheduled(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	day := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)

	m.Create(ctx, scheduled(1, day.Add(9*time.Hour)))
	m.Create(ctx, scheduled(1, day.Add(33*time.Hour))) // next day
	m.Create(ctx, scheduled(2, day.Add(9*time.Hour)))

	got, err := m.ListScheduled(ctx, 1, day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].DateTime.Equal(day.Add(9*time.Hour)) {
		t.Errorf("expected one appointment at 09:00, got %v", got)
	}
}

func TestMemoryStore_Patients(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(DefaultPatients()...)
	patients := m.Patients()

	p, err := patients.GetByID(ctx, 102)
	if err != nil || p.FullName != "Maria Souza" {
		t.Fatalf("expected seeded patient 102, got %+v err=%v", p, err)
	}

	np := &Patient{FullName: "Ana Lima"}
	if err := patients.Create(ctx, np); err != nil {
		t.Fatal(err)
	}
	if np.ID != 103 {
		t.Errorf("expected new ids after the seeded ones, got %d", np.ID)
	}
	if _, err := patients.GetByID(ctx, 1); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}
