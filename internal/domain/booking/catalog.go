package booking

import (
	"sort"
	"time"
)

// Catalog is the reference data a booking is resolved against.
type Catalog struct {
	Exams      []Exam
	Facilities []Facility
}

// DefaultCatalog returns the exams and facilities the clinic offers out of
// the box.
func DefaultCatalog() Catalog {
	return Catalog{
		Exams: []Exam{
			{ID: 1, Name: "Hemograma Completo"},
			{ID: 2, Name: "Ultrassom Abdominal", RequiresPreparation: true, PreparationInstructions: "Jejum de 8 horas e bexiga cheia."},
			{ID: 3, Name: "Ressonância Magnética", RequiresPreparation: true, PreparationInstructions: "Remover metais e jejum de 4 horas."},
		},
		Facilities: []Facility{
			{ID: 1, Name: "Unidade Central"},
			{ID: 2, Name: "Unidade Zona Sul"},
		},
	}
}

// FindExam resolves id against exams. A miss is reported through ok, never
// as an error.
func FindExam(exams []Exam, id int64) (Exam, bool) {
	for _, e := range exams {
		if e.ID == id {
			return e, true
		}
	}
	return Exam{}, false
}

// FindFacility resolves id against facilities.
func FindFacility(facilities []Facility, id int64) (Facility, bool) {
	for _, f := range facilities {
		if f.ID == id {
			return f, true
		}
	}
	return Facility{}, false
}

// FindSlot returns the slot starting exactly at at.
func FindSlot(slots []TimeSlot, at time.Time) (TimeSlot, bool) {
	for _, s := range slots {
		if s.DateTime.Equal(at) {
			return s, true
		}
	}
	return TimeSlot{}, false
}

// SortSlots orders slots by start time ascending.
func SortSlots(slots []TimeSlot) {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].DateTime.Before(slots[j].DateTime)
	})
}
