package booking

import (
	"time"
)

// Status is the lifecycle state of an appointment. Values match the
// backend wire contract.
type Status string

const (
	StatusScheduled Status = "AGENDADO"
	StatusCancelled Status = "CANCELADO"
	StatusCompleted Status = "REALIZADO"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusCancelled: true, StatusCompleted: true,
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool { return validStatuses[s] }

// Terminal reports whether no transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Exam is immutable reference data. PreparationInstructions only matter
// when RequiresPreparation is set.
type Exam struct {
	ID                      int64  `json:"id"`
	Name                    string `json:"nome"`
	RequiresPreparation     bool   `json:"exigePreparo"`
	PreparationInstructions string `json:"requisitosPreparo"`
}

// Facility is a clinic location where exams are performed.
type Facility struct {
	ID   int64  `json:"id"`
	Name string `json:"nome"`
}

// TimeSlot is a bookable instant at a facility. Slots are supplied, never
// derived.
type TimeSlot struct {
	DateTime  time.Time `json:"dataHorario"`
	Available bool      `json:"disponivel"`
}

// NewPatient holds the registration details of a patient unknown to the
// clinic. Field tags flatten into the appointment request payload.
type NewPatient struct {
	FullName  string `json:"pacienteNome,omitempty"`
	TaxID     string `json:"pacienteCpf,omitempty"`
	BirthDate string `json:"pacienteDataNascimento,omitempty"`
	Phone     string `json:"pacienteTelefone,omitempty"`
	Email     string `json:"pacienteEmail,omitempty"`
}

// PatientRef identifies the patient of a request. Exactly one of
// ExistingPatientID and NewPatient is set.
type PatientRef struct {
	ExistingPatientID *int64 `json:"pacienteId,omitempty"`
	*NewPatient
}

// IsNew reports whether the reference carries new-patient details.
func (p PatientRef) IsNew() bool { return p.NewPatient != nil }

// AppointmentRequest is the normalized output of Validate and the body
// of the creation call.
type AppointmentRequest struct {
	PatientRef
	ExamID                  int64     `json:"exameId"`
	FacilityID              int64     `json:"unidadeId"`
	DateTime                time.Time `json:"dataHorario"`
	PreparationAcknowledged bool      `json:"confirmaPreparo"`
}

// Patient is a registered patient.
type Patient struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"nomeCompleto"`
	TaxID     string    `json:"cpf,omitempty"`
	BirthDate string    `json:"dataNascimento,omitempty"`
	Phone     string    `json:"telefone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"criadoEm"`
}

// PatientSummary is the patient as embedded in an appointment.
type PatientSummary struct {
	ID       int64  `json:"id"`
	FullName string `json:"nomeCompleto"`
}

// Appointment is a booked exam. It is created Scheduled and may only move
// to Cancelled through Cancel; Completed is set by an external process.
type Appointment struct {
	ID                      int64          `json:"id"`
	Patient                 PatientSummary `json:"paciente"`
	Exam                    Exam           `json:"exame"`
	Facility                Facility       `json:"unidade"`
	DateTime                time.Time      `json:"dataHorario"`
	Status                  Status         `json:"status"`
	PreparationAcknowledged bool           `json:"confirmaPreparo"`
	CreatedAt               time.Time      `json:"criadoEm"`
	UpdatedAt               time.Time      `json:"atualizadoEm"`
}
