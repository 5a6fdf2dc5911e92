package booking

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Field names a submission field that can carry a validation error.
type Field string

const (
	FieldExistingPatientID       Field = "existingPatientId"
	FieldFullName                Field = "fullName"
	FieldTaxID                   Field = "taxId"
	FieldBirthDate               Field = "birthDate"
	FieldPhone                   Field = "phone"
	FieldEmail                   Field = "email"
	FieldExamID                  Field = "examId"
	FieldFacilityID              Field = "facilityId"
	FieldDateTime                Field = "dateTime"
	FieldPreparationAcknowledged Field = "preparationAcknowledged"
)

// User-facing messages.
const (
	MsgFullNameRequired       = "Nome é obrigatório"
	MsgTaxIDRequired          = "CPF é obrigatório"
	MsgBirthDateRequired      = "Data de Nascimento é obrigatória"
	MsgPhoneRequired          = "Telefone é obrigatório"
	MsgEmailRequired          = "E-mail é obrigatório"
	MsgEmailInvalid           = "E-mail inválido"
	MsgExistingPatientMissing = "Selecione um paciente existente"
	MsgExamRequired           = "Selecione um exame"
	MsgFacilityRequired       = "Selecione uma unidade"
	MsgDateTimeRequired       = "Selecione um horário"
	MsgInvalidIdentifier      = "Identificador inválido"
	MsgInvalidDateTime        = "Horário inválido"
	preparationMsgFormat      = "Confirmation of preparation required: %s"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// dateTimeLayouts are tried in order. Layouts without a zone are read as UTC.
var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// RawSubmission is the form input as typed by the form layer.
type RawSubmission struct {
	IsNewPatient            bool   `json:"isNovoPaciente"`
	ExistingPatientID       string `json:"pacienteId"`
	FullName                string `json:"pacienteNome"`
	TaxID                   string `json:"pacienteCpf"`
	BirthDate               string `json:"pacienteDataNascimento"`
	Phone                   string `json:"pacienteTelefone"`
	Email                   string `json:"pacienteEmail"`
	ExamID                  string `json:"exameId"`
	FacilityID              string `json:"unidadeId"`
	DateTime                string `json:"dataHorario"`
	PreparationAcknowledged bool   `json:"confirmaPreparo"`
}

// ValidationErrors maps a field to its message. An empty map means the
// submission is acceptable.
type ValidationErrors map[Field]string

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "no validation errors"
	}
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + v[Field(f)]
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) add(f Field, msg string) {
	if _, exists := v[f]; !exists {
		v[f] = msg
	}
}

// Validate checks a submission against the exam catalog. Every violated
// rule is reported; on success the returned errors are nil.
func Validate(in RawSubmission, exams []Exam) (*AppointmentRequest, ValidationErrors) {
	errs := ValidationErrors{}
	req := &AppointmentRequest{PreparationAcknowledged: in.PreparationAcknowledged}

	checkPatient(in, req, errs)
	checkExam(in, req, exams, errs)
	req.FacilityID = requireID(in.FacilityID, FieldFacilityID, MsgFacilityRequired, errs)
	checkDateTime(in, req, errs)

	if len(errs) > 0 {
		return nil, errs
	}
	return req, nil
}

func checkPatient(in RawSubmission, req *AppointmentRequest, errs ValidationErrors) {
	if !in.IsNewPatient {
		id := requireID(in.ExistingPatientID, FieldExistingPatientID, MsgExistingPatientMissing, errs)
		if id > 0 {
			req.ExistingPatientID = &id
		}
		return
	}

	required := []struct {
		field Field
		value string
		msg   string
	}{
		{FieldFullName, in.FullName, MsgFullNameRequired},
		{FieldTaxID, in.TaxID, MsgTaxIDRequired},
		{FieldBirthDate, in.BirthDate, MsgBirthDateRequired},
		{FieldPhone, in.Phone, MsgPhoneRequired},
		{FieldEmail, in.Email, MsgEmailRequired},
	}
	for _, r := range required {
		if r.value == "" {
			errs.add(r.field, r.msg)
		}
	}
	if in.Email != "" && !emailPattern.MatchString(in.Email) {
		errs.add(FieldEmail, MsgEmailInvalid)
	}

	req.NewPatient = &NewPatient{
		FullName:  in.FullName,
		TaxID:     in.TaxID,
		BirthDate: in.BirthDate,
		Phone:     in.Phone,
		Email:     in.Email,
	}
}

// checkExam skips the preparation rule when the id does not resolve.
func checkExam(in RawSubmission, req *AppointmentRequest, exams []Exam, errs ValidationErrors) {
	req.ExamID = requireID(in.ExamID, FieldExamID, MsgExamRequired, errs)
	if req.ExamID == 0 {
		return
	}
	exam, ok := FindExam(exams, req.ExamID)
	if !ok {
		return
	}
	if exam.RequiresPreparation && !in.PreparationAcknowledged {
		errs.add(FieldPreparationAcknowledged, fmt.Sprintf(preparationMsgFormat, exam.PreparationInstructions))
	}
}

func checkDateTime(in RawSubmission, req *AppointmentRequest, errs ValidationErrors) {
	if in.DateTime == "" {
		errs.add(FieldDateTime, MsgDateTimeRequired)
		return
	}
	t, err := ParseDateTime(in.DateTime)
	if err != nil {
		errs.add(FieldDateTime, MsgInvalidDateTime)
		return
	}
	req.DateTime = t
}

// requireID returns the positive id held by raw, or 0 after recording an
// error on field.
func requireID(raw string, field Field, missingMsg string, errs ValidationErrors) int64 {
	if raw == "" {
		errs.add(field, missingMsg)
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		errs.add(field, MsgInvalidIdentifier)
		return 0
	}
	return id
}

// ParseDateTime reads a slot timestamp in any of the accepted layouts.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date time %q", s)
}

// Submission converts a normalized request back into form shape so that a
// request received over the wire goes through the same rules.
func (r AppointmentRequest) Submission() RawSubmission {
	in := RawSubmission{
		PreparationAcknowledged: r.PreparationAcknowledged,
	}
	if r.ExistingPatientID != nil {
		in.ExistingPatientID = strconv.FormatInt(*r.ExistingPatientID, 10)
	}
	if r.NewPatient != nil {
		in.IsNewPatient = true
		in.FullName = r.FullName
		in.TaxID = r.TaxID
		in.BirthDate = r.BirthDate
		in.Phone = r.Phone
		in.Email = r.Email
	}
	if r.ExamID != 0 {
		in.ExamID = strconv.FormatInt(r.ExamID, 10)
	}
	if r.FacilityID != 0 {
		in.FacilityID = strconv.FormatInt(r.FacilityID, 10)
	}
	if !r.DateTime.IsZero() {
		in.DateTime = r.DateTime.Format(time.RFC3339)
	}
	return in
}
