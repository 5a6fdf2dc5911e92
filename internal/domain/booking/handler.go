package booking

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/agenda/pkg/pagination"
)

// Response messages shared with the HTTP client.
const (
	MsgInvalidSubmission = "Dados do agendamento inválidos"
	MsgCancelRefused     = "Não foi possível cancelar o agendamento."
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/exames", h.ListExams)
	api.GET("/unidades", h.ListFacilities)
	api.GET("/unidades/:id/horarios", h.ListSlots)

	api.GET("/agendamentos", h.ListAppointments)
	api.GET("/agendamentos/:id", h.GetAppointment)
	api.POST("/agendamentos", h.CreateAppointment)
	api.POST("/agendamentos/validar", h.ValidateSubmission)
	api.POST("/agendamentos/:id/cancelar", h.CancelAppointment)
}

// createPayload is the creation body sent by clients: the normalized
// request with optional ids, re-validated on arrival.
type createPayload struct {
	PatientID               *int64 `json:"pacienteId"`
	PatientName             string `json:"pacienteNome"`
	PatientTaxID            string `json:"pacienteCpf"`
	PatientBirthDate        string `json:"pacienteDataNascimento"`
	PatientPhone            string `json:"pacienteTelefone"`
	PatientEmail            string `json:"pacienteEmail"`
	ExamID                  *int64 `json:"exameId"`
	FacilityID              *int64 `json:"unidadeId"`
	DateTime                string `json:"dataHorario"`
	PreparationAcknowledged bool   `json:"confirmaPreparo"`
}

func (p createPayload) submission() RawSubmission {
	in := RawSubmission{
		IsNewPatient:            p.PatientID == nil,
		FullName:                p.PatientName,
		TaxID:                   p.PatientTaxID,
		BirthDate:               p.PatientBirthDate,
		Phone:                   p.PatientPhone,
		Email:                   p.PatientEmail,
		DateTime:                p.DateTime,
		PreparationAcknowledged: p.PreparationAcknowledged,
	}
	in.ExistingPatientID = formatID(p.PatientID)
	in.ExamID = formatID(p.ExamID)
	in.FacilityID = formatID(p.FacilityID)
	return in
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

type validationResponse struct {
	Message string           `json:"message"`
	Errors  ValidationErrors `json:"errors"`
}

// appointmentView adds the cancel control state to an appointment.
type appointmentView struct {
	*Appointment
	CanCancel bool `json:"podeCancelar"`
}

func (h *Handler) view(a *Appointment) appointmentView {
	return appointmentView{Appointment: a, CanCancel: h.svc.CanCancel(*a)}
}

// -- Catalog Handlers --

func (h *Handler) ListExams(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Catalog().Exams)
}

func (h *Handler) ListFacilities(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Catalog().Facilities)
}

func (h *Handler) ListSlots(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	day := h.svc.Now().UTC()
	if d := c.QueryParam("date"); d != "" {
		day, err = time.Parse("2006-01-02", d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		}
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), id, day)
	if err != nil {
		if errors.Is(err, ErrUnknownFacility) {
			return echo.NewHTTPError(http.StatusNotFound, "facility not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, slots)
}

// -- Appointment Handlers --

func (h *Handler) CreateAppointment(c echo.Context) error {
	var p createPayload
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Submit(c.Request().Context(), p.submission())
	if err != nil {
		return h.submitError(c, err)
	}
	return c.JSON(http.StatusCreated, h.view(a))
}

// ValidateSubmission runs the rules on a raw form without booking.
func (h *Handler) ValidateSubmission(c echo.Context) error {
	var in RawSubmission
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, verrs := h.svc.Validate(in)
	if verrs != nil {
		return c.JSON(http.StatusUnprocessableEntity, validationResponse{Message: MsgInvalidSubmission, Errors: verrs})
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) submitError(c echo.Context, err error) error {
	var verrs ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return c.JSON(http.StatusUnprocessableEntity, validationResponse{Message: MsgInvalidSubmission, Errors: verrs})
	case errors.Is(err, ErrUnknownExam), errors.Is(err, ErrUnknownFacility), errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrSlotUnavailable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, h.view(a))
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	status := Status(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	items, total, err := h.svc.ListAppointments(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	views := make([]appointmentView, len(items))
	for i, a := range items {
		views[i] = h.view(a)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		if errors.Is(err, ErrNotCancellable) {
			return echo.NewHTTPError(http.StatusConflict, MsgCancelRefused)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, h.view(a))
}
