package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clinic/agenda/internal/domain/booking"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", WithHTTPClient(srv.Client()))
}

func TestCreate_Success(t *testing.T) {
	at := time.Date(2030, 5, 10, 9, 0, 0, 0, time.UTC)
	var got map[string]interface{}

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/agendamentos" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(booking.Appointment{
			ID:       7,
			Patient:  booking.PatientSummary{ID: 101, FullName: "João Silva"},
			DateTime: at,
			Status:   booking.StatusScheduled,
		})
	})

	pid := int64(101)
	a, err := c.Create(context.Background(), booking.AppointmentRequest{
		PatientRef: booking.PatientRef{ExistingPatientID: &pid},
		ExamID:     1,
		FacilityID: 2,
		DateTime:   at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID != 7 || a.Status != booking.StatusScheduled {
		t.Errorf("unexpected appointment: %+v", a)
	}
	if got["pacienteId"] != float64(101) || got["exameId"] != float64(1) || got["unidadeId"] != float64(2) {
		t.Errorf("unexpected wire body: %v", got)
	}
	if _, ok := got["pacienteNome"]; ok {
		t.Error("existing-patient request must not carry new-patient fields")
	}
}

func TestCreate_MessageField(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Dados do agendamento inválidos","errors":{"examId":"Selecione um exame"}}`))
	})

	_, err := c.Create(context.Background(), booking.AppointmentRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Dados do agendamento inválidos" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
	if apiErr.Fields[booking.FieldExamID] != "Selecione um exame" {
		t.Errorf("expected field errors to be decoded, got %v", apiErr.Fields)
	}
	wantBody := `{"message":"Dados do agendamento inválidos","errors":{"examId":"Selecione um exame"}}`
	if apiErr.Body != wantBody {
		t.Errorf("expected verbatim body, got %q", apiErr.Body)
	}
}

func TestCreate_RawTextBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down\n"))
	})

	_, err := c.Create(context.Background(), booking.AppointmentRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "upstream down" {
		t.Errorf("expected raw body as message, got %q", apiErr.Message)
	}
	if apiErr.Body != "upstream down\n" {
		t.Errorf("expected untrimmed body, got %q", apiErr.Body)
	}
}

func TestCancel_Success(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/agendamentos/42/cancelar" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(booking.Appointment{ID: 42, Status: booking.StatusCancelled})
	})

	a, err := c.Cancel(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != booking.StatusCancelled {
		t.Errorf("expected CANCELADO, got %s", a.Status)
	}
}

func TestCancel_EmptyBodyUsesDefault(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	_, err := c.Cancel(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != MsgCancelFailed {
		t.Errorf("expected default message, got %q", apiErr.Message)
	}
}

func TestCancel_NoContent(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if _, err := c.Cancel(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExams(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/exames" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(booking.DefaultCatalog().Exams)
	})

	exams, err := c.Exams(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exams) != 3 || !exams[1].RequiresPreparation {
		t.Errorf("unexpected exams: %+v", exams)
	}
}

func TestNetworkFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url)
	_, err := c.Cancel(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Error("network faults must not be reported as API errors")
	}
}

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback string
		want     string
	}{
		{"json message", `{"message":"Horário indisponível"}`, "", "Horário indisponível"},
		{"json without message", `{"error":"x"}`, "", `{"error":"x"}`},
		{"non-string message", `{"message":42}`, "", `{"message":42}`},
		{"plain text", "boom", "", "boom"},
		{"empty with fallback", "", MsgCancelFailed, MsgCancelFailed},
		{"empty without fallback", "", "", "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeError(http.StatusInternalServerError, []byte(tt.raw), tt.fallback)
			if got.Message != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got.Message)
			}
		})
	}
}
