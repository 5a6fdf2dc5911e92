// Package client talks to the booking API the way the scheduling form
// does: it fetches the exam catalog, posts accepted requests and asks for
// cancellations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clinic/agenda/internal/domain/booking"
)

// Fallback messages when the API answers a failure with an empty body.
const (
	MsgCreateFailed = "Não foi possível realizar o agendamento."
	MsgCancelFailed = "Não foi possível cancelar o agendamento."
)

// maxErrorBody caps how much of a failure response is read.
const maxErrorBody = 64 << 10

// APIError is a non-2xx answer from the API. Body is the response body
// verbatim; Message is what the user should see; Fields carries per-field
// validation messages when the server rejected the submission.
type APIError struct {
	StatusCode int
	Body       string
	Message    string
	Fields     booking.ValidationErrors
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.httpClient.Timeout = d }
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the API rooted at baseURL, e.g.
// http://localhost:8080/api.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Exams fetches the exam catalog.
func (c *Client) Exams(ctx context.Context) ([]booking.Exam, error) {
	var exams []booking.Exam
	if err := c.do(ctx, http.MethodGet, "/exames", nil, &exams, ""); err != nil {
		return nil, err
	}
	return exams, nil
}

// Create posts an accepted request and returns the created appointment.
func (c *Client) Create(ctx context.Context, req booking.AppointmentRequest) (*booking.Appointment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var a booking.Appointment
	if err := c.do(ctx, http.MethodPost, "/agendamentos", body, &a, MsgCreateFailed); err != nil {
		return nil, err
	}
	return &a, nil
}

// Cancel asks the API to cancel appointment id.
func (c *Client) Cancel(ctx context.Context, id int64) (*booking.Appointment, error) {
	var a booking.Appointment
	path := "/agendamentos/" + strconv.FormatInt(id, 10) + "/cancelar"
	if err := c.do(ctx, http.MethodPost, path, nil, &a, MsgCancelFailed); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}, fallback string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeError(resp.StatusCode, raw, fallback)
	}
	if out == nil {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError prefers the "message" field of a JSON body and falls back
// to the raw text, then to fallback, then to the status text.
func decodeError(status int, raw []byte, fallback string) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(raw)}

	var payload struct {
		Message json.RawMessage          `json:"message"`
		Errors  booking.ValidationErrors `json:"errors"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		var msg string
		if json.Unmarshal(payload.Message, &msg) == nil && msg != "" {
			apiErr.Message = msg
		}
		apiErr.Fields = payload.Errors
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = fallback
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
