package appointment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/estate/estate/internal/platform/envelope"
)

func newTestRouter() (*echo.Echo, *Service) {
	svc := NewService(NewMemoryStore(), ServiceConfig{Location: time.UTC, Logger: zerolog.Nop()})
	e := echo.New()
	e.HTTPErrorHandler = envelope.ErrorHandler(zerolog.Nop())
	NewHandler(svc).RegisterRoutes(e.Group("/api/appointment"))
	return e, svc
}

type envelopeBody struct {
	Message                 string            `json:"message"`
	Error                   string            `json:"error"`
	Data                    json.RawMessage   `json:"data"`
	ConflictingAppointments []Appointment     `json:"conflictingAppointments"`
	Fields                  map[string]string `json:"fields"`
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out envelopeBody
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

const janeBody = `{"clientName":"Jane Doe","appointmentDate":"2025-06-01T10:00:00Z","propertyAddress":"12 Elm St","propertyType":"House","contactEmail":"jane@example.com","phoneNumber":"5551234567"}`

func decodeAppointment(t *testing.T, raw json.RawMessage) Appointment {
	t.Helper()
	var a Appointment
	if err := json.Unmarshal(raw, &a); err != nil {
		t.Fatalf("decode appointment: %v", err)
	}
	return a
}

func TestHandler_AddAndGet(t *testing.T) {
	e, _ := newTestRouter()

	rec, body := do(t, e, http.MethodPost, "/api/appointment/addappointment", janeBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body.Message != "Appointment Added Successfully" {
		t.Errorf("unexpected message %q", body.Message)
	}
	created := decodeAppointment(t, body.Data)
	if created.Status != StatusPending {
		t.Errorf("expected Pending, got %s", created.Status)
	}

	// Wire names.
	var raw map[string]interface{}
	_ = json.Unmarshal(body.Data, &raw)
	for _, k := range []string{"_id", "clientName", "appointmentDate", "propertyAddress", "propertyType",
		"contactEmail", "phoneNumber", "message", "status", "createdAt"} {
		if _, ok := raw[k]; !ok {
			t.Errorf("missing wire field %q", k)
		}
	}

	rec, body = do(t, e, http.MethodGet, "/api/appointment/appointment/"+created.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeAppointment(t, body.Data); got.ID != created.ID {
		t.Errorf("expected %s, got %s", created.ID, got.ID)
	}
}

func TestHandler_AddValidationError(t *testing.T) {
	e, _ := newTestRouter()
	rec, body := do(t, e, http.MethodPost, "/api/appointment/addappointment",
		`{"clientName":"Jane","appointmentDate":"2025-06-01T10:00:00Z","propertyAddress":"12 Elm St","propertyType":"House","contactEmail":"bad","phoneNumber":"5551234567"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if _, ok := body.Fields["contactEmail"]; !ok {
		t.Errorf("expected contactEmail field error, got %v", body.Fields)
	}
}

func TestHandler_MalformedBody(t *testing.T) {
	e, _ := newTestRouter()
	rec, body := do(t, e, http.MethodPost, "/api/appointment/addappointment", `{"clientName":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body.Message != "Invalid request body" {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	e, _ := newTestRouter()
	for _, id := range []string{"not-a-uuid", "4f0c9a7e-1b7d-4b8e-9a53-2f9b0f8c1d11"} {
		rec, body := do(t, e, http.MethodGet, "/api/appointment/appointment/"+id, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", id, rec.Code)
		}
		if body.Message != "Appointment not found" {
			t.Errorf("%s: unexpected message %q", id, body.Message)
		}
	}
}

func TestHandler_ScheduleFlow(t *testing.T) {
	e, _ := newTestRouter()

	rec, body := do(t, e, http.MethodPost, "/api/appointment/schedule-property-appointment", janeBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	first := decodeAppointment(t, body.Data)
	if first.Status != StatusConfirmed {
		t.Errorf("expected Confirmed, got %s", first.Status)
	}

	other := strings.Replace(janeBody, "10:00:00Z", "17:45:00Z", 1)
	rec, body = do(t, e, http.MethodPost, "/api/appointment/schedule-property-appointment", other)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if body.Message != "Property is not available at the requested time" {
		t.Errorf("unexpected message %q", body.Message)
	}
	if len(body.ConflictingAppointments) != 1 || body.ConflictingAppointments[0].ID != first.ID {
		t.Errorf("unexpected conflicts %+v", body.ConflictingAppointments)
	}
}

func TestHandler_ScheduleBookedDayWithBadEmail(t *testing.T) {
	e, _ := newTestRouter()
	if rec, _ := do(t, e, http.MethodPost, "/api/appointment/schedule-property-appointment", janeBody); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	bad := strings.Replace(janeBody, "10:00:00Z", "12:00:00Z", 1)
	bad = strings.Replace(bad, "jane@example.com", "not-an-email", 1)
	rec, body := do(t, e, http.MethodPost, "/api/appointment/schedule-property-appointment", bad)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(body.ConflictingAppointments) != 1 {
		t.Errorf("expected one conflicting appointment, got %+v", body.ConflictingAppointments)
	}
}

func TestHandler_ScheduleMissingFields(t *testing.T) {
	e, _ := newTestRouter()
	rec, body := do(t, e, http.MethodPost, "/api/appointment/schedule-property-appointment",
		`{"clientName":"Jane Doe","propertyAddress":"12 Elm St"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body.Message != "Appointment date and property address are required" {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestHandler_UpdateConfirmDelete(t *testing.T) {
	e, svc := newTestRouter()
	a, err := svc.Create(context.Background(), request("2025-06-01T10:00:00Z"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	base := "/api/appointment"

	rec, body := do(t, e, http.MethodPut, base+"/appointment/"+a.ID.String(),
		`{"message":"ring the bell","_id":"ignored","createdAt":"1999-01-01T00:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeAppointment(t, body.Data)
	if updated.Message != "ring the bell" || updated.ID != a.ID || !updated.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("unexpected update %+v", updated)
	}

	rec, body = do(t, e, http.MethodPut, base+"/confirm/"+a.ID.String(), "")
	if rec.Code != http.StatusOK || body.Message != "Appointment Confirmed Successfully" {
		t.Fatalf("confirm: %d %q", rec.Code, body.Message)
	}
	if got := decodeAppointment(t, body.Data); got.Status != StatusConfirmed {
		t.Errorf("expected Confirmed, got %s", got.Status)
	}

	rec, _ = do(t, e, http.MethodPut, base+"/appointment/"+a.ID.String(), `{"status":"Bogus"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad status: expected 400, got %d", rec.Code)
	}

	rec, body = do(t, e, http.MethodDelete, base+"/delete/"+a.ID.String(), "")
	if rec.Code != http.StatusOK || body.Message != "Appointment Deleted Successfully" {
		t.Fatalf("delete: %d %q", rec.Code, body.Message)
	}
	rec, _ = do(t, e, http.MethodDelete, base+"/delete/"+a.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
	rec, _ = do(t, e, http.MethodPut, base+"/confirm/"+a.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("confirm deleted: expected 404, got %d", rec.Code)
	}
}

func TestHandler_StrictTransitionConflict(t *testing.T) {
	svc := NewService(NewMemoryStore(), ServiceConfig{
		Location:    time.UTC,
		Logger:      zerolog.Nop(),
		Transitions: StrictPolicy{},
	})
	e := echo.New()
	e.HTTPErrorHandler = envelope.ErrorHandler(zerolog.Nop())
	NewHandler(svc).RegisterRoutes(e.Group("/api/appointment"))

	a, _ := svc.Create(context.Background(), request("2025-06-01T10:00:00Z"))
	do(t, e, http.MethodPut, "/api/appointment/cancel/"+a.ID.String(), "")

	rec, body := do(t, e, http.MethodPut, "/api/appointment/confirm/"+a.ID.String(), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if body.Message != "Invalid status transition" {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestHandler_ListFilters(t *testing.T) {
	e, svc := newTestRouter()
	for _, d := range []string{"2025-06-03T09:00:00Z", "2025-06-01T09:00:00Z", "2025-06-02T09:00:00Z"} {
		if _, err := svc.Create(context.Background(), request(d)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rec, body := do(t, e, http.MethodGet, "/api/appointment/appointments", "")
	if rec.Code != http.StatusOK || body.Message != "Found Appointments" {
		t.Fatalf("list: %d %q", rec.Code, body.Message)
	}
	var all []Appointment
	_ = json.Unmarshal(body.Data, &all)
	if len(all) != 3 || all[0].AppointmentDate.Day() != 1 {
		t.Fatalf("expected 3 ordered by date, got %+v", all)
	}

	_, body = do(t, e, http.MethodGet, "/api/appointment/appointments?from=2025-06-02&to=2025-06-02", "")
	var window []Appointment
	_ = json.Unmarshal(body.Data, &window)
	if len(window) != 1 || window[0].AppointmentDate.Day() != 2 {
		t.Errorf("expected only June 2nd, got %+v", window)
	}

	_, body = do(t, e, http.MethodGet, "/api/appointment/appointments?limit=2&offset=1", "")
	var page []Appointment
	_ = json.Unmarshal(body.Data, &page)
	if len(page) != 2 || page[0].AppointmentDate.Day() != 2 {
		t.Errorf("unexpected page %+v", page)
	}

	rec, _ = do(t, e, http.MethodGet, "/api/appointment/appointments?status=Nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: expected 400, got %d", rec.Code)
	}

	_, body = do(t, e, http.MethodGet, "/api/appointment/appointments?status=confirmed", "")
	var none []Appointment
	_ = json.Unmarshal(body.Data, &none)
	if len(none) != 0 {
		t.Errorf("expected no Confirmed appointments, got %d", len(none))
	}
}

func TestHandler_Availability(t *testing.T) {
	e, svc := newTestRouter()
	if _, err := svc.Schedule(context.Background(), request("2025-06-01T10:00:00Z")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, body := do(t, e, http.MethodGet, "/api/appointment/availability?propertyAddress=12%20Elm%20St&date=2025-06-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp AvailabilityResponse
	_ = json.Unmarshal(body.Data, &resp)
	if resp.Available || len(resp.ConflictingAppointments) != 1 {
		t.Errorf("expected unavailable with one conflict, got %+v", resp)
	}

	_, body = do(t, e, http.MethodGet, "/api/appointment/availability?propertyAddress=12%20Elm%20St&date=2025-06-02", "")
	_ = json.Unmarshal(body.Data, &resp)
	if !resp.Available {
		t.Errorf("expected next day available")
	}

	rec, _ = do(t, e, http.MethodGet, "/api/appointment/availability?date=2025-06-02", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without address, got %d", rec.Code)
	}
}
