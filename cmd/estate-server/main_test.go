package main

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/estate/estate/internal/config"
	"github.com/estate/estate/internal/domain/property"
	"github.com/estate/estate/internal/platform/middleware"
	"github.com/estate/estate/internal/platform/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type envelopeBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func testConfig() *config.Config {
	return &config.Config{
		Port:           "5001",
		Env:            "test",
		CORSOrigins:    []string{"http://localhost:5173"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		RequestTimeout: 5 * time.Second,
		BodyLimit:      "1M",
	}
}

func newTestServer(t *testing.T, cfg *config.Config, seed ...*property.Property) *echo.Echo {
	t.Helper()
	d := memoryDeps(telemetry.NewMetrics())
	d.properties = property.NewMemoryRepo(seed...)
	svc := newService(cfg, zerolog.Nop(), d, time.UTC)
	return newEcho(cfg, zerolog.Nop(), d, svc)
}

func call(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out envelopeBody
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, out
}

const scheduleBody = `{"clientName":"Jane Doe","appointmentDate":"2025-06-01T10:00:00Z","propertyAddress":"12 Elm St","propertyType":"House","contactEmail":"jane@example.com","phoneNumber":"5551234567"}`

func TestServer_Health(t *testing.T) {
	e := newTestServer(t, testConfig())

	rec, body := call(t, e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body.Message != "OK" {
		t.Errorf("unexpected message %q", body.Message)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestServer_NoDatabaseHealthRoute(t *testing.T) {
	e := newTestServer(t, testConfig())

	rec, body := call(t, e, http.MethodGet, "/health/db", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a pool, got %d", rec.Code)
	}
	if body.Message == "" {
		t.Error("expected enveloped 404")
	}
}

func TestServer_ScheduleThenConflict(t *testing.T) {
	e := newTestServer(t, testConfig())

	rec, body := call(t, e, http.MethodPost, "/api/appointment/schedule-property-appointment", scheduleBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body.Message != "Appointment scheduled successfully" {
		t.Errorf("unexpected message %q", body.Message)
	}

	rec, body = call(t, e, http.MethodPost, "/api/appointment/schedule-property-appointment",
		strings.Replace(scheduleBody, "10:00:00Z", "23:30:00Z", 1))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if body.Message != "Property is not available at the requested time" {
		t.Errorf("unexpected message %q", body.Message)
	}

	rec, _ = call(t, e, http.MethodPost, "/api/appointment/schedule-property-appointment",
		strings.Replace(scheduleBody, "2025-06-01", "2025-06-02", 1))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected next day to be free, got %d", rec.Code)
	}

	rec, body = call(t, e, http.MethodGet, "/api/appointment/appointments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []map[string]interface{}
	if err := json.Unmarshal(body.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 appointments, got %d", len(list))
	}
}

func TestServer_StrictTransitions(t *testing.T) {
	cfg := testConfig()
	cfg.EnforceTransitions = true
	e := newTestServer(t, cfg)

	rec, body := call(t, e, http.MethodPost, "/api/appointment/addappointment", scheduleBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(body.Data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if rec, _ := call(t, e, http.MethodPut, "/api/appointment/cancel/"+created.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rec.Code)
	}
	rec, _ = call(t, e, http.MethodPut, "/api/appointment/confirm/"+created.ID, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("confirm after cancel: expected 409, got %d", rec.Code)
	}
}

func TestServer_PropertiesAndPropertyID(t *testing.T) {
	villa := &property.Property{
		PropertyName:  "Sunny Villa",
		SellerName:    "Sam Seller",
		ContactNumber: "5559876543",
		EventDate:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	e := newTestServer(t, testConfig(), villa)

	rec, body := call(t, e, http.MethodGet, "/PropertiesController/getproperties", "")
	if rec.Code != http.StatusOK || body.Message != "Found Properties" {
		t.Fatalf("unexpected response %d %q", rec.Code, body.Message)
	}

	req := strings.Replace(scheduleBody, `"propertyAddress":"12 Elm St"`, `"propertyId":"`+villa.ID.String()+`"`, 1)
	rec, body = call(t, e, http.MethodPost, "/api/appointment/schedule-property-appointment", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var a struct {
		PropertyAddress string `json:"propertyAddress"`
	}
	if err := json.Unmarshal(body.Data, &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.PropertyAddress != "Sunny Villa" {
		t.Errorf("expected address resolved from property, got %q", a.PropertyAddress)
	}
}

func TestServer_UnknownRouteIsEnveloped(t *testing.T) {
	e := newTestServer(t, testConfig())

	rec, body := call(t, e, http.MethodGet, "/api/appointment/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body.Message != "Not Found" {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestServer_BodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.BodyLimit = "64"
	e := newTestServer(t, cfg)

	rec, _ := call(t, e, http.MethodPost, "/api/appointment/addappointment", scheduleBody)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	e := newTestServer(t, testConfig())
	call(t, e, http.MethodPost, "/api/appointment/schedule-property-appointment", scheduleBody)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	out := rec.Body.String()
	for _, want := range []string{
		`estate_scheduling_requests_total{outcome="scheduled"} 1`,
		`estate_store_duration_seconds_count{op="create"} 1`,
		`estate_http_request_duration_seconds`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMigrationSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "009_local.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := fs.ReadDir(migrationSource(dir), ".")
	if err != nil {
		t.Fatalf("read dir source: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "009_local.sql" {
		t.Errorf("expected on-disk migrations, got %v", entries)
	}

	for _, missing := range []string{"", filepath.Join(dir, "missing")} {
		if _, err := fs.Stat(migrationSource(missing), "001_appointments.sql"); err != nil {
			t.Errorf("source %q: expected embedded migrations: %v", missing, err)
		}
	}
}
