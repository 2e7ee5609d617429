package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) report {
	t.Helper()
	var out report
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthzAlwaysOK(t *testing.T) {
	h := New(Probe{Name: "broken", Check: func(context.Context) error { return errors.New("down") }})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if out := decodeReport(t, rec); out.Status != "ok" {
		t.Errorf("body status = %q", out.Status)
	}
}

func TestReadyzAllPassing(t *testing.T) {
	h := New(
		Probe{Name: "memory", Check: func(context.Context) error { return nil }},
		Probe{Name: "local-llm", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	out := decodeReport(t, rec)
	if out.Status != "ok" {
		t.Errorf("status = %q", out.Status)
	}
	if out.Probes["memory"] != "ok" || out.Probes["local-llm"] != "ok" {
		t.Errorf("probes = %v", out.Probes)
	}
}

func TestReadyzFailingProbe(t *testing.T) {
	h := New(
		Probe{Name: "memory", Check: func(context.Context) error { return nil }},
		Probe{Name: "tts", Check: func(context.Context) error { return errors.New("connection refused") }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	out := decodeReport(t, rec)
	if out.Status != "fail" {
		t.Errorf("status = %q", out.Status)
	}
	if !strings.HasPrefix(out.Probes["tts"], "fail: ") {
		t.Errorf("tts probe = %q", out.Probes["tts"])
	}
	if out.Probes["memory"] != "ok" {
		t.Errorf("memory probe = %q", out.Probes["memory"])
	}
}

func TestReadyzNoProbes(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with no probes", rec.Code)
	}
}

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	New().Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
