package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServer_Health(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantCode   int
		wantStatus string
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"binance": func(context.Context) (bool, string) { return true, "connected" },
				"redis":   func(context.Context) (bool, string) { return true, "" },
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "one exchange down",
			checks: map[string]CheckFunc{
				"binance": func(context.Context) (bool, string) { return true, "connected" },
				"kraken":  func(context.Context) (bool, string) { return false, "reconnecting" },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(0, "test")
			for name, fn := range tt.checks {
				s.RegisterCheck(name, fn)
			}

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var status Status
			if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("got %d checks, want %d", len(status.Checks), len(tt.checks))
			}
		})
	}
}

func TestServer_ReadyAndLive(t *testing.T) {
	s := NewServer(0, "test")
	s.RegisterCheck("okx", func(context.Context) (bool, string) { return false, "down" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready code = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/live code = %d, want 200", rec.Code)
	}

	if names := s.Names(); len(names) != 1 || names[0] != "okx" {
		t.Errorf("Names() = %v", names)
	}
}
