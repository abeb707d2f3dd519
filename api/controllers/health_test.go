package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/interpretz-backend/internal/health"
	"github.com/angelmondragon/interpretz-backend/pkg/config"
)

type testPinger struct {
	err error
}

func (p *testPinger) Ping(ctx context.Context) error {
	return p.err
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	HealthLive(testConfig())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if env := resp.Header().Get("X-Interpretz-Env"); env != "test" {
		t.Fatalf("env header = %q", env)
	}
}

func TestHealthReadyAllUp(t *testing.T) {
	deps := map[string]Pinger{
		"database": &testPinger{},
		"redis":    &testPinger{},
	}

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), testLogger(), deps)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestHealthReadyDependencyDown(t *testing.T) {
	deps := map[string]Pinger{
		"database": &testPinger{},
		"redis":    &testPinger{err: errors.New("connection refused")},
	}

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), testLogger(), deps)(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Details struct {
				Checks map[string]string `json:"checks"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Error.Details.Checks["redis"] != "down" {
		t.Fatalf("checks = %+v", envelope.Error.Details.Checks)
	}
}

func TestEngineHealthHealthy(t *testing.T) {
	svc := &testHealthService{
		checkFn: func(ctx context.Context) (*health.Report, error) {
			return &health.Report{Healthy: true, Database: "up", Redis: "up"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp := httptest.NewRecorder()
	EngineHealth(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestEngineHealthUnhealthyIs503(t *testing.T) {
	svc := &testHealthService{
		checkFn: func(ctx context.Context) (*health.Report, error) {
			return &health.Report{Healthy: false, Database: "up", Redis: "down"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp := httptest.NewRecorder()
	EngineHealth(svc, testLogger())(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
