package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/api/middleware"
	"github.com/angelmondragon/interpretz-backend/internal/assignment"
	"github.com/angelmondragon/interpretz-backend/internal/scoring"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func withOperator(req *http.Request, operatorID uuid.UUID, role string) *http.Request {
	ctx := middleware.WithOperatorID(req.Context(), operatorID.String())
	ctx = middleware.WithRole(ctx, role)
	return req.WithContext(ctx)
}

type testIntake struct {
	submitFn func(ctx context.Context, bookingID uuid.UUID, actor *outbox.ActorRef) (*assignment.Result, error)
}

func (s *testIntake) Submit(ctx context.Context, bookingID uuid.UUID, actor *outbox.ActorRef) (*assignment.Result, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, bookingID, actor)
	}
	return nil, nil
}

type testAssignmentService struct {
	assignFn  func(ctx context.Context, input assignment.AssignInput) (*assignment.Result, error)
	previewFn func(ctx context.Context, input assignment.AssignInput) (*assignment.Result, error)
}

func (s *testAssignmentService) Assign(ctx context.Context, input assignment.AssignInput) (*assignment.Result, error) {
	if s.assignFn != nil {
		return s.assignFn(ctx, input)
	}
	return nil, nil
}

func (s *testAssignmentService) Preview(ctx context.Context, input assignment.AssignInput) (*assignment.Result, error) {
	if s.previewFn != nil {
		return s.previewFn(ctx, input)
	}
	return nil, nil
}

func TestRequestAssignmentPooledCarriesDeadline(t *testing.T) {
	bookingID := uuid.New()
	operatorID := uuid.New()
	deadline := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)

	svc := &testIntake{
		submitFn: func(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*assignment.Result, error) {
			if id != bookingID {
				t.Fatalf("unexpected booking %s", id)
			}
			if actor == nil || actor.OperatorID != operatorID {
				t.Fatalf("unexpected actor %+v", actor)
			}
			return &assignment.Result{
				BookingID:    id,
				Outcome:      enums.AssignmentOutcomePooled,
				Mode:         enums.PolicyModeNormal,
				PoolDeadline: &deadline,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/assignment", nil)
	req = withOperator(req, operatorID, "dispatcher")
	req = addRouteParam(req, "bookingId", bookingID.String())

	resp := httptest.NewRecorder()
	RequestAssignment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data assignmentResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Outcome != "POOLED" {
		t.Fatalf("outcome = %s, want POOLED", envelope.Data.Outcome)
	}
	if envelope.Data.PoolDeadline == nil || !envelope.Data.PoolDeadline.Equal(deadline) {
		t.Fatalf("poolDeadline = %v, want %v", envelope.Data.PoolDeadline, deadline)
	}
}

func TestRequestAssignmentInvalidBookingID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/bad/assignment", nil)
	req = addRouteParam(req, "bookingId", "bad")

	resp := httptest.NewRecorder()
	RequestAssignment(&testIntake{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestDROverrideRequiresReason(t *testing.T) {
	bookingID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/assignment/dr-override",
		bytes.NewBufferString(`{}`))
	req = addRouteParam(req, "bookingId", bookingID.String())

	resp := httptest.NewRecorder()
	DROverrideAssignment(&testAssignmentService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestDROverridePassesReasonThrough(t *testing.T) {
	bookingID := uuid.New()
	interpreterID := uuid.New()
	var captured assignment.AssignInput

	svc := &testAssignmentService{
		assignFn: func(ctx context.Context, input assignment.AssignInput) (*assignment.Result, error) {
			captured = input
			return &assignment.Result{
				BookingID:     bookingID,
				Outcome:       enums.AssignmentOutcomeAssigned,
				InterpreterID: &interpreterID,
				Mode:          enums.PolicyModeNormal,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/assignment/dr-override",
		bytes.NewBufferString(`{"reason":"court order, no alternate interpreter available"}`))
	req = addRouteParam(req, "bookingId", bookingID.String())

	resp := httptest.NewRecorder()
	DROverrideAssignment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !captured.Options.DROverride {
		t.Fatal("expected DROverride set")
	}
	if captured.Options.DROverrideReason != "court order, no alternate interpreter available" {
		t.Fatalf("reason = %q", captured.Options.DROverrideReason)
	}
}

func TestPreviewAssignmentListsCandidates(t *testing.T) {
	bookingID := uuid.New()
	eligible := uuid.New()
	blocked := uuid.New()

	svc := &testAssignmentService{
		previewFn: func(ctx context.Context, input assignment.AssignInput) (*assignment.Result, error) {
			return &assignment.Result{
				BookingID: bookingID,
				Mode:      enums.PolicyModeUrgent,
				Ranked: []scoring.RankedCandidate{
					{InterpreterID: eligible, Name: "Ada", Eligible: true, Total: 0.91},
					{InterpreterID: blocked, Name: "Bo", Eligible: false, Reason: "time conflict"},
				},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+bookingID.String()+"/assignment/preview", nil)
	req = addRouteParam(req, "bookingId", bookingID.String())

	resp := httptest.NewRecorder()
	PreviewAssignment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Mode       string          `json:"mode"`
			Candidates []candidateView `json:"candidates"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Mode != "URGENT" {
		t.Fatalf("mode = %s, want URGENT", envelope.Data.Mode)
	}
	if len(envelope.Data.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(envelope.Data.Candidates))
	}
	if envelope.Data.Candidates[1].Reason != "time conflict" {
		t.Fatalf("blocked reason = %q", envelope.Data.Candidates[1].Reason)
	}
}
