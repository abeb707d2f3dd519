package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/internal/audit"
	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

type testAuditRepo struct {
	listByBookingFn func(ctx context.Context, bookingID uuid.UUID, limit int) ([]models.AssignmentLog, error)
}

func (r *testAuditRepo) WithTx(*gorm.DB) audit.Repository { return r }

func (r *testAuditRepo) Insert(context.Context, *models.AssignmentLog) error { return nil }

func (r *testAuditRepo) ListByBooking(ctx context.Context, bookingID uuid.UUID, limit int) ([]models.AssignmentLog, error) {
	if r.listByBookingFn != nil {
		return r.listByBookingFn(ctx, bookingID, limit)
	}
	return nil, nil
}

func (r *testAuditRepo) ListByCategory(context.Context, enums.AuditCategory, int) ([]models.AssignmentLog, error) {
	return nil, nil
}

func (r *testAuditRepo) ListCreatedAfter(context.Context, time.Time, int) ([]models.AssignmentLog, error) {
	return nil, nil
}

func TestBookingAuditTrail(t *testing.T) {
	bookingID := uuid.New()
	repo := &testAuditRepo{
		listByBookingFn: func(ctx context.Context, id uuid.UUID, limit int) ([]models.AssignmentLog, error) {
			if id != bookingID {
				t.Fatalf("unexpected booking %s", id)
			}
			if limit != defaultAuditLimit {
				t.Fatalf("limit = %d, want default %d", limit, defaultAuditLimit)
			}
			return []models.AssignmentLog{
				{
					ID:        uuid.New(),
					Category:  enums.AuditCategoryAssignment,
					BookingID: &bookingID,
					Outcome:   "ASSIGNED",
					Payload:   json.RawMessage(`{"score":0.9}`),
					CreatedAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
				},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+bookingID.String()+"/audit", nil)
	req = addRouteParam(req, "bookingId", bookingID.String())
	resp := httptest.NewRecorder()
	BookingAuditTrail(repo, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Entries []auditLogView `json:"entries"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(envelope.Data.Entries))
	}
	if envelope.Data.Entries[0].Outcome != "ASSIGNED" {
		t.Fatalf("outcome = %q", envelope.Data.Entries[0].Outcome)
	}
}

func TestBookingAuditTrailRejectsBadLimit(t *testing.T) {
	bookingID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+bookingID.String()+"/audit?limit=9999", nil)
	req = addRouteParam(req, "bookingId", bookingID.String())
	resp := httptest.NewRecorder()
	BookingAuditTrail(&testAuditRepo{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
