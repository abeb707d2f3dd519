package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/api/responses"
	"github.com/angelmondragon/interpretz-backend/api/validators"
	"github.com/angelmondragon/interpretz-backend/internal/audit"
	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

const defaultAuditLimit = 50

type auditLogView struct {
	ID        uuid.UUID  `json:"id"`
	Category  string     `json:"category"`
	BookingID *uuid.UUID `json:"bookingId,omitempty"`
	Outcome   string     `json:"outcome"`
	Payload   any        `json:"payload"`
	CreatedAt time.Time  `json:"createdAt"`
}

func auditViews(rows []models.AssignmentLog) []auditLogView {
	views := make([]auditLogView, 0, len(rows))
	for _, row := range rows {
		views = append(views, auditLogView{
			ID:        row.ID,
			Category:  row.Category.String(),
			BookingID: row.BookingID,
			Outcome:   row.Outcome,
			Payload:   row.Payload,
			CreatedAt: row.CreatedAt,
		})
	}
	return views
}

// BookingAuditTrail lists assignment log entries for one booking, newest first.
func BookingAuditTrail(logs audit.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logs == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit repository unavailable"))
			return
		}

		bookingID, err := parseBookingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultAuditLimit, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := logs.ListByBooking(r.Context(), bookingID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"bookingId": bookingID,
			"entries":   auditViews(rows),
		})
	}
}
