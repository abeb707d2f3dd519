package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/api/middleware"
	"github.com/angelmondragon/interpretz-backend/api/responses"
	"github.com/angelmondragon/interpretz-backend/api/validators"
	"github.com/angelmondragon/interpretz-backend/internal/assignment"
	"github.com/angelmondragon/interpretz-backend/internal/pool"
	"github.com/angelmondragon/interpretz-backend/internal/scoring"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
)

type assignmentResponse struct {
	BookingID     uuid.UUID  `json:"bookingId"`
	Outcome       string     `json:"outcome"`
	InterpreterID *uuid.UUID `json:"interpreterId,omitempty"`
	Mode          string     `json:"mode"`
	Reason        string     `json:"reason,omitempty"`
	TotalScore    float64    `json:"totalScore,omitempty"`
	ViaPool       bool       `json:"viaPool"`
	AlreadyDone   bool       `json:"alreadyAssigned,omitempty"`
	PoolDeadline  *time.Time `json:"poolDeadline,omitempty"`
}

type candidateView struct {
	InterpreterID uuid.UUID `json:"interpreterId"`
	Name          string    `json:"name"`
	TotalScore    float64   `json:"totalScore"`
	Eligible      bool      `json:"eligible"`
	Reason        string    `json:"reason,omitempty"`
}

func assignmentView(res *assignment.Result) assignmentResponse {
	return assignmentResponse{
		BookingID:     res.BookingID,
		Outcome:       res.Outcome.String(),
		InterpreterID: res.InterpreterID,
		Mode:          res.Mode.String(),
		Reason:        res.Reason,
		TotalScore:    res.TotalScore,
		ViaPool:       res.ViaPool,
		AlreadyDone:   res.AlreadyDone,
		PoolDeadline:  res.PoolDeadline,
	}
}

func parseBookingID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "bookingId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid booking id")
	}
	return id, nil
}

func actorFromRequest(r *http.Request) *outbox.ActorRef {
	raw := middleware.OperatorIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	operatorID, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &outbox.ActorRef{
		OperatorID: operatorID,
		Role:       middleware.RoleFromContext(r.Context()),
	}
}

// RequestAssignment routes a booking through pool intake: inside its urgent
// threshold it is assigned synchronously, otherwise it is pooled.
func RequestAssignment(intake pool.Intake, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if intake == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pool intake unavailable"))
			return
		}

		bookingID, err := parseBookingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := intake.Submit(r.Context(), bookingID, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignmentView(res))
	}
}

type drOverrideRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// DROverrideAssignment forces assignment past a blocking DR consecutive rule.
// The override reason lands in the audit trail and the emitted event.
func DROverrideAssignment(svc assignment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable"))
			return
		}

		bookingID, err := parseBookingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body drOverrideRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.Assign(r.Context(), assignment.AssignInput{
			BookingID: bookingID,
			Actor:     actorFromRequest(r),
			Options: scoring.LoadOptions{
				DROverride:       true,
				DROverrideReason: validators.SanitizeString(body.Reason, 500),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignmentView(res))
	}
}

// PreviewAssignment ranks candidates without committing anything.
func PreviewAssignment(svc assignment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable"))
			return
		}

		bookingID, err := parseBookingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.Preview(r.Context(), assignment.AssignInput{
			BookingID: bookingID,
			Actor:     actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		candidates := make([]candidateView, 0, len(res.Ranked))
		for _, cand := range res.Ranked {
			candidates = append(candidates, candidateView{
				InterpreterID: cand.InterpreterID,
				Name:          cand.Name,
				TotalScore:    cand.Total,
				Eligible:      cand.Eligible,
				Reason:        cand.Reason,
			})
		}
		responses.WriteSuccess(w, map[string]any{
			"bookingId":  res.BookingID,
			"mode":       res.Mode.String(),
			"candidates": candidates,
		})
	}
}
