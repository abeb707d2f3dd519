package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/api/responses"
	"github.com/angelmondragon/interpretz-backend/internal/rebalance"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

type recalibrateReportView struct {
	Added          int                    `json:"added"`
	Removed        int                    `json:"removed"`
	ChangeRatio    float64                `json:"changeRatio"`
	Full           bool                   `json:"full"`
	FairnessAdjust float64                `json:"fairnessAdjust"`
	GraceUntil     *time.Time             `json:"graceUntil,omitempty"`
	Roster         []rebalance.RosterLine `json:"roster"`
}

// RecalibrateRoster recomputes fairness posture from the current roster.
func RecalibrateRoster(svc rebalance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rebalance service unavailable"))
			return
		}

		report, err := svc.Recalibrate(r.Context(), actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view := recalibrateReportView{
			Added:          report.Added,
			Removed:        report.Removed,
			ChangeRatio:    report.ChangeRatio,
			Full:           report.Full,
			FairnessAdjust: report.FairnessAdjust,
			Roster:         report.Roster,
		}
		if !report.GraceUntil.IsZero() {
			until := report.GraceUntil
			view.GraceUntil = &until
		}
		responses.WriteSuccess(w, view)
	}
}

// RosterPosture reports the posture assignments currently run under.
func RosterPosture(svc rebalance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rebalance service unavailable"))
			return
		}

		state := svc.Snapshot()
		grace := make([]uuid.UUID, 0, len(state.GraceInterpreters))
		for id := range state.GraceInterpreters {
			grace = append(grace, id)
		}

		payload := map[string]any{
			"fairnessAdjust":    state.FairnessAdjust,
			"graceInterpreters": grace,
		}
		if !state.GraceUntil.IsZero() {
			payload["graceUntil"] = state.GraceUntil
		}
		responses.WriteSuccess(w, payload)
	}
}
