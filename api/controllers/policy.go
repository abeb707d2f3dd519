package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/interpretz-backend/api/responses"
	"github.com/angelmondragon/interpretz-backend/api/validators"
	"github.com/angelmondragon/interpretz-backend/internal/modes"
	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

type thresholdView struct {
	MeetingType          string  `json:"meetingType"`
	PriorityValue        float64 `json:"priorityValue"`
	UrgentThresholdDays  int     `json:"urgentThresholdDays"`
	GeneralThresholdDays int     `json:"generalThresholdDays"`
}

type policyView struct {
	Mode                 string          `json:"mode"`
	FairnessWindowDays   int             `json:"fairnessWindowDays"`
	MaxGapHours          float64         `json:"maxGapHours"`
	MinAdvanceDays       int             `json:"minAdvanceDays"`
	WFair                float64         `json:"wFair"`
	WUrgency             float64         `json:"wUrgency"`
	WLRS                 float64         `json:"wLrs"`
	DRConsecutivePenalty float64         `json:"drConsecutivePenalty"`
	AutoAssignEnabled    bool            `json:"autoAssignEnabled"`
	DRScope              string          `json:"drScope"`
	DRForbidConsecutive  bool            `json:"drForbidConsecutive"`
	Thresholds           []thresholdView `json:"thresholds"`
}

func policyViewFrom(resolved *policy.Resolved) policyView {
	thresholds := resolved.Thresholds()
	views := make([]thresholdView, 0, len(thresholds))
	for _, t := range thresholds {
		views = append(views, thresholdView{
			MeetingType:          t.MeetingType,
			PriorityValue:        t.PriorityValue,
			UrgentThresholdDays:  t.UrgentThresholdDays,
			GeneralThresholdDays: t.GeneralThresholdDays,
		})
	}
	return policyView{
		Mode:                 resolved.Mode.String(),
		FairnessWindowDays:   resolved.FairnessWindowDays,
		MaxGapHours:          resolved.MaxGapHours,
		MinAdvanceDays:       resolved.MinAdvanceDays,
		WFair:                resolved.Weights.Fair,
		WUrgency:             resolved.Weights.Urgency,
		WLRS:                 resolved.Weights.LRS,
		DRConsecutivePenalty: resolved.DRConsecutivePenalty,
		AutoAssignEnabled:    resolved.AutoAssignEnabled,
		DRScope:              resolved.DR.Scope.String(),
		DRForbidConsecutive:  resolved.DR.ForbidConsecutive,
		Thresholds:           views,
	}
}

// FetchPolicy returns the resolved active policy, constants included.
func FetchPolicy(svc policy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "policy service unavailable"))
			return
		}

		resolved, err := svc.Resolve(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, policyViewFrom(resolved))
	}
}

type customParamsRequest struct {
	FairnessWindowDays   int     `json:"fairnessWindowDays" validate:"required,min=1,max=365"`
	MaxGapHours          float64 `json:"maxGapHours" validate:"required,gt=0"`
	WFair                float64 `json:"wFair" validate:"min=0,max=1"`
	WUrgency             float64 `json:"wUrgency" validate:"min=0,max=1"`
	WLRS                 float64 `json:"wLrs" validate:"min=0,max=1"`
	DRConsecutivePenalty float64 `json:"drConsecutivePenalty" validate:"min=-100,max=0"`
}

type modeTransitionRequest struct {
	Mode   string               `json:"mode" validate:"required"`
	Custom *customParamsRequest `json:"custom,omitempty"`
}

type transitionReportView struct {
	FromMode        string            `json:"fromMode"`
	ToMode          string            `json:"toMode"`
	Changed         bool              `json:"changed"`
	PoolReevaluated int               `json:"poolReevaluated"`
	ReadyNow        int               `json:"readyNow"`
	DeadlineUpdates int               `json:"deadlineUpdates"`
	StatusChanges   int               `json:"statusChanges"`
	Escalations     int               `json:"escalations"`
	ResetProcessing int64             `json:"resetProcessing"`
	Impacts         []entryImpactView `json:"impacts"`
	Warnings        []string          `json:"warnings,omitempty"`
}

type entryImpactView struct {
	BookingID   string    `json:"bookingId"`
	OldDeadline time.Time `json:"oldDeadline"`
	NewDeadline time.Time `json:"newDeadline"`
	OldStatus   string    `json:"oldStatus"`
	NewStatus   string    `json:"newStatus"`
}

// TransitionPolicyMode switches the active mode and re-evaluates the pool
// against the new thresholds.
func TransitionPolicyMode(svc modes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "modes service unavailable"))
			return
		}

		var body modeTransitionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mode, err := enums.ParsePolicyMode(strings.ToUpper(strings.TrimSpace(body.Mode)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid policy mode"))
			return
		}

		input := modes.TransitionInput{
			TargetMode: mode,
			Actor:      actorFromRequest(r),
		}
		if mode == enums.PolicyModeCustom {
			if body.Custom == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "custom mode requires custom parameters"))
				return
			}
			input.Custom = &modes.CustomParams{
				FairnessWindowDays:   body.Custom.FairnessWindowDays,
				MaxGapHours:          body.Custom.MaxGapHours,
				WFair:                body.Custom.WFair,
				WUrgency:             body.Custom.WUrgency,
				WLRS:                 body.Custom.WLRS,
				DRConsecutivePenalty: body.Custom.DRConsecutivePenalty,
			}
		}

		report, err := svc.Transition(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view := transitionReportView{
			FromMode:        report.FromMode.String(),
			ToMode:          report.ToMode.String(),
			Changed:         report.Changed,
			PoolReevaluated: report.PoolReevaluated,
			ReadyNow:        report.ReadyNow,
			DeadlineUpdates: report.DeadlineUpdates,
			StatusChanges:   report.StatusChanges,
			Escalations:     report.Escalations,
			ResetProcessing: report.ResetProcessing,
			Impacts:         make([]entryImpactView, 0, len(report.Impacts)),
			Warnings:        report.Warnings,
		}
		for _, impact := range report.Impacts {
			view.Impacts = append(view.Impacts, entryImpactView{
				BookingID:   impact.BookingID.String(),
				OldDeadline: impact.OldDeadline,
				NewDeadline: impact.NewDeadline,
				OldStatus:   string(impact.OldStatus),
				NewStatus:   string(impact.NewStatus),
			})
		}
		responses.WriteSuccess(w, view)
	}
}
