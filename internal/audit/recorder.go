package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

// Recorder writes audit entries. A failed write is logged and swallowed; an
// audit problem must never change an assignment outcome.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry)
}

type recorder struct {
	repo Repository
	logg *logger.Logger
}

// NewRecorder builds the audit recorder.
func NewRecorder(repo Repository, logg *logger.Logger) (Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &recorder{repo: repo, logg: logg}, nil
}

func (r *recorder) Record(ctx context.Context, tx *gorm.DB, entry Entry) {
	if entry == nil {
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		r.fallback(ctx, entry, err)
		return
	}
	row := models.AssignmentLog{
		Category:  entry.Category(),
		BookingID: entry.BookingRef(),
		Outcome:   entry.OutcomeLabel(),
		Payload:   payload,
	}
	if tx != nil {
		// a failed insert inside a caller's transaction would abort the whole
		// transaction on postgres; the savepoint keeps the audit write
		// self-contained so the caller's work survives
		const sp = "audit_entry"
		if err := tx.SavePoint(sp).Error; err != nil {
			r.fallback(ctx, entry, err)
			return
		}
		if err := r.repo.WithTx(tx).Insert(ctx, &row); err != nil {
			if rbErr := tx.RollbackTo(sp).Error; rbErr != nil {
				r.fallback(ctx, entry, rbErr)
			}
			r.fallback(ctx, entry, err)
		}
		return
	}
	if err := r.repo.Insert(ctx, &row); err != nil {
		r.fallback(ctx, entry, err)
	}
}

// fallback dumps the entry to the process log so the record is not lost when
// the database write fails.
func (r *recorder) fallback(ctx context.Context, entry Entry, cause error) {
	if r.logg == nil {
		return
	}
	fields := map[string]any{
		"audit_category": entry.Category().String(),
		"audit_outcome":  entry.OutcomeLabel(),
	}
	if id := entry.BookingRef(); id != nil {
		fields["booking_id"] = id.String()
	}
	if raw, err := json.Marshal(entry); err == nil {
		fields["audit_entry"] = json.RawMessage(raw)
	}
	logCtx := r.logg.WithFields(ctx, fields)
	r.logg.Error(logCtx, "audit entry persistence failed", cause)
}
