package reporting

import (
	"fmt"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
)

// AssignmentLogRow mirrors the assignment_logs BigQuery table schema.
type AssignmentLogRow struct {
	LogID     string                  `bigquery:"log_id"`
	Category  string                  `bigquery:"category"`
	BookingID cbigquery.NullString    `bigquery:"booking_id"`
	Outcome   string                  `bigquery:"outcome"`
	Payload   cbigquery.NullJSON      `bigquery:"payload"`
	CreatedAt cbigquery.NullTimestamp `bigquery:"created_at"`
}

// RowFromLog converts a persisted audit entry into its warehouse row.
func RowFromLog(log models.AssignmentLog) (AssignmentLogRow, error) {
	payload, err := encodeJSON(log.Payload)
	if err != nil {
		return AssignmentLogRow{}, fmt.Errorf("encode payload: %w", err)
	}
	row := AssignmentLogRow{
		LogID:    log.ID.String(),
		Category: string(log.Category),
		Outcome:  log.Outcome,
		Payload:  payload,
	}
	if log.BookingID != nil {
		row.BookingID = cbigquery.NullString{Valid: true, StringVal: log.BookingID.String()}
	}
	if !log.CreatedAt.IsZero() {
		row.CreatedAt = cbigquery.NullTimestamp{Valid: true, Timestamp: log.CreatedAt.UTC()}
	}
	return row, nil
}
