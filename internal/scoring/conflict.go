package scoring

import (
	"time"

	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

// OverlapKind classifies how two windows collide. All kinds block assignment
// identically; the label is diagnostic only.
type OverlapKind string

const (
	OverlapNone      OverlapKind = "NONE"
	OverlapPartial   OverlapKind = "OVERLAP"
	OverlapAdjacent  OverlapKind = "ADJACENT"
	OverlapContained OverlapKind = "CONTAINED"
)

// Conflict pairs an existing booking with its overlap classification.
type Conflict struct {
	Booking models.Booking
	Kind    OverlapKind
}

// windowsOverlap is the strict-overlap predicate: exactly-touching windows do
// not conflict.
func windowsOverlap(existingStart, existingEnd, start, end time.Time) bool {
	return existingStart.Before(end) && existingEnd.After(start)
}

// classifyOverlap labels the collision. Adjacency is checked before the
// overlap predicate since exactly-touching windows never satisfy it.
func classifyOverlap(existingStart, existingEnd, start, end time.Time) OverlapKind {
	switch {
	case existingStart.Equal(end) || existingEnd.Equal(start):
		return OverlapAdjacent
	case !windowsOverlap(existingStart, existingEnd, start, end):
		return OverlapNone
	case !existingStart.Before(start) && !existingEnd.After(end):
		return OverlapContained
	case !start.Before(existingStart) && !end.After(existingEnd):
		return OverlapContained
	default:
		return OverlapPartial
	}
}

// FindConflict returns the first non-cancelled booking of the candidate that
// overlaps [start, end), or nil.
func FindConflict(bookings []models.Booking, start, end time.Time) *Conflict {
	for _, b := range bookings {
		if b.Status == enums.BookingStatusCancelled {
			continue
		}
		if windowsOverlap(b.StartTime, b.EndTime, start, end) {
			return &Conflict{
				Booking: b,
				Kind:    classifyOverlap(b.StartTime, b.EndTime, start, end),
			}
		}
	}
	return nil
}
