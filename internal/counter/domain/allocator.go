package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Counter names persisted by every backend.
const (
	DHRID    = "dhr_id"
	Offset   = "offset"
	ArcDocID = "arc_doc_id"
	StatusID = "status_id"
	EventID  = "event_id"
)

// ArcDocIDWidth is the fixed width of archive document ids.
const ArcDocIDWidth = 16

var Names = []string{DHRID, Offset, ArcDocID, StatusID, EventID}

// Allocator hands out monotonically increasing identifiers per counter name.
// A value is returned only after it has been durably recorded.
type Allocator interface {
	Next(ctx context.Context, name string) (string, error)
}

var (
	ErrAllocation     = errors.New("allocation_failed")
	ErrUnknownCounter = errors.New("unknown_counter")
)

// Known reports whether name is one of the managed counters.
func Known(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// Format renders value the way callers receive it for name.
func Format(name string, value int64) string {
	if name == ArcDocID {
		return fmt.Sprintf("%0*d", ArcDocIDWidth, value)
	}
	return strconv.FormatInt(value, 10)
}

// Parse reads a stored counter value. Empty means the counter was never used.
func Parse(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter value %q: %w", raw, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative counter value %d", v)
	}
	return v, nil
}

// Wrap tags err as an allocation failure for name.
func Wrap(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrAllocation, name, err)
}
