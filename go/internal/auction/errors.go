package auction

import "errors"

// Share event rejections. The error text is what the requesting viewer receives.
var (
	// Validation
	ErrMissingIdentifier = errors.New("missing identifier")

	// Conflict
	ErrDuplicateShare = errors.New("duplicate share")
	ErrUpdateFailed   = errors.New("update failed")

	// Not found
	ErrItemNotFound = errors.New("item not found")

	// Temporal gate
	ErrNotStarted = errors.New("not started")
	ErrEnded      = errors.New("ended")

	// Infrastructure
	ErrCouldNotRecord = errors.New("could not record")

	// ErrMinimumReached is informational: the event was valid but the price
	// is already at its floor.
	ErrMinimumReached = errors.New("minimum already reached")
)

var replyErrors = []error{
	ErrMissingIdentifier,
	ErrDuplicateShare,
	ErrUpdateFailed,
	ErrItemNotFound,
	ErrNotStarted,
	ErrEnded,
	ErrCouldNotRecord,
	ErrMinimumReached,
}

// ReplyText maps a processing error onto the text sent back to the viewer.
// Wrapped infrastructure errors collapse to a generic failure.
func ReplyText(err error) string {
	for _, known := range replyErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrCouldNotRecord.Error()
}

// IsInformational reports whether err is a notice rather than a failure.
func IsInformational(err error) bool {
	return errors.Is(err, ErrMinimumReached)
}

// Outcome is a short label for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "price_updated"
	case errors.Is(err, ErrMissingIdentifier):
		return "missing_identifier"
	case errors.Is(err, ErrDuplicateShare):
		return "duplicate_share"
	case errors.Is(err, ErrUpdateFailed):
		return "update_failed"
	case errors.Is(err, ErrItemNotFound):
		return "item_not_found"
	case errors.Is(err, ErrNotStarted):
		return "not_started"
	case errors.Is(err, ErrEnded):
		return "ended"
	case errors.Is(err, ErrMinimumReached):
		return "minimum_reached"
	default:
		return "could_not_record"
	}
}
