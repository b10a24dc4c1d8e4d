package auction

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplyText(t *testing.T) {
	infra := errors.New("connection reset by peer")

	assert.Equal(t, "missing identifier", ReplyText(ErrMissingIdentifier))
	assert.Equal(t, "duplicate share", ReplyText(ErrDuplicateShare))
	assert.Equal(t, "item not found", ReplyText(ErrItemNotFound))
	assert.Equal(t, "not started", ReplyText(ErrNotStarted))
	assert.Equal(t, "ended", ReplyText(ErrEnded))
	assert.Equal(t, "minimum already reached", ReplyText(ErrMinimumReached))
	assert.Equal(t, "update failed", ReplyText(fmt.Errorf("%w: %w", ErrUpdateFailed, infra)))
	assert.Equal(t, "could not record", ReplyText(fmt.Errorf("%w: %w", ErrCouldNotRecord, infra)))

	// Raw infrastructure errors never leak to viewers
	assert.Equal(t, "could not record", ReplyText(infra))
}

func TestIsInformational(t *testing.T) {
	assert.True(t, IsInformational(ErrMinimumReached))
	assert.False(t, IsInformational(ErrEnded))
	assert.False(t, IsInformational(nil))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "price_updated", Outcome(nil))
	assert.Equal(t, "duplicate_share", Outcome(ErrDuplicateShare))
	assert.Equal(t, "update_failed", Outcome(fmt.Errorf("%w: boom", ErrUpdateFailed)))
	assert.Equal(t, "minimum_reached", Outcome(ErrMinimumReached))
	assert.Equal(t, "could_not_record", Outcome(errors.New("boom")))
}
