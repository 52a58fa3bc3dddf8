package model

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrBatchNotFound     = errors.New("notification batch not found")

	ErrRecipientMismatch  = errors.New("recipient does not belong to this event")
	ErrNoContactAddress   = errors.New("recipient does not have a phone number")
	ErrLimitExceeded      = errors.New("contact limit exceeded")
	ErrNoRecipients       = errors.New("no recipients found for this event")
	ErrEmptyTargetSet     = errors.New("no valid recipients selected for bulk notification")
	ErrUnsupportedChannel = errors.New("unsupported notification channel")

	ErrAlreadyConfirmed = errors.New("recipient has already confirmed attendance")
	ErrAlreadyDeclined  = errors.New("recipient has already declined")
	ErrInvalidPartySize = errors.New("party size must be at least 1")

	ErrInvalidBatchTransition = errors.New("invalid notification batch transition")
	ErrInvalidBatchSize       = errors.New("notification batch must target at least one recipient")
	ErrBatchFinalization      = errors.New("notification batch could not be finalized")

	ErrCacheMiss = errors.New("cache miss")
)

// LimitExceededError is returned when a recipient may not be contacted again on a channel.
// It matches ErrLimitExceeded with errors.Is.
type LimitExceededError struct {
	Channel   Channel
	Max       int
	Confirmed bool
}

func (e *LimitExceededError) Error() string {
	if e.Confirmed {
		return fmt.Sprintf("recipient has confirmed attendance, no further %s notifications allowed (maximum %d)", e.Channel, e.Max)
	}
	return fmt.Sprintf("maximum %d %s notifications already sent to this recipient", e.Max, e.Channel)
}

func (e *LimitExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// BatchFinalizationError reports that the terminal state of a batch could not be stored.
// It matches ErrBatchFinalization with errors.Is and unwraps to the storage failure.
type BatchFinalizationError struct {
	BatchID uuid.UUID
	Err     error
}

func (e *BatchFinalizationError) Error() string {
	return fmt.Sprintf("%s: batch %s: %v", ErrBatchFinalization, e.BatchID, e.Err)
}

func (e *BatchFinalizationError) Is(target error) bool {
	return target == ErrBatchFinalization
}

func (e *BatchFinalizationError) Unwrap() error {
	return e.Err
}
