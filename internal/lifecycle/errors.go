package lifecycle

import (
	"errors"
	"fmt"

	"fieldflow/internal/model"
)

// IllegalTransition is returned when an event is not listed for the
// order's current status. No mutation happens and no event is written.
type IllegalTransition struct {
	From  model.OrderStatus
	Event EventKind
}

func (e *IllegalTransition) Error() string {
	return fmt.Sprintf("illegal transition: %s not allowed from %s", e.Event, e.From)
}

// IsIllegalTransition reports whether err is an IllegalTransition.
// Uses errors.As to handle wrapped errors.
func IsIllegalTransition(err error) bool {
	var it *IllegalTransition
	return errors.As(err, &it)
}

// ValidationError rejects a specific command without touching state.
// Field names the offending input where one exists.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
	}
	return "validation: " + e.Message
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
