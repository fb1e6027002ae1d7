package exam

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNotEditable       = errors.New("exam is not editable in its current status")
	ErrNotAvailable      = errors.New("exam is not currently available")
	ErrAlreadySubmitted  = errors.New("exam already submitted")
	ErrNotSubmitted      = errors.New("exam has not been submitted")
	ErrScoreOutOfRange   = errors.New("score outside the item's point range")
	ErrNotManualType     = errors.New("item is not manually gradable")
)

// ValidationError describes one malformed input field. Handlers surface these
// as 422 responses.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// UngradedError rejects finalization while manual items are still waiting on
// a teacher score. Count is the exact number of outstanding answers.
type UngradedError struct {
	Count int
}

func (e *UngradedError) Error() string {
	return fmt.Sprintf("%d answer(s) still need manual grading", e.Count)
}
