package lifecycle

import (
	"errors"
	"fmt"

	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/validation"
)

var (
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrInvalidSchedule    = errors.New("scheduled time must be in the future")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrStateConflict      = errors.New("post was modified concurrently; already in progress")
	ErrNotFound           = errors.New("post not found")
)

// TransitionError reports an action that is not legal from the current status.
type TransitionError struct {
	From   models.Status
	To     models.Status
	Action Action
}

func (e *TransitionError) Error() string {
	if e.To != "" && e.To != e.From {
		return fmt.Sprintf("invalid transition: cannot %s a %s post (%s -> %s)", e.Action, e.From, e.From, e.To)
	}
	return fmt.Sprintf("invalid transition: cannot %s a %s post", e.Action, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PreconditionError carries the validation issues that blocked publication.
type PreconditionError struct {
	Issues []validation.Issue
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", validation.Summary(e.Issues))
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionFailed
}
