// Package gateway publishes posts to social platforms through one provider.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/maheshrc27/contentflow/internal/models"
)

var (
	ErrTransient = errors.New("transient publishing error")
	ErrPermanent = errors.New("permanent publishing error")
)

type Result struct {
	PlatformPostID string
}

// Gateway performs one publish attempt. Implementations must be safe for
// concurrent use and must honor ctx cancellation.
type Gateway interface {
	Publish(ctx context.Context, post *models.Post) (*Result, error)
}

// Error is a classified provider failure.
type Error struct {
	Transient  bool
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", kind, e.Message)
}

func (e *Error) Is(target error) bool {
	if e.Transient {
		return target == ErrTransient
	}
	return target == ErrPermanent
}

func Transient(status int, msg string) *Error {
	return &Error{Transient: true, StatusCode: status, Message: msg}
}

func Permanent(status int, msg string) *Error {
	return &Error{StatusCode: status, Message: msg}
}
