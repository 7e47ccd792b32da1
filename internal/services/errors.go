package services

import (
	"errors"

	"community-backend/internal/repository"
	"community-backend/internal/storage"
)

// Kind classifies a failed operation
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindConflict
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	}
	return "internal"
}

// Error is a failed operation with a message fit to show the user
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation returns a validation failure with the given message
func Validation(message string) *Error {
	return newError(KindValidation, message)
}

var (
	ErrSelfTarget          = newError(KindValidation, "You cannot send a request to yourself.")
	ErrUserNotFound        = newError(KindNotFound, "User not found.")
	ErrAlreadyConnected    = newError(KindConflict, "You are already connected.")
	ErrDuplicatePending    = newError(KindConflict, "A request is already pending.")
	ErrInvalidOrProcessed  = newError(KindInvalidState, "Request is invalid or was already processed.")
	ErrNameTooShort        = newError(KindValidation, "Group name must have at least 3 characters.")
	ErrInsufficientMembers = newError(KindValidation, "A group needs at least 3 participants.")
	ErrUnknownMember       = newError(KindNotFound, "One of the selected members does not exist.")
	ErrNotConnected        = newError(KindForbidden, "You can only add people you are connected with.")
	ErrNotAMember          = newError(KindNotFound, "Conversation not found.")
	ErrEmptyMessage        = newError(KindValidation, "Type a message or attach a file.")
	ErrEmptyReason         = newError(KindValidation, "Describe the reason for the report.")
	ErrEmptyContent        = newError(KindValidation, "Content cannot be empty.")
	ErrForbidden           = newError(KindForbidden, "You do not have permission to do that.")
	ErrNotFound            = newError(KindNotFound, "Not found.")
	ErrInvalidCredentials  = newError(KindValidation, "Invalid email or password.")
	ErrPendingApproval     = newError(KindForbidden, "Your registration is pending approval.")
	ErrEmailTaken          = newError(KindConflict, "This email is already registered.")
	ErrProfileHidden       = newError(KindForbidden, "You can only view profiles of your contacts.")
)

// KindOf returns the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// fromStorage converts an upload validation failure into a service error
func fromStorage(err error) error {
	var vErr *storage.ValidationError
	if errors.As(err, &vErr) {
		return Validation(vErr.Message)
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
