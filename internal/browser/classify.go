package browser

import (
	"errors"

	"github.com/sharefold/sharefold/internal/api"
	"github.com/sharefold/sharefold/internal/diskspace"
	"github.com/sharefold/sharefold/internal/state"
	"github.com/sharefold/sharefold/internal/transfer"
	"github.com/sharefold/sharefold/internal/validation"
)

var (
	// ErrNotAuthenticated is returned by every core operation while no session is live.
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrNotPermitted is returned when the session's role does not allow an action.
	ErrNotPermitted = errors.New("not permitted for this role")
)

// FailureKind groups errors the way a presentation layer treats them.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureValidation: detected locally, no request was made.
	FailureValidation
	// FailureRequest: an API call failed or was refused; prior state is intact.
	FailureRequest
	// FailureTransfer: the direct object-store transfer failed.
	FailureTransfer
	// FailureSessionInvalidated: the session is gone and the user must log in again.
	FailureSessionInvalidated
	// FailurePermission: the role does not allow the action.
	FailurePermission
	FailureUnknown
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureValidation:
		return "validation"
	case FailureRequest:
		return "request"
	case FailureTransfer:
		return "transfer"
	case FailureSessionInvalidated:
		return "session"
	case FailurePermission:
		return "permission"
	default:
		return "unknown"
	}
}

// Classify maps err onto a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var reqErr *api.RequestError
	switch {
	case errors.Is(err, ErrNotAuthenticated), api.IsSessionInvalid(err):
		return FailureSessionInvalidated
	case errors.Is(err, ErrNotPermitted):
		return FailurePermission
	case validation.Is(err),
		errors.Is(err, transfer.ErrUploadInProgress),
		errors.Is(err, state.ErrBreadcrumbOutOfRange),
		errors.Is(err, state.ErrNotAChild),
		errors.Is(err, state.ErrFolderNotFound),
		diskspace.IsInsufficientSpaceError(err):
		return FailureValidation
	case transfer.IsTransferError(err):
		return FailureTransfer
	case errors.As(err, &reqErr):
		return FailureRequest
	}
	return FailureUnknown
}
