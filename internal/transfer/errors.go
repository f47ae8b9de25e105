// Package transfer moves file bytes directly between this machine and the
// object store, using short-lived authorizations issued by the API.
package transfer

import (
	"errors"
	"fmt"
	nethttp "net/http"
)

// ErrUploadInProgress is returned when an upload is started while another one
// on the same coordinator has not finished.
var ErrUploadInProgress = errors.New("an upload is already in progress")

// TransferError is a failure of the direct byte transfer to or from the object
// store. StatusCode is zero when no response was received.
type TransferError struct {
	StatusCode int
	Err        error
}

func (e *TransferError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("transfer failed: HTTP %d %s: %v", e.StatusCode, nethttp.StatusText(e.StatusCode), e.Err)
		}
		return fmt.Sprintf("transfer failed: HTTP %d %s", e.StatusCode, nethttp.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("transfer failed: %v", e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// IsTransferError reports whether err is or wraps a TransferError.
func IsTransferError(err error) bool {
	var te *TransferError
	return errors.As(err, &te)
}
