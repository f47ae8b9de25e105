package http

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorType classifies a transport or storage failure for log annotation.
// Nothing in sharefold retries on the basis of this classification.
type ErrorType int

const (
	// ErrorTypeNone indicates no error
	ErrorTypeNone ErrorType = iota
	// ErrorTypeCredential indicates an expired or rejected signature/token
	ErrorTypeCredential
	// ErrorTypeNetwork indicates connection-level failures
	ErrorTypeNetwork
	// ErrorTypeServer indicates a server-side or throttling failure
	ErrorTypeServer
	// ErrorTypeFatal indicates a client error or an unrecognized failure
	ErrorTypeFatal
)

// ClassifyError determines the class of a transfer or request error.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeNone
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorTypeNetwork
	}

	errStr := strings.ToLower(err.Error())

	// S3 (expired/invalid signature) and Azure (SAS) authorization failures
	if strings.Contains(errStr, "expired") ||
		strings.Contains(errStr, "signaturedoesnotmatch") ||
		strings.Contains(errStr, "signature not valid") ||
		strings.Contains(errStr, "authenticationfailed") ||
		strings.Contains(errStr, "invalid sas") ||
		strings.Contains(errStr, "status 401") ||
		strings.Contains(errStr, "status 403") {
		return ErrorTypeCredential
	}

	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "tls handshake timeout") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "unexpected eof") ||
		strings.Contains(errStr, "no such host") {
		return ErrorTypeNetwork
	}

	if strings.Contains(errStr, "slowdown") ||
		strings.Contains(errStr, "serverbusy") ||
		strings.Contains(errStr, "throttl") ||
		strings.Contains(errStr, "status 429") ||
		strings.Contains(errStr, "status 500") ||
		strings.Contains(errStr, "status 502") ||
		strings.Contains(errStr, "status 503") ||
		strings.Contains(errStr, "status 504") {
		return ErrorTypeServer
	}

	return ErrorTypeFatal
}

// ErrorTypeName returns a short name for log fields.
func ErrorTypeName(t ErrorType) string {
	switch t {
	case ErrorTypeNone:
		return "none"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeServer:
		return "server"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
