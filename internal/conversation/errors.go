package conversation

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// ErrorKind classifies a failed reply.
type ErrorKind int

const (
	// GenericError covers every remote failure not classified otherwise,
	// including malformed responses.
	GenericError ErrorKind = iota
	// ConfigError is raised locally before any remote call, e.g. a missing credential.
	ConfigError
	// CredentialError means the remote service rejected the credential.
	CredentialError
	// NetworkError means the remote service could not be reached.
	NetworkError
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigError:
		return "config_error"
	case CredentialError:
		return "credential_error"
	case NetworkError:
		return "network_error"
	default:
		return "generic_error"
	}
}

// Error is the only error type BuildReply returns.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with kind. Transport bindings use it to report structured
// failures that Classify then trusts as-is.
func Wrap(kind ErrorKind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind carried by err, or GenericError.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return GenericError
}

// Classify maps a remote failure to an ErrorKind. Structured information wins:
// a kind already attached by the transport binding, then network error types.
// Only when neither is present does it fall back to matching the failure text.
func Classify(err error) ErrorKind {
	if err == nil {
		return GenericError
	}

	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return NetworkError
	}

	return classifyText(err.Error())
}

// classifyText is the compatibility shim for transports that only expose a
// human-readable detail. Checked in priority order, case-sensitive.
func classifyText(detail string) ErrorKind {
	switch {
	case strings.Contains(detail, "API key"):
		return CredentialError
	case strings.Contains(detail, "network"):
		return NetworkError
	default:
		return GenericError
	}
}
