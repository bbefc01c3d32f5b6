package robokassa

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors, returned by NewMerchant.
	ErrUnsupportedHashAlgorithm = errors.New("robokassa: unsupported hash algorithm")
	ErrMissingLogin             = errors.New("robokassa: merchant login is not defined")
	ErrMissingSecret            = errors.New("robokassa: merchant password is not defined")

	// ErrTestModeUnsupported is returned by authenticated API calls while the merchant is in test mode.
	ErrTestModeUnsupported = errors.New("robokassa: method not available in test mode")

	// ErrInvalidArgument wraps DTO validation failures.
	ErrInvalidArgument = errors.New("robokassa: invalid argument")

	ErrDecode    = errors.New("robokassa: malformed gateway response")
	ErrTransport = errors.New("robokassa: gateway request failed")
	ErrGateway   = errors.New("robokassa: gateway rejected request")
)

// DecodeError reports a response that broke the protocol contract: unparsable XML or JSON,
// an unexpected root element, or missing required keys. Never retried.
type DecodeError struct {
	Operation string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("robokassa %s: malformed response: %v", e.Operation, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// TransportError reports a network failure or a non-2xx gateway status.
type TransportError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("robokassa %s: status=%d body=%s", e.Operation, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("robokassa %s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// Temporary reports whether retrying may help.
func (e *TransportError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == 429
}

// GatewayError is a well-formed response with isSuccess=false.
type GatewayError struct {
	Operation string
	Message   string
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("robokassa %s: gateway returned isSuccess=false", e.Operation)
	}
	return fmt.Sprintf("robokassa %s: %s", e.Operation, e.Message)
}

func (e *GatewayError) Unwrap() error { return ErrGateway }

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
