package auth

import (
	"errors"
	"net/http"
)

// Sentinel errors for authentication.
var (
	// Credential errors
	ErrMissingCredentials   = errors.New("auth: missing credentials")
	ErrInvalidCredentials   = errors.New("auth: invalid credentials")
	ErrMalformedCredentials = errors.New("auth: malformed credentials")
	ErrInvalidToken         = errors.New("auth: invalid token")
	ErrTokenExpired         = errors.New("auth: token expired")
	ErrInvalidState         = errors.New("auth: invalid oauth state")
	ErrNoPriorIdentity      = errors.New("auth: second factor requires a prior identity")
	ErrNotEnrolled          = errors.New("auth: second factor not enrolled")
	ErrKeyNotFound          = errors.New("auth: signing key not found")

	// Setup errors
	ErrUnknownStrategy   = errors.New("auth: unknown strategy")
	ErrDuplicateStrategy = errors.New("auth: strategy already registered")
	ErrNoStrategies      = errors.New("auth: no strategies configured")
)

// Kind classifies an authentication failure.
type Kind int

const (
	// KindUnauthorized means credentials are missing, invalid or expired.
	KindUnauthorized Kind = iota
	// KindNotEnrolled means the identity is valid but a required second
	// factor has not been configured.
	KindNotEnrolled
	// KindMisconfiguration means the protection itself is set up wrong.
	KindMisconfiguration
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotEnrolled:
		return "not_enrolled"
	case KindMisconfiguration:
		return "misconfiguration"
	default:
		return "unknown"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotEnrolled:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified authentication failure.
//
// Target is an optional redirect destination (enrollment page, OAuth
// authorization URL) that the HTTP layer follows instead of rendering an
// error body.
type Error struct {
	Kind    Kind
	Message string
	Target  string
	Err     error

	// Challenge is sent as WWW-Authenticate on 401 responses when set.
	Challenge string
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "auth: " + e.Kind.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for this error.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// Unauthorized wraps err as an Unauthorized failure.
func Unauthorized(err error) *Error {
	if err == nil {
		err = ErrInvalidCredentials
	}
	return &Error{Kind: KindUnauthorized, Err: err}
}

// UnauthorizedRedirect is an Unauthorized failure that sends the client to target.
func UnauthorizedRedirect(err error, target string) *Error {
	e := Unauthorized(err)
	e.Target = target
	return e
}

// NotEnrolled reports a missing second factor; target is the enrollment URL.
func NotEnrolled(target string) *Error {
	return &Error{Kind: KindNotEnrolled, Err: ErrNotEnrolled, Target: target}
}

// Misconfigured wraps err as a Misconfiguration failure.
func Misconfigured(err error) *Error {
	return &Error{Kind: KindMisconfiguration, Err: err}
}

// KindOf returns the Kind of err and whether err carries one.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

// IsUnauthorized reports whether err is an Unauthorized failure.
func IsUnauthorized(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindUnauthorized
}

// IsNotEnrolled reports whether err is a NotEnrolled failure.
func IsNotEnrolled(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindNotEnrolled
}

// IsMisconfigured reports whether err is a Misconfiguration failure.
func IsMisconfigured(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindMisconfiguration
}

// StatusCode maps err to an HTTP status code.
// Errors that carry no Kind (for example from a resolve hook) map to 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status()
	}
	return http.StatusInternalServerError
}

// RedirectTarget returns the redirect target carried by err, if any.
func RedirectTarget(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Target
	}
	return ""
}
