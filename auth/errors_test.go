package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestKind_StringAndStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		str    string
		status int
	}{
		{KindUnauthorized, "unauthorized", http.StatusUnauthorized},
		{KindNotEnrolled, "not_enrolled", http.StatusForbidden},
		{KindMisconfiguration, "misconfiguration", http.StatusInternalServerError},
		{Kind(42), "unknown", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
			if got := tt.kind.Status(); got != tt.status {
				t.Errorf("Status() = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestSentinelErrors_Prefixed(t *testing.T) {
	sentinels := []error{
		ErrMissingCredentials, ErrInvalidCredentials, ErrMalformedCredentials,
		ErrInvalidToken, ErrTokenExpired, ErrInvalidState, ErrNoPriorIdentity,
		ErrNotEnrolled, ErrKeyNotFound, ErrUnknownStrategy, ErrDuplicateStrategy,
		ErrNoStrategies,
	}
	for _, err := range sentinels {
		if !strings.HasPrefix(err.Error(), "auth: ") {
			t.Errorf("%q lacks the auth: prefix", err)
		}
	}
}

func TestError_Constructors(t *testing.T) {
	cause := errors.New("bad password")

	u := Unauthorized(cause)
	if u.Kind != KindUnauthorized || !errors.Is(u, cause) {
		t.Errorf("Unauthorized(cause) = %+v", u)
	}
	if u.Error() != "bad password" {
		t.Errorf("Error() = %q, want cause message", u.Error())
	}
	if got := Unauthorized(nil); !errors.Is(got, ErrInvalidCredentials) {
		t.Errorf("Unauthorized(nil) should wrap ErrInvalidCredentials, got %v", got)
	}

	r := UnauthorizedRedirect(ErrMissingCredentials, "/login")
	if r.Target != "/login" || !IsUnauthorized(r) {
		t.Errorf("UnauthorizedRedirect = %+v", r)
	}

	n := NotEnrolled("/mfa/enroll")
	if !IsNotEnrolled(n) || n.Target != "/mfa/enroll" || !errors.Is(n, ErrNotEnrolled) {
		t.Errorf("NotEnrolled = %+v", n)
	}

	m := Misconfigured(ErrNoStrategies)
	if k, ok := KindOf(m); !ok || k != KindMisconfiguration {
		t.Errorf("KindOf(Misconfigured) = %v, %v", k, ok)
	}

	bare := &Error{Kind: KindNotEnrolled}
	if bare.Error() != "auth: not_enrolled" {
		t.Errorf("bare Error() = %q", bare.Error())
	}
	withMsg := &Error{Kind: KindUnauthorized, Message: "nope", Err: cause}
	if withMsg.Error() != "nope" {
		t.Errorf("Message should win, got %q", withMsg.Error())
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"unauthorized", Unauthorized(ErrInvalidToken), http.StatusUnauthorized},
		{"wrapped unauthorized", fmt.Errorf("login: %w", Unauthorized(nil)), http.StatusUnauthorized},
		{"not enrolled", NotEnrolled(""), http.StatusForbidden},
		{"misconfigured", Misconfigured(ErrUnknownStrategy), http.StatusInternalServerError},
		{"untyped hook error", errors.New("database down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRedirectTarget(t *testing.T) {
	if got := RedirectTarget(fmt.Errorf("x: %w", NotEnrolled("/enroll"))); got != "/enroll" {
		t.Errorf("RedirectTarget = %q", got)
	}
	if got := RedirectTarget(errors.New("plain")); got != "" {
		t.Errorf("RedirectTarget(plain) = %q", got)
	}
	if IsUnauthorized(errors.New("plain")) || IsNotEnrolled(nil) {
		t.Error("untyped errors carry no kind")
	}
}
