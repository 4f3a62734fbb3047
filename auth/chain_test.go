package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jonwraymond/customs/observe"
)

func TestChain_FirstSuccessWins(t *testing.T) {
	var ran []string
	track := func(name string, id Identity, err error) *StrategyFunc {
		return NewStrategyFunc(name, nil, func(context.Context, *Request, Identity) (*AuthResult, error) {
			ran = append(ran, name)
			if err != nil {
				return AuthFailure(err, name), nil
			}
			return AuthSuccess(id, name), nil
		})
	}

	c := NewChain(
		track("local", nil, ErrMissingCredentials),
		track("basic", Identity{"id": "bob"}, nil),
		track("jwt", Identity{"id": "never"}, nil),
	)
	if got := strings.Join(c.Names(), ","); got != "local,basic,jwt" || c.Len() != 3 {
		t.Errorf("Names() = %q, Len() = %d", got, c.Len())
	}

	out := c.Authenticate(context.Background(), bodyRequest(nil), nil)
	if !out.Authenticated() || out.Strategy != "basic" || out.Identity.ID() != "bob" {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Err() != nil {
		t.Errorf("Err() = %v, want nil", out.Err())
	}
	if strings.Join(ran, ",") != "local,basic" {
		t.Errorf("ran = %v, want [local basic]", ran)
	}
	if len(out.Attempts) != 1 || out.Attempts[0].Strategy != "local" {
		t.Errorf("Attempts = %+v", out.Attempts)
	}
}

func TestChain_SurfacesFirstFailure(t *testing.T) {
	c := NewChain(
		staticStrategy("local", nil, ErrMissingCredentials),
		staticStrategy("jwt", nil, ErrInvalidToken),
	)
	out := c.Authenticate(context.Background(), bodyRequest(nil), nil)
	if out.Authenticated() {
		t.Fatal("outcome authenticated")
	}
	if len(out.Attempts) != 2 {
		t.Fatalf("Attempts = %+v, want 2", out.Attempts)
	}
	if !errors.Is(out.Err(), ErrMissingCredentials) {
		t.Errorf("Err() = %v, want the first strategy's error", out.Err())
	}
	if !IsUnauthorized(out.Err()) {
		t.Errorf("Err() kind = %v, want unauthorized", out.Err())
	}
}

func TestChain_NormalizesResults(t *testing.T) {
	boom := errors.New("db down")
	tests := []struct {
		name     string
		auth     AuthenticateFunc
		wantErr  error
		wantKind Kind
		kinded   bool
	}{
		{
			name:     "nil result",
			auth:     func(context.Context, *Request, Identity) (*AuthResult, error) { return nil, nil },
			wantKind: KindMisconfiguration,
			kinded:   true,
		},
		{
			name: "success without identity",
			auth: func(context.Context, *Request, Identity) (*AuthResult, error) {
				return &AuthResult{Authenticated: true}, nil
			},
			wantErr:  ErrInvalidCredentials,
			wantKind: KindUnauthorized,
			kinded:   true,
		},
		{
			name: "unkinded failure",
			auth: func(context.Context, *Request, Identity) (*AuthResult, error) {
				return &AuthResult{Error: ErrMalformedCredentials}, nil
			},
			wantErr:  ErrMalformedCredentials,
			wantKind: KindUnauthorized,
			kinded:   true,
		},
		{
			name: "internal error",
			auth: func(context.Context, *Request, Identity) (*AuthResult, error) {
				return nil, boom
			},
			wantErr: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewChain(NewStrategyFunc("s", nil, tt.auth)).Authenticate(context.Background(), bodyRequest(nil), nil)
			err := out.Err()
			if out.Authenticated() || err == nil {
				t.Fatalf("outcome = %+v", out)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Err() = %v, want %v", err, tt.wantErr)
			}
			kind, ok := KindOf(err)
			if ok != tt.kinded || (ok && kind != tt.wantKind) {
				t.Errorf("KindOf = %v, %v; want %v, %v", kind, ok, tt.wantKind, tt.kinded)
			}
		})
	}
}

func TestChain_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := NewChain(
		NewStrategyFunc("first", nil, func(context.Context, *Request, Identity) (*AuthResult, error) {
			calls++
			cancel()
			return AuthFailure(ErrInvalidCredentials, "first"), nil
		}),
		NewStrategyFunc("second", nil, func(context.Context, *Request, Identity) (*AuthResult, error) {
			calls++
			return AuthSuccess(Identity{"id": "x"}, "second"), nil
		}),
	)

	out := c.Authenticate(ctx, bodyRequest(nil), nil)
	if out.Authenticated() {
		t.Fatal("chain continued after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	cancelled := NewChain(staticStrategy("s", Identity{"id": "x"}, nil)).Authenticate(ctx, bodyRequest(nil), nil)
	if !errors.Is(cancelled.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", cancelled.Err())
	}
}

func TestChain_Empty(t *testing.T) {
	out := NewChain().Authenticate(context.Background(), bodyRequest(nil), nil)
	if !errors.Is(out.Err(), ErrNoStrategies) {
		t.Errorf("Err() = %v, want ErrNoStrategies", out.Err())
	}
	if k, _ := KindOf(out.Err()); k != KindMisconfiguration {
		t.Errorf("kind = %v, want misconfiguration", k)
	}
}

func TestChain_PassesPrior(t *testing.T) {
	var seen Identity
	c := NewChain(NewStrategyFunc("totp", nil, func(_ context.Context, _ *Request, prior Identity) (*AuthResult, error) {
		seen = prior
		return AuthSuccess(prior, "totp"), nil
	}))
	prior := Identity{"id": "alice"}
	out := c.Authenticate(context.Background(), bodyRequest(nil), prior)
	if !out.Authenticated() || !seen.Equal(prior) {
		t.Errorf("prior = %v, outcome = %+v", seen, out)
	}
}

func TestChain_WithMiddlewareLogsAttempts(t *testing.T) {
	var logs bytes.Buffer
	mw := observe.NewMiddleware(nil, nil, observe.NewLoggerWithWriter("debug", &logs))

	c := NewChain(
		staticStrategy("local", nil, ErrMissingCredentials),
		staticStrategy("basic", Identity{"id": "bob"}, nil),
	)
	wrapped := c.WithMiddleware(mw, "local,basic")
	if c.middleware != nil {
		t.Error("WithMiddleware modified the original chain")
	}

	out := wrapped.Authenticate(context.Background(), bodyRequest(nil), nil)
	if !out.Authenticated() {
		t.Fatalf("outcome = %+v", out)
	}

	text := logs.String()
	for _, want := range []string{"auth attempt failed", "auth attempt succeeded", `"guard":"local,basic"`, `"strategy":"basic"`} {
		if !strings.Contains(text, want) {
			t.Errorf("logs missing %q:\n%s", want, text)
		}
	}
}
