package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonwraymond/customs/observe"
	"github.com/jonwraymond/customs/session"
)

// Mode selects whether authentication state persists between requests.
type Mode int

const (
	// ModeSession stores the authenticated identity in a session.
	ModeSession Mode = iota
	// ModeStateless authenticates every request from its credentials.
	ModeStateless
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeSession:
		return "session"
	case ModeStateless:
		return "stateless"
	default:
		return "unknown"
	}
}

// ParseMode parses "session" or "stateless".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "session", "":
		return ModeSession, nil
	case "stateless":
		return ModeStateless, nil
	default:
		return 0, fmt.Errorf("auth: unknown mode %q", s)
	}
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Mode selects session or stateless operation.
	// Default: ModeSession
	Mode Mode

	// Sessions manages session records. Required in ModeSession.
	Sessions *session.Manager

	// UnauthorizedRedirect is where unauthenticated clients are sent
	// instead of receiving a 401. Optional.
	UnauthorizedRedirect string

	// Logger receives authentication events.
	// Default: a no-op logger
	Logger observe.Logger

	// Middleware reports each strategy attempt. Optional.
	Middleware *observe.Middleware

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// Engine binds registered strategies to HTTP handlers.
//
// Contract:
//   - Concurrency: safe for concurrent use once constructed.
//   - Setup errors (unknown strategy names, missing session manager) are
//     returned when guards are built, never while serving.
type Engine struct {
	registry *Registry
	config   EngineConfig
	logger   observe.Logger
}

// NewEngine creates an engine over registry.
func NewEngine(registry *Registry, config EngineConfig) (*Engine, error) {
	if registry == nil {
		return nil, Misconfigured(errors.New("auth: registry is required"))
	}
	if config.Mode == ModeSession && config.Sessions == nil {
		return nil, Misconfigured(errors.New("auth: session mode requires a session manager"))
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Engine{registry: registry, config: config, logger: logger}, nil
}

// Registry returns the engine's strategy registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Mode returns the engine mode.
func (e *Engine) Mode() Mode {
	return e.config.Mode
}

func (e *Engine) sessions() *session.Manager {
	if e.config.Mode != ModeSession {
		return nil
	}
	return e.config.Sessions
}

// loadSession returns the request's session, or nil in stateless mode.
// A session already loaded by a guard for this request is reused.
func (e *Engine) loadSession(r *http.Request) *session.Session {
	m := e.sessions()
	if m == nil {
		return nil
	}
	if sess := sessionFromContext(r.Context()); sess != nil {
		return sess
	}
	sess, err := m.Load(r)
	if err != nil {
		e.logger.Error(r.Context(), "session load failed",
			observe.Field{Key: "path", Value: r.URL.Path},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
	return sess
}

// saveSession persists sess unless the request has been cancelled.
func (e *Engine) saveSession(ctx context.Context, w http.ResponseWriter, sess *session.Session) {
	if sess == nil || ctx.Err() != nil {
		return
	}
	if err := e.config.Sessions.Save(ctx, w, sess); err != nil {
		e.logger.Error(ctx, "session save failed", observe.Field{Key: "error", Value: err.Error()})
	}
}

// restore deserializes the identity held by sess with the hooks of the
// strategy that produced it.
func (e *Engine) restore(ctx context.Context, sess *session.Session) (Identity, error) {
	if sess.Identity == nil {
		return nil, nil
	}
	s, ok := e.registry.Get(sess.Strategy)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, sess.Strategy)
	}
	return s.DeserializeIdentity(ctx, Identity(sess.Identity))
}

// store serializes id with the producing strategy's hooks and writes it to
// sess. A fresh login rotates the session ID.
func (e *Engine) store(ctx context.Context, w http.ResponseWriter, sess *session.Session, id Identity, strategy string, factors []string, authenticated bool) error {
	if sess == nil || ctx.Err() != nil {
		return nil
	}
	s, ok := e.registry.Get(strategy)
	if !ok {
		return Misconfigured(fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy))
	}
	data, err := s.SerializeIdentity(ctx, id)
	if err != nil {
		return err
	}

	if !sess.Authenticated {
		e.config.Sessions.Renew(sess)
	}
	sess.SetIdentity(map[string]any(data), strategy, factors, authenticated)
	sess.Permanent = true
	e.saveSession(ctx, w, sess)
	return nil
}

// Establish logs id in explicitly, as if strategy had authenticated it.
// Use it after registration or when a handler authenticates by other means.
// In stateless mode it only returns the request with the identity attached.
func (e *Engine) Establish(w http.ResponseWriter, r *http.Request, id Identity, strategy string) (*http.Request, error) {
	if _, ok := e.registry.Get(strategy); !ok {
		return r, Misconfigured(fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy))
	}
	ctx := r.Context()
	sess := e.loadSession(r)
	if sess != nil {
		if err := e.store(ctx, w, sess, id, strategy, []string{strategy}, true); err != nil {
			return r, err
		}
	}
	ctx = WithFactors(WithStrategy(WithIdentity(withSession(ctx, sess), id), strategy), []string{strategy})
	return r.WithContext(ctx), nil
}

// Logout clears the session.
func (e *Engine) Logout(w http.ResponseWriter, r *http.Request) error {
	m := e.sessions()
	if m == nil {
		return nil
	}
	return m.Destroy(r.Context(), w, e.loadSession(r))
}

// IsAuthenticated reports whether r carries an identity or an
// authenticated session. It never runs strategies.
func (e *Engine) IsAuthenticated(r *http.Request) bool {
	if IdentityFromContext(r.Context()) != nil {
		return true
	}
	sess := e.loadSession(r)
	return sess != nil && sess.Authenticated && sess.Identity != nil
}

// EnsureAuthenticated admits only requests with an authenticated session.
// Unlike a Guard it never runs strategies.
func (e *Engine) EnsureAuthenticated(next http.Handler) http.Handler {
	return e.ensure(next, false)
}

// EnsureIdentified is EnsureAuthenticated that also admits a pending
// session, one whose first factor passed while a second is outstanding.
// Enrollment pages for the second factor sit behind it.
func (e *Engine) EnsureIdentified(next http.Handler) http.Handler {
	return e.ensure(next, true)
}

func (e *Engine) ensure(next http.Handler, pending bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if IdentityFromContext(ctx) != nil {
			next.ServeHTTP(w, r)
			return
		}

		sess := e.loadSession(r)
		if sess != nil && sess.Identity != nil && (sess.Authenticated || pending) {
			id, err := e.restore(ctx, sess)
			if err == nil && id != nil {
				e.saveSession(ctx, w, sess)
				ctx = WithStrategy(WithIdentity(withSession(ctx, sess), id), sess.Strategy)
				if sess.Authenticated {
					ctx = WithFactors(ctx, sess.Factors)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		e.fail(w, r, sess, Unauthorized(ErrMissingCredentials))
	})
}

// NextURL returns the URL remembered when an unauthenticated client was
// redirected, clearing it, or fallback when there is none.
func (e *Engine) NextURL(w http.ResponseWriter, r *http.Request, fallback string) string {
	sess := e.loadSession(r)
	if sess == nil || sess.Next == "" {
		return fallback
	}
	next := sess.Next
	sess.Next = ""
	e.saveSession(r.Context(), w, sess)
	return next
}
