package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/jonwraymond/customs/observe"
	"github.com/jonwraymond/customs/session"
)

// IdentityHandler is a handler that receives the authenticated identity.
type IdentityHandler interface {
	ServeIdentity(w http.ResponseWriter, r *http.Request, id Identity)
}

// IdentityHandlerFunc adapts a function to IdentityHandler.
type IdentityHandlerFunc func(w http.ResponseWriter, r *http.Request, id Identity)

// ServeIdentity calls f.
func (f IdentityHandlerFunc) ServeIdentity(w http.ResponseWriter, r *http.Request, id Identity) {
	f(w, r, id)
}

// Guard protects handlers with an ordered set of strategies, optionally
// followed by a second factor.
type Guard struct {
	engine   *Engine
	label    string
	first    *Chain
	second   *Chain
	redirect string
}

// Protect builds a guard that tries the named strategies in order.
func (e *Engine) Protect(names ...string) (*Guard, error) {
	strategies, err := e.registry.Resolve(names...)
	if err != nil {
		return nil, Misconfigured(err)
	}
	for _, s := range strategies {
		if requiresPrior(s) {
			return nil, Misconfigured(errors.New("auth: " + s.Name() + " can only be used as a second factor"))
		}
	}
	label := strings.Join(names, ",")
	return &Guard{
		engine: e,
		label:  label,
		first:  e.chain(strategies, label, 1),
	}, nil
}

// MustProtect is Protect that panics on error.
func (e *Engine) MustProtect(names ...string) *Guard {
	g, err := e.Protect(names...)
	if err != nil {
		panic(err)
	}
	return g
}

func (e *Engine) chain(strategies []Strategy, label string, stage int) *Chain {
	c := NewChain(strategies...)
	c.stage = stage
	if e.config.Middleware != nil {
		c = c.WithMiddleware(e.config.Middleware, label)
	}
	return c
}

// RedirectUnauthorized returns a copy of the guard that sends clients
// failing with an Unauthorized error to target, overriding the engine-wide
// UnauthorizedRedirect. Failures that carry their own target, such as an
// OAuth flow start or MFA enrollment, keep it.
func (g *Guard) RedirectUnauthorized(target string) *Guard {
	c := *g
	c.redirect = target
	return &c
}

func (g *Guard) redirected(err error) error {
	if g.redirect == "" || !IsUnauthorized(err) || RedirectTarget(err) != "" {
		return err
	}
	var ae *Error
	if errors.As(err, &ae) {
		c := *ae
		c.Target = g.redirect
		return &c
	}
	return UnauthorizedRedirect(err, g.redirect)
}

// Strategies returns the names of the guard's first-factor strategies.
func (g *Guard) Strategies() []string {
	return g.first.Names()
}

// Wrap protects h. The identity is available through IdentityFromContext.
func (g *Guard) Wrap(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.serve(w, r, func(w http.ResponseWriter, r *http.Request, _ Identity) {
			h.ServeHTTP(w, r)
		})
	})
}

// WrapFunc protects f.
func (g *Guard) WrapFunc(f http.HandlerFunc) http.Handler {
	return g.Wrap(f)
}

// WrapIdentity protects h and passes it the identity.
func (g *Guard) WrapIdentity(h IdentityHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.serve(w, r, h.ServeIdentity)
	})
}

func (g *Guard) serve(w http.ResponseWriter, r *http.Request, next IdentityHandlerFunc) {
	ctx := r.Context()

	// An outer guard already authenticated this request. Its factors must
	// still cover this guard's second factor; an identity without completed
	// factors is a pending one.
	if id, factors := IdentityFromContext(ctx), FactorsFromContext(ctx); id != nil && len(factors) > 0 && g.satisfiedBy(factors) {
		next(w, r, id)
		return
	}

	sess := g.engine.loadSession(r)
	id, strategy, factors, err := g.authenticate(w, r, sess)
	if ctx.Err() != nil {
		// The client is gone.
		return
	}
	if err != nil {
		g.engine.fail(w, r, nil, err)
		return
	}

	g.engine.logger.Debug(ctx, "authenticated",
		observe.Field{Key: "path", Value: r.URL.Path},
		observe.Field{Key: "strategy", Value: strategy},
		observe.Field{Key: "principal", Value: id.ID()},
	)
	ctx = WithFactors(WithStrategy(WithIdentity(withSession(ctx, sess), id), strategy), factors)
	next(w, r.WithContext(ctx), id)
}

// authenticate resolves the request identity: from the session when it
// satisfies the guard, otherwise by running the strategies. It returns the
// identity, the strategy that produced it and the completed factors.
func (g *Guard) authenticate(w http.ResponseWriter, r *http.Request, sess *session.Session) (Identity, string, []string, error) {
	ctx := r.Context()
	e := g.engine

	if sess != nil && sess.Authenticated && g.satisfiedBy(sess.Factors) {
		id, err := e.restore(ctx, sess)
		if err == nil && id != nil {
			e.saveSession(ctx, w, sess)
			return id, sess.Strategy, sess.Factors, nil
		}
		e.logger.Warn(ctx, "discarding unrestorable session",
			observe.Field{Key: "strategy", Value: sess.Strategy},
			observe.Field{Key: "error", Value: errString(err)},
		)
		sess.ClearIdentity()
	}

	req := g.request(r, sess)
	if g.second != nil {
		return g.authenticateMFA(ctx, w, r, req, sess)
	}

	out := g.first.Authenticate(ctx, req, nil)
	if !out.Authenticated() {
		g.logFailure(ctx, r, out)
		err := g.redirected(out.Err())
		g.rememberNext(ctx, w, r, sess, err)
		return nil, "", nil, err
	}
	factors := []string{out.Strategy}
	if err := e.store(ctx, w, sess, out.Identity, out.Strategy, factors, true); err != nil {
		return nil, "", nil, err
	}
	return out.Identity, out.Strategy, factors, nil
}

// request builds the strategy view of r, bound to the client's session.
func (g *Guard) request(r *http.Request, sess *session.Session) *Request {
	req := NewRequest(r)
	if sess != nil {
		req.Metadata = map[string]any{MetadataBinding: sess.ID()}
	}
	return req
}

// satisfiedBy reports whether completed factors meet the guard's
// requirement.
func (g *Guard) satisfiedBy(factors []string) bool {
	if g.second == nil {
		return true
	}
	return slices.Contains(factors, g.SecondFactor())
}

func (g *Guard) logFailure(ctx context.Context, r *http.Request, out *Outcome) {
	fields := []observe.Field{
		{Key: "path", Value: r.URL.Path},
		{Key: "guard", Value: g.label},
		{Key: "error", Value: errString(out.Err())},
	}
	if len(out.Attempts) > 0 {
		fields = append(fields, observe.Field{Key: "strategy", Value: out.Attempts[0].Strategy})
	}
	g.engine.logger.Warn(ctx, "authentication failed", fields...)
}

// rememberNext saves the session before redirecting to a login, provider
// or enrollment page, so flows that continue on return find the same
// session. For GET requests the requested URL is remembered too.
func (g *Guard) rememberNext(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	if sess == nil || g.engine.redirectTarget(err) == "" {
		return
	}
	if r.Method == http.MethodGet {
		sess.Next = r.URL.RequestURI()
	}
	g.engine.saveSession(ctx, w, sess)
}

// redirectTarget returns where a failure should send the client, if anywhere.
func (e *Engine) redirectTarget(err error) string {
	if target := RedirectTarget(err); target != "" {
		return target
	}
	if IsUnauthorized(err) {
		return e.config.UnauthorizedRedirect
	}
	return ""
}

// fail writes the failure response: a 303 redirect when there is a
// target, otherwise a JSON error with the status of the error's kind.
func (e *Engine) fail(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	if target := e.redirectTarget(err); target != "" {
		if sess != nil && r.Method == http.MethodGet {
			sess.Next = r.URL.RequestURI()
			e.saveSession(r.Context(), w, sess)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	var ae *Error
	if errors.As(err, &ae) && ae.Challenge != "" {
		w.Header().Set("WWW-Authenticate", ae.Challenge)
	}

	status := StatusCode(err)
	body := errorBody{}
	if kind, ok := KindOf(err); ok {
		body.Error.Type = kind.String()
		body.Error.Message = err.Error()
	} else {
		e.logger.Error(r.Context(), "authentication error",
			observe.Field{Key: "path", Value: r.URL.Path},
			observe.Field{Key: "error", Value: errString(err)},
		)
		body.Error.Type = "server_error"
		body.Error.Message = http.StatusText(status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
