package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jonwraymond/customs/observe"
	"github.com/jonwraymond/customs/session"
)

// ProtectMFA builds a guard that requires one of the first strategies and
// then the second. The second strategy receives the first factor's
// identity as its prior.
//
// In session mode, a first factor that succeeds while the second fails is
// remembered as pending: the client can retry the second factor without
// resending the first. A pending session never satisfies a guard.
func (e *Engine) ProtectMFA(first []string, second string) (*Guard, error) {
	g, err := e.Protect(first...)
	if err != nil {
		return nil, err
	}
	if second == "" {
		return nil, Misconfigured(errors.New("auth: second factor is required"))
	}
	strategies, err := e.registry.Resolve(second)
	if err != nil {
		return nil, Misconfigured(err)
	}
	g.label = strings.Join(first, ",") + "+" + second
	g.first = e.chain(g.first.strategies, g.label, 1)
	g.second = e.chain(strategies, g.label, 2)
	return g, nil
}

// MustProtectMFA is ProtectMFA that panics on error.
func (e *Engine) MustProtectMFA(first []string, second string) *Guard {
	g, err := e.ProtectMFA(first, second)
	if err != nil {
		panic(err)
	}
	return g
}

// SecondFactor returns the name of the guard's second factor, or empty.
func (g *Guard) SecondFactor() string {
	if g.second == nil {
		return ""
	}
	return g.second.strategies[0].Name()
}

// authenticateMFA runs both stages. Stage 1 comes from an outer guard's
// identity, a pending session or the first chain, in that order.
func (g *Guard) authenticateMFA(ctx context.Context, w http.ResponseWriter, r *http.Request, req *Request, sess *session.Session) (Identity, string, []string, error) {
	e := g.engine
	secondName := g.SecondFactor()

	var (
		stage1   Identity
		producer string
		factors  []string
		fresh    bool
	)

	if id := IdentityFromContext(ctx); id != nil {
		stage1, producer, factors = id, StrategyFromContext(ctx), FactorsFromContext(ctx)
	}

	// A pending or single-factor session already carries stage 1.
	if stage1 == nil && sess != nil && sess.Identity != nil && !sess.HasFactor(secondName) {
		id, err := e.restore(ctx, sess)
		if err == nil && id != nil {
			stage1, producer, factors = id, sess.Strategy, sess.Factors
		}
	}

	if stage1 == nil {
		out := g.first.Authenticate(ctx, req, nil)
		if !out.Authenticated() {
			g.logFailure(ctx, r, out)
			err := g.redirected(out.Err())
			g.rememberNext(ctx, w, r, sess, err)
			return nil, "", nil, err
		}
		stage1, producer, factors, fresh = out.Identity, out.Strategy, []string{out.Strategy}, true
	}

	out := g.second.Authenticate(ctx, req, stage1)
	if !out.Authenticated() {
		g.logFailure(ctx, r, out)
		if fresh {
			if err := e.store(ctx, w, sess, stage1, producer, factors, false); err != nil {
				return nil, "", nil, err
			}
		}
		err := g.redirected(out.Err())
		g.rememberNext(ctx, w, r, sess, err)
		return nil, "", nil, err
	}

	e.logger.Debug(ctx, "second factor passed",
		observe.Field{Key: "strategy", Value: out.Strategy},
		observe.Field{Key: "principal", Value: stage1.ID()},
	)
	all := append(append([]string(nil), factors...), out.Strategy)
	if err := e.store(ctx, w, sess, out.Identity, producer, all, true); err != nil {
		return nil, "", nil, err
	}
	return out.Identity, producer, all, nil
}
