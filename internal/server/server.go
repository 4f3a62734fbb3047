// Package server assembles the customs example application from its
// configuration: user database, sessions, strategies, guards, health and
// metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2"

	"github.com/jonwraymond/customs/auth"
	"github.com/jonwraymond/customs/cache"
	"github.com/jonwraymond/customs/config"
	"github.com/jonwraymond/customs/health"
	"github.com/jonwraymond/customs/internal/userstore"
	"github.com/jonwraymond/customs/observe"
	"github.com/jonwraymond/customs/resilience"
	"github.com/jonwraymond/customs/session"
)

// Options tune construction. Zero values are production defaults.
type Options struct {
	// BcryptCost overrides the password hashing cost.
	BcryptCost int

	// OAuthProviders replaces the providers built from configuration,
	// keyed by strategy name.
	OAuthProviders map[string]auth.OAuthProvider
}

// Server is the assembled application.
type Server struct {
	config   *config.Config
	observer observe.Observer
	logger   observe.Logger
	users    *userstore.Store
	sessions cache.Cache
	codec    *auth.TokenCodec
	engine   *auth.Engine
	health   *health.Aggregator
	identity *cache.Memoizer
	metrics  *prometheus.Registry
	router   *httprouter.Router
}

// New builds the application described by cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *Server, err error) {
	s := &Server{config: cfg, health: health.NewAggregator(), router: httprouter.New()}
	defer func() {
		if err != nil {
			_ = s.Close(context.WithoutCancel(ctx))
		}
	}()

	obsCfg := cfg.Observability
	if obsCfg.Metrics.Enabled && obsCfg.Metrics.Exporter == "prometheus" {
		s.metrics = prometheus.NewRegistry()
		obsCfg.Metrics.Registerer = s.metrics
	}
	if s.observer, err = observe.NewObserver(ctx, obsCfg); err != nil {
		return nil, err
	}
	s.logger = s.observer.Logger()

	if s.users, err = userstore.Open(ctx, cfg.Users.Database, userstore.Options{BcryptCost: opts.BcryptCost}); err != nil {
		return nil, err
	}
	s.health.Register("users", health.NewPingChecker("users", s.users))

	if s.sessions, err = newSessionCache(cfg.Session); err != nil {
		return nil, err
	}
	sessionStore := session.NewStore(s.sessions)
	s.health.Register("sessions", health.NewPingChecker("sessions", sessionStore))
	if sizer, ok := s.sessions.(health.Sizer); ok {
		s.health.Register("session_cache", health.NewCapacityChecker("session_cache", sizer,
			health.CapacityCheckerConfig{MaxEntries: cfg.Session.MaxEntries}))
	}

	var jwks *auth.JWKSKeyProvider
	if cfg.Token.JWKSURL != "" {
		jwks = auth.NewJWKSKeyProvider(auth.JWKSConfig{URL: cfg.Token.JWKSURL})
		s.health.Register("jwks", health.NewKeySetChecker("jwks", jwks))
	}
	if cfg.Token.Secret != "" || jwks != nil {
		if s.codec, err = NewTokenCodec(cfg.Token, jwks); err != nil {
			return nil, err
		}
	}

	providers := opts.OAuthProviders
	if providers == nil {
		if providers, err = s.oauthProviders(); err != nil {
			return nil, err
		}
	}

	s.identity = cache.NewMemoizer(cache.NewMemoryCache(cache.DefaultPolicy()), cache.NewDefaultKeyer(), cache.DefaultPolicy(), "identity")
	hooks := make(map[string]auth.Hooks, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		name := strategyName(sc)
		provider := ""
		if sc.Type == string(auth.AuthMethodOAuth2) {
			provider = name
		}
		h := s.users.Hooks(provider)
		h.Deserialize = auth.Memoize(s.identity, h.Deserialize)
		hooks[name] = h
	}

	registry, err := auth.DefaultFactories.BuildRegistry(cfg.Strategies, auth.Dependencies{
		Passwords:      s.users,
		Codec:          s.codec,
		APIKeys:        s.users,
		OAuthProviders: providers,
		OAuthStates:    cache.NewMemoryCache(cache.Policy{MaxTTL: cache.DefaultPolicy().MaxTTL}),
		TOTPSecret:     s.users.TOTPSecret,
		Hooks:          hooks,
	})
	if err != nil {
		return nil, err
	}

	mw, err := observe.MiddlewareFromObserver(s.observer)
	if err != nil {
		return nil, err
	}
	mode, err := auth.ParseMode(cfg.Session.Mode)
	if err != nil {
		return nil, err
	}
	engineCfg := auth.EngineConfig{
		Mode:                 mode,
		UnauthorizedRedirect: cfg.Server.UnauthorizedRedirect,
		Logger:               s.logger,
		Middleware:           mw,
	}
	if mode == auth.ModeSession {
		engineCfg.Sessions = session.NewManager(sessionStore, session.Config{
			CookieName:  cfg.Session.CookieName,
			Secure:      cfg.Session.Secure,
			IdleTimeout: cfg.Session.IdleTimeout,
			Lifetime:    cfg.Session.Lifetime,
		})
	}
	if s.engine, err = auth.NewEngine(registry, engineCfg); err != nil {
		return nil, err
	}

	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewTokenCodec builds the bearer token codec for cfg. keys may be nil.
func NewTokenCodec(cfg config.TokenConfig, keys *auth.JWKSKeyProvider) (*auth.TokenCodec, error) {
	tc := auth.TokenConfig{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
		TTL:       cfg.TTL,
		Leeway:    cfg.Leeway,
	}
	if cfg.Secret != "" {
		tc.SigningKey = []byte(cfg.Secret)
	}
	if keys != nil {
		return auth.NewTokenCodec(tc, keys)
	}
	return auth.NewTokenCodec(tc, nil)
}

func newSessionCache(cfg config.SessionConfig) (cache.Cache, error) {
	policy := cache.SessionPolicy(cfg.Lifetime)
	if cfg.Store == "bigcache" {
		c, err := cache.NewBigCache(policy)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return cache.NewMemoryCache(policy), nil
}

func (s *Server) oauthProviders() (map[string]auth.OAuthProvider, error) {
	providers := make(map[string]auth.OAuthProvider, len(s.config.OAuth.Providers))
	for _, pc := range s.config.OAuth.Providers {
		name := pc.Name
		executor, err := resilience.NewExecutorFromConfig(s.config.OAuth.Resilience, func(from, to resilience.State) {
			s.logger.Warn(context.Background(), "oauth provider circuit changed",
				observe.Field{Key: "provider", Value: name},
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		})
		if err != nil {
			return nil, fmt.Errorf("oauth provider %s: %w", name, err)
		}
		if cb := executor.CircuitBreaker(); cb != nil {
			s.health.Register("oauth_"+name, health.NewCircuitChecker("oauth_"+name, cb))
		}

		pcfg := auth.OAuth2ProviderConfig{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  pc.RedirectURL,
			Scopes:       pc.Scopes,
			ProfileURL:   pc.ProfileURL,
			Executor:     executor,
		}
		if pc.AuthURL != "" {
			pcfg.Endpoint = oauth2.Endpoint{AuthURL: pc.AuthURL, TokenURL: pc.TokenURL}
		}
		if pc.Kind == "generic" {
			providers[name] = auth.NewOAuth2Provider(pcfg)
		} else {
			providers[name] = auth.NewGitHubProvider(pcfg)
		}
	}
	return providers, nil
}

// Handler returns the application router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Engine returns the authentication engine.
func (s *Server) Engine() *auth.Engine {
	return s.engine
}

// Users returns the user database.
func (s *Server) Users() *userstore.Store {
	return s.users
}

// Close releases the database, caches and telemetry providers.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	if s.users != nil {
		errs = append(errs, s.users.Close())
	}
	if c, ok := s.sessions.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if s.observer != nil {
		errs = append(errs, s.observer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func strategyName(sc auth.StrategyConfig) string {
	if sc.Name != "" {
		return sc.Name
	}
	return sc.Type
}
