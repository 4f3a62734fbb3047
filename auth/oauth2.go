package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/jonwraymond/customs/cache"
	"github.com/jonwraymond/customs/resilience"
)

// OAuthProvider is the identity provider side of an authorization code flow.
type OAuthProvider interface {
	// AuthCodeURL returns the provider URL that starts the flow.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for the user's profile.
	Exchange(ctx context.Context, code string) (Identity, error)
}

// OAuth2ProviderConfig configures an OAuth2Provider.
type OAuth2ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint

	// ProfileURL is fetched with the access token to build the profile.
	ProfileURL string

	// HTTPClient is used for token and profile requests.
	// Default: a client with a 10s timeout
	HTTPClient *http.Client

	// Executor guards provider calls (timeouts, retries, circuit breaking).
	// Optional.
	Executor *resilience.Executor
}

// OAuth2Provider implements OAuthProvider with golang.org/x/oauth2 and a
// JSON profile endpoint.
type OAuth2Provider struct {
	config OAuth2ProviderConfig
	oauth  *oauth2.Config
}

// NewOAuth2Provider creates a provider.
func NewOAuth2Provider(config OAuth2ProviderConfig) *OAuth2Provider {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &OAuth2Provider{
		config: config,
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
			Endpoint:     config.Endpoint,
		},
	}
}

// GitHubProfileURL is the GitHub API endpoint for the signed-in user.
const GitHubProfileURL = "https://api.github.com/user"

// NewGitHubProvider creates a provider preconfigured for GitHub.
func NewGitHubProvider(config OAuth2ProviderConfig) *OAuth2Provider {
	if config.Endpoint.AuthURL == "" {
		config.Endpoint = github.Endpoint
	}
	if config.ProfileURL == "" {
		config.ProfileURL = GitHubProfileURL
	}
	if len(config.Scopes) == 0 {
		config.Scopes = []string{"read:user", "user:email"}
	}
	return NewOAuth2Provider(config)
}

// AuthCodeURL returns the provider's authorization URL.
func (p *OAuth2Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades the code for a token and fetches the profile.
func (p *OAuth2Provider) Exchange(ctx context.Context, code string) (Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.config.HTTPClient)

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth2: exchange code: %w", err)
	}

	var profile Identity
	fetch := func(ctx context.Context) error {
		var err error
		profile, err = p.fetchProfile(ctx, tok)
		return err
	}
	if p.config.Executor != nil {
		err = p.config.Executor.Execute(ctx, fetch)
	} else {
		err = fetch(ctx)
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (p *OAuth2Provider) fetchProfile(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.ProfileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("oauth2: create profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth2: fetch profile: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oauth2: fetch profile: %w",
			&resilience.StatusError{Status: resp.StatusCode, URL: p.config.ProfileURL})
	}

	var profile map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("oauth2: decode profile: %w", err)
	}
	return Identity(profile), nil
}

// OAuthConfig configures the OAuth strategy.
type OAuthConfig struct {
	// Name is the registration name.
	// Default: "oauth2"
	Name string

	// StateTTL bounds how long an issued state value stays valid.
	// Default: 10 minutes
	StateTTL time.Duration

	// States stores issued state values.
	// Default: an in-memory cache
	States cache.Cache
}

// OAuthStrategy completes an OAuth2 authorization code flow.
//
// A request without a code fails with a redirect to the provider's
// authorization URL, so guarding the callback route also starts the flow.
// A request with a code must carry a state value issued earlier to the
// same client binding (see MetadataBinding); the code
// is exchanged for the provider profile, which the resolve hook maps to a
// local identity (typically creating the user on first sign-in).
type OAuthStrategy struct {
	Hooks

	config   OAuthConfig
	provider OAuthProvider
}

// NewOAuthStrategy creates an OAuth strategy.
func NewOAuthStrategy(config OAuthConfig, provider OAuthProvider) *OAuthStrategy {
	if config.Name == "" {
		config.Name = string(AuthMethodOAuth2)
	}
	if config.StateTTL == 0 {
		config.StateTTL = 10 * time.Minute
	}
	if config.States == nil {
		config.States = cache.NewMemoryCache(cache.Policy{DefaultTTL: config.StateTTL, MaxTTL: config.StateTTL})
	}
	return &OAuthStrategy{config: config, provider: provider}
}

// Name returns the configured name.
func (s *OAuthStrategy) Name() string {
	return s.config.Name
}

// ExtractCredentials reads the callback code and state.
func (s *OAuthStrategy) ExtractCredentials(req *Request) (Credentials, error) {
	return ExtractFields(req, FieldCode, FieldState), nil
}

// Authenticate handles the provider callback, or starts the flow when no
// code is present.
func (s *OAuthStrategy) Authenticate(ctx context.Context, req *Request, _ Identity) (*AuthResult, error) {
	creds, _ := s.ExtractCredentials(req)

	if !creds.Has(FieldCode) {
		target, err := s.Begin(ctx, req.Binding())
		if err != nil {
			return nil, err
		}
		return AuthFailure(UnauthorizedRedirect(ErrMissingCredentials, target), s.Name()), nil
	}

	state := creds.Get(FieldState)
	key := s.stateKey(state)
	if state == "" {
		return AuthFailure(ErrInvalidState, s.Name()), nil
	}
	bound, ok := s.config.States.Get(ctx, key)
	if !ok {
		return AuthFailure(ErrInvalidState, s.Name()), nil
	}
	_ = s.config.States.Delete(ctx, key)
	if subtle.ConstantTimeCompare(bound, []byte(req.Binding())) != 1 {
		return AuthFailure(ErrInvalidState, s.Name()), nil
	}

	profile, err := s.provider.Exchange(ctx, creds.Get(FieldCode))
	if err != nil {
		return AuthFailure(fmt.Errorf("%w: %w", ErrInvalidCredentials, err), s.Name()), nil
	}
	return resolve(ctx, s, profile)
}

// Begin issues a state value tied to binding and returns the provider
// authorization URL. The callback must present the same binding.
func (s *OAuthStrategy) Begin(ctx context.Context, binding string) (string, error) {
	state := uuid.NewString()
	if err := s.config.States.Set(ctx, s.stateKey(state), []byte(binding), s.config.StateTTL); err != nil {
		return "", fmt.Errorf("oauth2: store state: %w", err)
	}
	return s.provider.AuthCodeURL(state), nil
}

func (s *OAuthStrategy) stateKey(state string) string {
	return "oauth_state:" + s.config.Name + ":" + state
}

// Ensure OAuthStrategy implements Strategy
var _ Strategy = (*OAuthStrategy)(nil)

// Ensure OAuth2Provider implements OAuthProvider
var _ OAuthProvider = (*OAuth2Provider)(nil)
