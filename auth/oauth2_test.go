package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/jonwraymond/customs/resilience"
)

// fakeProvider accepts the code "good" and returns a fixed profile.
type fakeProvider struct {
	exchanges atomic.Int32
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.example/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (Identity, error) {
	p.exchanges.Add(1)
	if code != "good" {
		return nil, errors.New("bad code")
	}
	return Identity{"login": "octocat", "id": float64(42)}, nil
}

// Ensure fakeProvider implements OAuthProvider
var _ OAuthProvider = (*fakeProvider)(nil)

func stateFrom(t *testing.T, target string) string {
	t.Helper()
	u, err := url.Parse(target)
	if err != nil {
		t.Fatalf("parse redirect target: %v", err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatalf("redirect target %q has no state", target)
	}
	return state
}

func callback(code, state string) *Request {
	q := url.Values{}
	if code != "" {
		q.Set("code", code)
	}
	if state != "" {
		q.Set("state", state)
	}
	return queryRequest(q)
}

func TestOAuthStrategy_StartsFlowWithoutCode(t *testing.T) {
	s := NewOAuthStrategy(OAuthConfig{}, &fakeProvider{})
	if s.Name() != "oauth2" {
		t.Errorf("Name() = %q, want oauth2", s.Name())
	}

	res, err := s.Authenticate(context.Background(), queryRequest(nil), nil)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if res.Authenticated {
		t.Fatal("Authenticate() succeeded without a code")
	}
	if !errors.Is(res.Error, ErrMissingCredentials) {
		t.Errorf("Error = %v, want ErrMissingCredentials", res.Error)
	}
	target := RedirectTarget(res.Error)
	if !strings.HasPrefix(target, "https://idp.example/authorize?state=") {
		t.Errorf("RedirectTarget = %q", target)
	}
	stateFrom(t, target)
}

func TestOAuthStrategy_Callback(t *testing.T) {
	provider := &fakeProvider{}
	s := NewOAuthStrategy(OAuthConfig{Name: "github"}, provider)
	s.Resolve = func(_ context.Context, raw Identity) (Identity, error) {
		return Identity{"id": "gh:" + raw.String("login")}, nil
	}
	ctx := context.Background()

	target, err := s.Begin(ctx, "")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	state := stateFrom(t, target)

	res, err := s.Authenticate(ctx, callback("good", state), nil)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !res.Authenticated {
		t.Fatalf("Authenticate() failed: %v", res.Error)
	}
	if res.Identity.ID() != "gh:octocat" || res.Method != "github" {
		t.Errorf("result = %+v", res)
	}

	// A state value is single use.
	res, err = s.Authenticate(ctx, callback("good", state), nil)
	if err != nil {
		t.Fatalf("replay error = %v", err)
	}
	if res.Authenticated || !errors.Is(res.Error, ErrInvalidState) {
		t.Errorf("replay result = %+v, want ErrInvalidState", res)
	}
	if got := provider.exchanges.Load(); got != 1 {
		t.Errorf("exchanges = %d, want 1", got)
	}
}

func TestOAuthStrategy_CallbackFailures(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		state   func(t *testing.T, s *OAuthStrategy) string
		wantErr error
	}{
		{
			name:    "missing state",
			code:    "good",
			state:   func(*testing.T, *OAuthStrategy) string { return "" },
			wantErr: ErrInvalidState,
		},
		{
			name:    "unknown state",
			code:    "good",
			state:   func(*testing.T, *OAuthStrategy) string { return "forged" },
			wantErr: ErrInvalidState,
		},
		{
			name: "rejected code",
			code: "bad",
			state: func(t *testing.T, s *OAuthStrategy) string {
				target, err := s.Begin(context.Background(), "")
				if err != nil {
					t.Fatalf("Begin() error = %v", err)
				}
				return stateFrom(t, target)
			},
			wantErr: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewOAuthStrategy(OAuthConfig{}, &fakeProvider{})
			res, err := s.Authenticate(context.Background(), callback(tt.code, tt.state(t, s)), nil)
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if res.Authenticated {
				t.Fatal("Authenticate() succeeded")
			}
			if !errors.Is(res.Error, tt.wantErr) {
				t.Errorf("Error = %v, want %v", res.Error, tt.wantErr)
			}
			if !IsUnauthorized(res.Error) {
				t.Errorf("Error kind = %v, want unauthorized", res.Error)
			}
		})
	}
}

func TestOAuthStrategy_StateBoundToClient(t *testing.T) {
	provider := &fakeProvider{}
	s := NewOAuthStrategy(OAuthConfig{}, provider)
	ctx := context.Background()

	// The flow starts on one client.
	started := queryRequest(nil)
	started.Metadata = map[string]any{MetadataBinding: "session-a"}
	res, err := s.Authenticate(ctx, started, nil)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	state := stateFrom(t, RedirectTarget(res.Error))

	// Another client presents the callback.
	other := callback("good", state)
	other.Metadata = map[string]any{MetadataBinding: "session-b"}
	res, err = s.Authenticate(ctx, other, nil)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if res.Authenticated || !errors.Is(res.Error, ErrInvalidState) {
		t.Errorf("cross-client result = %+v, want ErrInvalidState", res)
	}
	if got := provider.exchanges.Load(); got != 0 {
		t.Errorf("exchanges = %d, want 0", got)
	}

	// The state was consumed by the failed attempt.
	same := callback("good", state)
	same.Metadata = map[string]any{MetadataBinding: "session-a"}
	res, err = s.Authenticate(ctx, same, nil)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if res.Authenticated {
		t.Error("consumed state authenticated")
	}

	target, err := s.Begin(ctx, "session-a")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	same = callback("good", stateFrom(t, target))
	same.Metadata = map[string]any{MetadataBinding: "session-a"}
	res, err = s.Authenticate(ctx, same, nil)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !res.Authenticated {
		t.Errorf("same-client callback failed: %v", res.Error)
	}
}

func TestOAuthStrategy_StateExpires(t *testing.T) {
	s := NewOAuthStrategy(OAuthConfig{StateTTL: 20 * time.Millisecond}, &fakeProvider{})
	target, err := s.Begin(context.Background(), "")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	time.Sleep(40 * time.Millisecond)

	res, err := s.Authenticate(context.Background(), callback("good", stateFrom(t, target)), nil)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !errors.Is(res.Error, ErrInvalidState) {
		t.Errorf("Error = %v, want ErrInvalidState", res.Error)
	}
}

// idpServer is a token endpoint plus a profile endpoint that fails the
// first profileFailures requests with 502.
type idpServer struct {
	*httptest.Server
	profileHits     atomic.Int32
	profileFailures int32
}

func newIDPServer(t *testing.T, profileFailures int32) *idpServer {
	t.Helper()
	s := &idpServer{profileFailures: profileFailures}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "good" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-123","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if s.profileHits.Add(1) <= s.profileFailures {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"login": "octocat", "email": "octo@example.com"})
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *idpServer) provider(executor *resilience.Executor) *OAuth2Provider {
	return NewOAuth2Provider(OAuth2ProviderConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://app.example/callback",
		Scopes:       []string{"read:user"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  s.URL + "/authorize",
			TokenURL: s.URL + "/token",
		},
		ProfileURL: s.URL + "/user",
		HTTPClient: s.Client(),
		Executor:   executor,
	})
}

func TestOAuth2Provider_AuthCodeURL(t *testing.T) {
	srv := newIDPServer(t, 0)
	u, err := url.Parse(srv.provider(nil).AuthCodeURL("xyz"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "xyz" || q.Get("client_id") != "client" || q.Get("redirect_uri") != "https://app.example/callback" {
		t.Errorf("AuthCodeURL query = %v", q)
	}
}

func TestOAuth2Provider_Exchange(t *testing.T) {
	srv := newIDPServer(t, 0)
	profile, err := srv.provider(nil).Exchange(context.Background(), "good")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if profile.String("login") != "octocat" || profile.ID() != "octo@example.com" {
		t.Errorf("profile = %v", profile)
	}
}

func TestOAuth2Provider_ExchangeRejected(t *testing.T) {
	srv := newIDPServer(t, 0)
	_, err := srv.provider(nil).Exchange(context.Background(), "bad")
	if err == nil {
		t.Fatal("Exchange() error = nil")
	}
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		t.Errorf("Exchange() error = %v, want *oauth2.RetrieveError", err)
	}
}

func TestOAuth2Provider_ProfileStatus(t *testing.T) {
	srv := newIDPServer(t, 1)
	_, err := srv.provider(nil).Exchange(context.Background(), "good")
	var se *resilience.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusBadGateway {
		t.Fatalf("Exchange() error = %v, want StatusError 502", err)
	}
}

func TestOAuth2Provider_ExecutorRetriesProfile(t *testing.T) {
	srv := newIDPServer(t, 2)
	executor := resilience.NewExecutor(
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})),
		resilience.WithTimeout(time.Second),
	)

	profile, err := srv.provider(executor).Exchange(context.Background(), "good")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if profile.String("login") != "octocat" {
		t.Errorf("profile = %v", profile)
	}
	if got := srv.profileHits.Load(); got != 3 {
		t.Errorf("profile hits = %d, want 3", got)
	}
}

func TestNewGitHubProvider_Defaults(t *testing.T) {
	p := NewGitHubProvider(OAuth2ProviderConfig{ClientID: "id"})
	if p.config.ProfileURL != GitHubProfileURL {
		t.Errorf("ProfileURL = %q", p.config.ProfileURL)
	}
	if !strings.HasPrefix(p.AuthCodeURL("s"), "https://github.com/login/oauth/authorize?") {
		t.Errorf("AuthCodeURL = %q", p.AuthCodeURL("s"))
	}
	if len(p.config.Scopes) != 2 {
		t.Errorf("Scopes = %v", p.config.Scopes)
	}
}
