package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Config configures a Manager.
type Config struct {
	// CookieName is the session cookie name.
	// Default: "customs_session"
	CookieName string

	// CookiePath is the cookie path.
	// Default: "/"
	CookiePath string

	// CookieDomain is the cookie domain. Optional.
	CookieDomain string

	// Secure marks the cookie HTTPS-only.
	Secure bool

	// SameSite is the cookie SameSite mode.
	// Default: http.SameSiteLaxMode
	SameSite http.SameSite

	// IdleTimeout expires sessions that have not been used for this long.
	// Every authenticated request slides it forward.
	// Default: 30 minutes
	IdleTimeout time.Duration

	// Lifetime is the absolute session lifetime, and the cookie lifetime
	// for permanent sessions.
	// Default: 31 days
	Lifetime time.Duration

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// Session is a loaded record bound to its ID.
type Session struct {
	Record

	id    string
	oldID string
	isNew bool
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// IsNew reports whether the session was created by this request.
func (s *Session) IsNew() bool {
	return s.isNew
}

// Manager loads and saves sessions identified by a cookie.
//
// Contract:
//   - Concurrency: safe for concurrent use. Concurrent requests on the same
//     session are last-writer-wins.
type Manager struct {
	config Config
	store  *Store
}

// NewManager creates a manager over store.
func NewManager(store *Store, config Config) *Manager {
	if config.CookieName == "" {
		config.CookieName = "customs_session"
	}
	if config.CookiePath == "" {
		config.CookiePath = "/"
	}
	if config.SameSite == 0 {
		config.SameSite = http.SameSiteLaxMode
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 30 * time.Minute
	}
	if config.Lifetime == 0 {
		config.Lifetime = 31 * 24 * time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Manager{config: config, store: store}
}

// Store returns the backing store.
func (m *Manager) Store() *Store {
	return m.store
}

// CookieName returns the session cookie name.
func (m *Manager) CookieName() string {
	return m.config.CookieName
}

// Load returns the session for r. A missing, unknown or expired session
// yields a fresh one. On a store error the fresh session is returned along
// with the error.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.config.CookieName)
	if err != nil || c.Value == "" {
		return m.fresh(), nil
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return m.fresh(), nil
	}

	ctx := r.Context()
	rec, ok, err := m.store.Load(ctx, c.Value)
	if err != nil {
		return m.fresh(), err
	}
	if !ok {
		return m.fresh(), nil
	}
	if rec.Expired(m.config.Now(), m.config.IdleTimeout, m.config.Lifetime) {
		_ = m.store.Delete(ctx, c.Value)
		return m.fresh(), nil
	}
	return &Session{Record: *rec, id: c.Value}, nil
}

// Save persists s, slides its idle expiry and writes the cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	now := m.config.Now()
	s.LastSeen = now
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}

	ttl := m.config.IdleTimeout
	if remaining := s.CreatedAt.Add(m.config.Lifetime).Sub(now); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return m.Destroy(ctx, w, s)
	}

	if err := m.store.Save(ctx, s.id, &s.Record, ttl); err != nil {
		return err
	}
	if s.oldID != "" {
		_ = m.store.Delete(ctx, s.oldID)
		s.oldID = ""
	}
	s.isNew = false

	cookie := m.cookie(s.id)
	if s.Permanent {
		expires := s.CreatedAt.Add(m.config.Lifetime)
		cookie.Expires = expires
		cookie.MaxAge = int(expires.Sub(now).Seconds())
	}
	http.SetCookie(w, cookie)
	return nil
}

// Renew assigns s a new ID. The old record is removed on the next Save.
// Call it whenever the privilege level of the session changes.
func (m *Manager) Renew(s *Session) {
	if !s.isNew && s.oldID == "" {
		s.oldID = s.id
	}
	s.id = uuid.NewString()
}

// Destroy deletes s and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	err := m.store.Delete(ctx, s.id)
	if s.oldID != "" {
		_ = m.store.Delete(ctx, s.oldID)
	}
	cookie := m.cookie("")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(1, 0)
	http.SetCookie(w, cookie)
	s.Record = Record{}
	return err
}

func (m *Manager) fresh() *Session {
	now := m.config.Now()
	return &Session{
		Record: Record{CreatedAt: now, LastSeen: now},
		id:     uuid.NewString(),
		isNew:  true,
	}
}

func (m *Manager) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     m.config.CookieName,
		Value:    value,
		Path:     m.config.CookiePath,
		Domain:   m.config.CookieDomain,
		Secure:   m.config.Secure,
		HttpOnly: true,
		SameSite: m.config.SameSite,
	}
}
