package auth

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// userDB is an in-memory PasswordValidator.
type userDB struct {
	mu        sync.Mutex
	passwords map[string]string
	calls     int
	err       error
}

func newUserDB() *userDB {
	return &userDB{passwords: map[string]string{
		"alice": "wonderland",
		"bob":   "builder",
	}}
}

func (db *userDB) ValidatePassword(_ context.Context, username, password string) (Identity, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.calls++
	if db.err != nil {
		return nil, db.err
	}
	if p, ok := db.passwords[username]; !ok || p != password {
		return nil, nil
	}
	return Identity{"id": username, "username": username}, nil
}

func (db *userDB) Calls() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.calls
}

// Ensure userDB implements PasswordValidator
var _ PasswordValidator = (*userDB)(nil)

func bodyRequest(fields map[string]any) *Request {
	return &Request{Method: http.MethodPost, Path: "/", Body: fields}
}

func headerRequest(kv ...string) *Request {
	req := &Request{Method: http.MethodGet, Path: "/", Headers: map[string][]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		req.Headers[kv[i]] = append(req.Headers[kv[i]], kv[i+1])
	}
	return req
}

func queryRequest(q url.Values) *Request {
	return &Request{Method: http.MethodGet, Path: "/", Query: q}
}

// staticStrategy succeeds with a fixed identity, or fails with err.
func staticStrategy(name string, id Identity, err error) *StrategyFunc {
	return NewStrategyFunc(name, nil, func(context.Context, *Request, Identity) (*AuthResult, error) {
		if err != nil {
			return AuthFailure(err, name), nil
		}
		return AuthSuccess(id, name), nil
	})
}
