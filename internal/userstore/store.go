// Package userstore is the sqlite user database behind the customs server:
// bcrypt passwords, hashed API keys, TOTP secrets and linked OAuth accounts.
package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonwraymond/customs/auth"
)

// Errors returned by the store.
var (
	ErrUserExists   = errors.New("userstore: user already exists")
	ErrUserNotFound = errors.New("userstore: user not found")
)

// User is a stored account.
type User struct {
	ID           int64
	Username     string
	Email        string
	TOTPSecret   string
	TOTPVerified bool
	CreatedAt    time.Time
}

// Identity is the identity handed to the auth engine for u.
func (u *User) Identity() auth.Identity {
	id := auth.Identity{
		"id":           u.Username,
		"username":     u.Username,
		"totp_enabled": u.TOTPVerified,
	}
	if u.Email != "" {
		id["email"] = u.Email
	}
	return id
}

// Options configures a Store.
type Options struct {
	// BcryptCost is the password hashing cost.
	// Default: bcrypt.DefaultCost
	BcryptCost int

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// Store is a sqlite-backed user database.
type Store struct {
	db        *sql.DB
	opts      Options
	dummyHash []byte
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	connstr := fmt.Sprintf("file:%v?_foreign_keys=on&_busy_timeout=5000&mode=rwc", path)
	if path == ":memory:" {
		connstr = "file::memory:?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", path, err)
	}
	// sqlite serializes writers anyway; one connection also keeps an
	// in-memory database alive and shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to ping %v, cause %w", path, err)
	}

	s := &Store{db: db, opts: opts}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to init %v, cause %w", path, err)
	}
	s.dummyHash, err = bcrypt.GenerateFromPassword([]byte("customs-dummy-password"), opts.BcryptCost)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
create table if not exists users (
	user_id integer primary key autoincrement,
	username text not null unique,
	password_hash blob,
	email text not null default '',
	totp_secret text not null default '',
	totp_verified integer not null default 0,
	created_at integer not null
);
create table if not exists oauth_accounts (
	provider text not null,
	subject text not null,
	user_id integer not null references users(user_id) on delete cascade,
	primary key (provider, subject)
);
create table if not exists api_keys (
	key_id text primary key,
	key_hash text not null unique,
	user_id integer not null references users(user_id) on delete cascade,
	expires_at integer not null default 0
);`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AddUser creates a user. An empty password creates an account that can
// only sign in through OAuth.
func (s *Store) AddUser(ctx context.Context, username, password, email string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("userstore: username is required")
	}

	var hash []byte
	if password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("userstore: hash password: %w", err)
		}
	}

	now := s.opts.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`insert into users (username, password_hash, email, created_at) values (?, ?, ?, ?)`,
		username, hash, email, now.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		return nil, fmt.Errorf("userstore: insert user %v, cause %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &User{ID: id, Username: username, Email: email, CreatedAt: now}, nil
}

// GetUser returns the named user.
func (s *Store) GetUser(ctx context.Context, username string) (*User, error) {
	u, _, err := s.getUser(ctx, `username = ?`, username)
	return u, err
}

func (s *Store) getUser(ctx context.Context, where string, args ...any) (*User, []byte, error) {
	var (
		u        User
		hash     []byte
		verified int
		created  int64
	)
	err := s.db.QueryRowContext(ctx,
		`select user_id, username, password_hash, email, totp_secret, totp_verified, created_at from users where `+where,
		args...).Scan(&u.ID, &u.Username, &hash, &u.Email, &u.TOTPSecret, &verified, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrUserNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("userstore: load user, cause %w", err)
	}
	u.TOTPVerified = verified != 0
	u.CreatedAt = time.Unix(created, 0).UTC()
	return &u, hash, nil
}

// ValidatePassword checks a username and password. Unknown users and wrong
// passwords take the same time and return the same error.
func (s *Store) ValidatePassword(ctx context.Context, username, password string) (auth.Identity, error) {
	u, hash, err := s.getUser(ctx, `username = ?`, username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if u == nil || len(hash) == 0 {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, auth.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return nil, auth.ErrInvalidCredentials
	}
	return u.Identity(), nil
}

// SetPassword replaces a user's password.
func (s *Store) SetPassword(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("userstore: hash password: %w", err)
	}
	return s.update(ctx, username, `password_hash = ?`, hash)
}

func (s *Store) update(ctx context.Context, username, set string, args ...any) error {
	res, err := s.db.ExecContext(ctx, `update users set `+set+` where username = ?`, append(args, username)...)
	if err != nil {
		return fmt.Errorf("userstore: update %v, cause %w", username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ensure Store implements PasswordValidator
var _ auth.PasswordValidator = (*Store)(nil)
