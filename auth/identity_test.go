package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/jonwraymond/customs/cache"
)

func TestIdentity_ID(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want string
	}{
		{"id wins", Identity{"id": "u1", "sub": "s1", "email": "a@b"}, "u1"},
		{"numeric id", Identity{"id": 42.0}, "42"},
		{"large numeric id", Identity{"id": 98765432.0}, "98765432"},
		{"sub fallback", Identity{"sub": "s1"}, "s1"},
		{"username fallback", Identity{"username": "alice"}, "alice"},
		{"email fallback", Identity{"email": "a@b"}, "a@b"},
		{"nil value skipped", Identity{"id": nil, "sub": "s1"}, "s1"},
		{"none", Identity{"name": "x"}, ""},
		{"nil identity", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.ID(); got != tt.want {
				t.Errorf("ID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentity_Accessors(t *testing.T) {
	id := Identity{"name": "Alice", "admin": true, "age": 30.0}
	if id.String("name") != "Alice" || id.String("age") != "" {
		t.Error("String() mismatch")
	}
	if !id.Bool("admin") || id.Bool("name") {
		t.Error("Bool() mismatch")
	}

	cp := id.Clone()
	cp["name"] = "Bob"
	if id["name"] != "Alice" {
		t.Error("Clone() must not alias the original")
	}
	if Identity(nil).Clone() != nil {
		t.Error("Clone(nil) should be nil")
	}

	if !id.Equal(Identity{"name": "Alice", "admin": true, "age": 30.0}) {
		t.Error("Equal() should match identical content")
	}
	if id.Equal(cp) {
		t.Error("Equal() should detect differences")
	}
}

func TestHooks_Passthrough(t *testing.T) {
	var h Hooks
	ctx := context.Background()
	in := Identity{"id": "u1"}

	for name, fn := range map[string]IdentityFunc{
		"resolve":     h.ResolveIdentity,
		"serialize":   h.SerializeIdentity,
		"deserialize": h.DeserializeIdentity,
	} {
		out, err := fn(ctx, in)
		if err != nil || !out.Equal(in) {
			t.Errorf("%s = %v, %v; want passthrough", name, out, err)
		}
	}
}

func TestHooks_SerializeRoundTrip(t *testing.T) {
	users := map[string]Identity{
		"u1": {"id": "u1", "name": "Alice", "roles": []any{"admin"}},
	}
	h := Hooks{
		Serialize: func(_ context.Context, id Identity) (Identity, error) {
			return Identity{"id": id.ID()}, nil
		},
		Deserialize: func(_ context.Context, data Identity) (Identity, error) {
			u, ok := users[data.ID()]
			if !ok {
				return nil, nil
			}
			return u.Clone(), nil
		},
	}
	ctx := context.Background()

	data, err := h.SerializeIdentity(ctx, users["u1"])
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 1 {
		t.Errorf("serialized form should be compact, got %v", data)
	}
	back, err := h.DeserializeIdentity(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(users["u1"]) {
		t.Errorf("round trip = %v, want %v", back, users["u1"])
	}
}

func TestMemoize(t *testing.T) {
	calls := 0
	lookup := func(_ context.Context, raw Identity) (Identity, error) {
		calls++
		if raw.ID() == "broken" {
			return nil, errors.New("directory unavailable")
		}
		return Identity{"id": raw.ID(), "plan": "pro"}, nil
	}
	m := cache.NewMemoizer(cache.NewMemoryCache(cache.DefaultPolicy()), nil, cache.DefaultPolicy(), "identity")
	fn := Memoize(m, lookup)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := fn(ctx, Identity{"sub": "u1"})
		if err != nil || id.String("plan") != "pro" {
			t.Fatalf("call %d = %v, %v", i, id, err)
		}
	}
	if calls != 1 {
		t.Errorf("lookup called %d times, want 1", calls)
	}

	if _, err := fn(ctx, Identity{"id": "broken"}); err == nil {
		t.Error("expected lookup error")
	}
	if _, err := fn(ctx, Identity{"id": "broken"}); err == nil {
		t.Error("errors must not be cached")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	if Memoize(nil, lookup) == nil {
		t.Error("Memoize(nil, fn) should return fn")
	}
}
