package auth

import (
	"net/http"
	"path"
)

// RouteFunc registers a handler for a method and path on some router.
// httprouter.Router.Handler has this signature.
type RouteFunc func(method, path string, h http.Handler)

// ServeMuxRoute adapts an http.ServeMux to RouteFunc using method patterns.
func ServeMuxRoute(mux *http.ServeMux) RouteFunc {
	return func(method, path string, h http.Handler) {
		mux.Handle(method+" "+path, h)
	}
}

// Zone registers handlers that all pass through the same guard.
// Registering through a zone is identical to wrapping each handler with
// the guard.
type Zone struct {
	route  RouteFunc
	guard  *Guard
	prefix string
}

// SafeZone creates a zone that registers routes through route, protected
// by guard.
func (e *Engine) SafeZone(route RouteFunc, guard *Guard) *Zone {
	return &Zone{route: route, guard: guard}
}

// Guard returns the zone's guard.
func (z *Zone) Guard() *Guard {
	return z.guard
}

// Group returns a zone that prefixes every path with prefix.
func (z *Zone) Group(prefix string) *Zone {
	return &Zone{route: z.route, guard: z.guard, prefix: z.join(prefix)}
}

// Handle registers a protected handler.
func (z *Zone) Handle(method, p string, h http.Handler) {
	z.route(method, z.join(p), z.guard.Wrap(h))
}

// HandleFunc registers a protected handler function.
func (z *Zone) HandleFunc(method, p string, f http.HandlerFunc) {
	z.Handle(method, p, f)
}

// HandleIdentity registers a protected handler that receives the identity.
func (z *Zone) HandleIdentity(method, p string, h IdentityHandler) {
	z.route(method, z.join(p), z.guard.WrapIdentity(h))
}

// GET registers a protected GET handler.
func (z *Zone) GET(p string, h http.Handler) {
	z.Handle(http.MethodGet, p, h)
}

// POST registers a protected POST handler.
func (z *Zone) POST(p string, h http.Handler) {
	z.Handle(http.MethodPost, p, h)
}

func (z *Zone) join(p string) string {
	if z.prefix == "" {
		return p
	}
	joined := path.Join(z.prefix, p)
	// path.Join drops a trailing slash, which routers treat as significant.
	if len(p) > 0 && p[len(p)-1] == '/' && joined[len(joined)-1] != '/' {
		joined += "/"
	}
	return joined
}
