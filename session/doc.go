// Package session persists per-client authentication state.
//
// A Record holds the serialized identity, whether it is fully
// authenticated, the strategy that produced it and the factors completed.
// Records live in a cache.Cache (in-memory or bigcache) keyed by an opaque
// random ID that travels in a cookie. Expiry is both sliding (idle timeout)
// and absolute (lifetime since creation).
package session
