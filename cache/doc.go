// Package cache provides the byte caches behind sessions, OAuth state and
// memoized identity resolution.
//
// Two Cache implementations are provided: MemoryCache (a map with lazy
// expiry) and BigCache (allegro/bigcache with per-entry expiry). Keys for
// structured inputs come from a Keyer that hashes a canonical JSON form.
package cache
