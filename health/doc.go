// Package health reports whether the pieces authentication depends on are
// usable: the session store, the published signing keys, the circuit around
// an identity provider, and the session cache's headroom.
//
// Checkers are combined by an Aggregator and exposed as liveness, readiness
// and detailed probe endpoints:
//
//	agg := health.NewAggregator()
//	agg.Register("sessions", health.NewPingChecker("sessions", store))
//	agg.Register("jwks", health.NewKeySetChecker("jwks", provider))
//	health.RegisterHandlers(router.Handler, agg)
package health
