// Package observe provides observability for authentication attempts.
//
// An Observer bundles an OpenTelemetry tracer and meter with a structured
// zerolog logger. Middleware wraps each strategy attempt with a span, the
// auth.attempt.* metrics and a log line. Credential-bearing fields are
// redacted before they reach the log.
package observe
