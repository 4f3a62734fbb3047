// Package secret resolves secret values referenced from configuration, such
// as token signing keys and OAuth client secrets.
//
// A configuration value is first expanded against the environment with
// ExpandEnv, where ${NAME} must be set. The result may then hold secret
// references of the form secretref:<provider>:<ref>, either as the whole
// value or inline:
//
//	signing_key: secretref:file:/run/secrets/customs-signing-key
//	client_secret: secretref:env:GITHUB_CLIENT_SECRET
//	header: Bearer secretref:env:UPSTREAM_TOKEN
//
// Two providers are built in. EnvProvider reads environment variables and
// FileProvider reads files, trimming a trailing newline. NewResolver with no
// arguments registers both.
package secret
