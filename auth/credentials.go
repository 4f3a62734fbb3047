package auth

import (
	"encoding/base64"
	"strings"
)

// Credentials is a bundle of named credential fields.
// Absent fields are absent keys, never empty strings.
type Credentials map[string]string

// Get returns the named field, or empty string.
func (c Credentials) Get(key string) string {
	return c[key]
}

// Has reports whether every named field is present.
func (c Credentials) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := c[k]; !ok {
			return false
		}
	}
	return true
}

// Credential field names used by the built-in strategies.
const (
	FieldUsername = "username"
	FieldPassword = "password"
	FieldToken    = "token"
	FieldAPIKey   = "key"
	FieldOTP      = "otp"
	FieldCode     = "code"
	FieldState    = "state"
)

// ExtractFields pulls each field from the body, falling back to the query.
func ExtractFields(req *Request, fields ...string) Credentials {
	creds := make(Credentials, len(fields))
	for _, f := range fields {
		if v, ok := req.BodyValue(f); ok && v != "" {
			creds[f] = v
			continue
		}
		if v := req.QueryValue(f); v != "" {
			creds[f] = v
		}
	}
	return creds
}

// ExtractBasic decodes an "Authorization: Basic" header into username and
// password. A missing header or another scheme yields an empty bundle; a
// Basic scheme without a payload is malformed. The decoded pair is split on the first colon only, so passwords may
// contain colons.
func ExtractBasic(req *Request) (Credentials, error) {
	header := req.Header("Authorization")
	scheme, payload, _ := strings.Cut(strings.TrimSpace(header), " ")
	if !strings.EqualFold(scheme, "basic") {
		return Credentials{}, nil
	}

	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, Unauthorized(ErrMalformedCredentials)
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, Unauthorized(ErrMalformedCredentials)
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, Unauthorized(ErrMalformedCredentials)
	}

	return Credentials{
		FieldUsername: username,
		FieldPassword: password,
	}, nil
}

// ExtractBearer returns the token that follows prefix in the named header.
// The scheme comparison is case-insensitive.
func ExtractBearer(req *Request, header, prefix string) Credentials {
	value := strings.TrimSpace(req.Header(header))
	if value == "" {
		return Credentials{}
	}
	if prefix != "" {
		if len(value) < len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
			return Credentials{}
		}
		value = strings.TrimSpace(value[len(prefix):])
	}
	if value == "" {
		return Credentials{}
	}
	return Credentials{FieldToken: value}
}

// ExtractAny looks for field in the named headers, then the body, then the
// query. The first non-empty value wins.
func ExtractAny(req *Request, field string, headers ...string) Credentials {
	for _, h := range headers {
		if v := strings.TrimSpace(req.Header(h)); v != "" {
			return Credentials{field: v}
		}
	}
	return ExtractFields(req, field)
}
