package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/textproto"
	"net/url"
)

// MaxBodyBytes caps how much of a request body NewRequest decodes.
const MaxBodyBytes = 1 << 20

// MetadataBinding is the Metadata key holding the client binding: the
// session ID in session mode. Strategies that hand out one-time values
// tie them to it.
const MetadataBinding = "binding"

// Request is the transport-neutral view of an incoming request that
// strategies extract credentials from.
type Request struct {
	// Method and Path identify the request for logging.
	Method string
	Path   string

	// Headers holds request headers keyed by canonical MIME header name.
	Headers map[string][]string

	// Query holds the decoded URL query.
	Query map[string][]string

	// Body is the decoded request body, or nil when the request has no
	// body or it could not be decoded.
	Body map[string]any

	// Metadata carries additional request metadata.
	Metadata map[string]any
}

// Binding returns the client binding, or empty.
func (r *Request) Binding() string {
	if r == nil {
		return ""
	}
	b, _ := r.Metadata[MetadataBinding].(string)
	return b
}

// NewRequest builds a Request from an HTTP request.
//
// JSON objects and urlencoded forms are decoded into Body. At most
// MaxBodyBytes are read, and r.Body is restored so later handlers can read
// it again.
func NewRequest(r *http.Request) *Request {
	req := &Request{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: map[string][]string(r.Header),
		Query:   map[string][]string(r.URL.Query()),
	}
	req.Body = decodeBody(r)
	return req
}

// Header returns the first value of the named header.
func (r *Request) Header(key string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	values := r.Headers[textproto.CanonicalMIMEHeaderKey(key)]
	if len(values) == 0 {
		// Headers built by hand may not be canonicalized.
		values = r.Headers[key]
	}
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// QueryValue returns the first query value for key.
func (r *Request) QueryValue(key string) string {
	if r == nil || r.Query == nil {
		return ""
	}
	values := r.Query[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// BodyValue returns the body field key as a string.
// Non-string scalars are formatted; objects and arrays are ignored.
func (r *Request) BodyValue(key string) (string, bool) {
	if r == nil || r.Body == nil {
		return "", false
	}
	v, ok := r.Body[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case bool, float64, json.Number:
		return fmt.Sprint(val), true
	default:
		return "", false
	}
}

func decodeBody(r *http.Request) map[string]any {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil || len(data) == 0 {
		return nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var body map[string]any
		if err := json.Unmarshal(data, &body); err != nil {
			return nil
		}
		return body
	case "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(data))
		if err != nil {
			return nil
		}
		body := make(map[string]any, len(form))
		for k, v := range form {
			if len(v) > 0 {
				body[k] = v[0]
			}
		}
		return body
	default:
		return nil
	}
}
