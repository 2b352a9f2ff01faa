package types

import (
	"net/textproto"
	"net/url"
	"time"
)

// RequestContext is the normalized descriptor of one inbound request. It is
// created by the gateway (or the analysis API handler), consumed by the
// pipeline and discarded; nothing in the core retains it past the call.
type RequestContext struct {
	Method    string              `json:"method"`
	Path      string              `json:"path"`
	Query     url.Values          `json:"query"`
	Headers   map[string][]string `json:"headers"`
	Body      []byte              `json:"body"`
	ClientIP  string              `json:"client_ip"`
	TenantID  string              `json:"tenant_id"`
	Timestamp time.Time           `json:"timestamp"`
}

// Header returns the first value of the named header, or "".
func (r *RequestContext) Header(key string) string {
	if values, ok := r.Headers[key]; ok && len(values) > 0 {
		return values[0]
	}
	canon := textproto.CanonicalMIMEHeaderKey(key)
	if values, ok := r.Headers[canon]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

// UserAgent is shorthand for the User-Agent header.
func (r *RequestContext) UserAgent() string {
	return r.Header("User-Agent")
}
