package shippo

import (
	"net/url"
	"strings"
)

// Param is one query parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered set of query parameters; order is preserved on the wire.
type Params []Param

// Add appends a parameter and returns the extended set.
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// BuildEndpoint joins base and segments with "/" and always ends with a trailing slash.
func BuildEndpoint(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(s)
	}
	b.WriteByte('/')
	return b.String()
}

// EndpointPath joins path segments with "/", escaping each one so identifiers
// stay a single segment. Empty segments are dropped; dot segments are encoded.
func EndpointPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		switch s {
		case "":
			continue
		case ".", "..":
			parts = append(parts, strings.ReplaceAll(s, ".", "%2E"))
		default:
			parts = append(parts, url.PathEscape(s))
		}
	}
	return strings.Join(parts, "/")
}

// AppendQuery appends params as "&key=value" pairs after a "?".
// The provider accepts the leading "&", e.g. "merchants/?&page=0&results=50".
func AppendQuery(rawURL string, params Params) string {
	if len(params) == 0 {
		return rawURL
	}
	var b strings.Builder
	b.WriteString(rawURL)
	b.WriteByte('?')
	for _, p := range params {
		b.WriteByte('&')
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// EnforceHTTPS forces an https scheme. An existing "http://" prefix is replaced
// rather than nested.
func EnforceHTTPS(rawURL string) string {
	switch {
	case strings.HasPrefix(rawURL, "https://"):
		return rawURL
	case strings.HasPrefix(rawURL, "http://"):
		return "https://" + strings.TrimPrefix(rawURL, "http://")
	default:
		return "https://" + rawURL
	}
}
