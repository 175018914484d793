package portal

import (
	"net/url"
	"strings"
)

// Param is one key/value pair of a query string.
type Param struct {
	Key   string
	Value string
}

// Query is a query string that keeps its parameter order, which
// url.Values cannot.
type Query []Param

// ParseQuery decodes raw, with or without the leading '?'. Malformed
// escapes are kept verbatim.
func ParseQuery(raw string) Query {
	raw = strings.TrimPrefix(raw, "?")
	var q Query
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		q = append(q, Param{Key: unescape(key), Value: unescape(value)})
	}
	return q
}

func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

// Get returns the first value for key.
func (q Query) Get(key string) (string, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present, even with an empty value.
func (q Query) Has(key string) bool {
	_, ok := q.Get(key)
	return ok
}

// Without returns a copy of q with every occurrence of key removed.
func (q Query) Without(key string) Query {
	out := make(Query, 0, len(q))
	for _, p := range q {
		if p.Key != key {
			out = append(out, p)
		}
	}
	return out
}

// SetDefault appends key=value unless key is already present.
func (q Query) SetDefault(key, value string) Query {
	if q.Has(key) {
		return q
	}
	return append(q, Param{Key: key, Value: value})
}

// Encode serializes q in order, form-encoded.
func (q Query) Encode() string {
	var b strings.Builder
	for i, p := range q {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// IsVibeverse reports whether the page was reached through a portal, that
// is whether its query string carries a ref parameter.
func IsVibeverse(rawQuery string) bool {
	return ParseQuery(rawQuery).Has("ref")
}
