package robokassa

import (
	"net/url"
	"sort"
	"strings"
)

// userFieldPrefix marks merchant-defined pass-through parameters (Shp_*), matched case-insensitively.
const userFieldPrefix = "shp_"

// IsUserFieldKey reports whether key carries the reserved Shp_ prefix.
func IsUserFieldKey(key string) bool {
	return len(key) >= len(userFieldPrefix) && strings.EqualFold(key[:len(userFieldPrefix)], userFieldPrefix)
}

// UserFields are Shp_* parameters echoed back by the gateway in callbacks.
type UserFields map[string]string

// NewUserFields keeps only keys with the Shp_ prefix; other keys are ignored.
func NewUserFields(src map[string]string) UserFields {
	fields := make(UserFields, len(src))
	for k, v := range src {
		if IsUserFieldKey(k) {
			fields[k] = v
		}
	}
	return fields
}

// SortedKeys returns keys in ascending byte order, the order used for signing.
func (f UserFields) SortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// signingPairs renders key=urlencode(value) in sorted key order.
func (f UserFields) signingPairs() []string {
	keys := f.SortedKeys()
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+url.QueryEscape(f[k]))
	}
	return pairs
}

// Param is a single query parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an insertion-ordered query. url.Values would sort keys on Encode.
type Params []Param

func (p *Params) Add(key, value string) {
	*p = append(*p, Param{Key: key, Value: value})
}

// Get returns the first value for key.
func (p Params) Get(key string) string {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// Encode form-encodes the parameters preserving order.
func (p Params) Encode() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}
	return b.String()
}
