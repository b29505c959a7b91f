package cache

import (
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces all cache keys in Redis.
const keyPrefix = "pms:cache"

// Key identifies a cached response by request signature.
type Key struct {
	// Path is the collection path, e.g. "/pms/units"
	Path string

	// Query holds the request query parameters
	Query url.Values

	// Account separates credentials that may see different data
	Account string
}

// String builds a deterministic Redis key.
// Format: pms:cache:path:k1=v1:k2=a,b:acct=name
//
// Example:
//
//	pms:cache:pms/units:page=2:size=100
func (k Key) String() string {
	parts := []string{keyPrefix}

	if p := strings.Trim(k.Path, "/"); p != "" {
		parts = append(parts, p)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values := append([]string(nil), k.Query[name]...)
		sort.Strings(values)
		parts = append(parts, name+"="+strings.Join(values, ","))
	}

	if k.Account != "" {
		parts = append(parts, "acct="+k.Account)
	}

	return strings.Join(parts, ":")
}
