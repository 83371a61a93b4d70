package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Fingerprint computes the fixed-width digest the gateway uses both as a
// cache key and as a request-id seed: sha256 over
// service || method || path || canonical(query).
func Fingerprint(service, method, path, rawQuery string) string {
	h := sha256.New()
	h.Write([]byte(service))
	h.Write([]byte{0})
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(CanonicalQuery(rawQuery)))
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalQuery imposes a total ordering over query keys and URL-decodes
// values, so that two requests differing only in key order or encoding
// share a cache entry.
func CanonicalQuery(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for j, v := range vs {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}
