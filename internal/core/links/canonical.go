// Package links canonicalizes article URLs for deduplication.
package links

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters that carry no identity and would split
// otherwise-identical article URLs.
var trackingParams = []string{"hl"}

// Canonicalize returns the canonical form of an article URL: lowercased host,
// trailing slash stripped from the path (path case preserved), tracking query
// parameters removed, remaining query re-encoded, fragment dropped.
// The operation is idempotent. Unparseable input is returned unchanged.
func Canonicalize(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	query := parsed.Query()
	for _, p := range trackingParams {
		query.Del(p)
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = query.Encode()
	parsed.Fragment = ""
	parsed.RawFragment = ""

	return parsed.String()
}
