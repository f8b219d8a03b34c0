package ranking

import "strings"

// NormalizeDomain lowercases a domain and strips the scheme, a leading
// "www." and any trailing slash.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, "/")
}

// normalizeResultURL lowercases a result URL and strips the scheme and a
// leading "www.", keeping the path so prefix checks see host boundaries.
func normalizeResultURL(raw string) string {
	u := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	return strings.TrimPrefix(u, "www.")
}

// MatchesTarget reports whether a result URL belongs to the normalized target
// domain. The match is anchored at the host boundary: equal, or followed by a
// path separator or a dot. A target appearing elsewhere in the URL is not a
// match.
func MatchesTarget(resultURL, normalizedTarget string) bool {
	if normalizedTarget == "" {
		return false
	}
	u := normalizeResultURL(resultURL)
	if u == normalizedTarget {
		return true
	}
	return strings.HasPrefix(u, normalizedTarget+"/") || strings.HasPrefix(u, normalizedTarget+".")
}

// SynthesizeURL builds a usable URL from a target domain so callers always
// have something to persist when the domain was not found.
func SynthesizeURL(targetDomain string) string {
	d := strings.TrimSpace(targetDomain)
	if strings.Contains(d, "://") {
		return d
	}
	return "https://" + d
}

// hostOf extracts the normalized hostname from a result URL.
func hostOf(raw string) string {
	u := normalizeResultURL(raw)
	if i := strings.IndexAny(u, "/?#"); i >= 0 {
		u = u[:i]
	}
	return u
}
