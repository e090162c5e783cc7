package extract

import (
	"net/url"
	"regexp"
	"strings"
)

// urlRe matches absolute http(s) URLs terminated by whitespace or a closing
// bracket/quote.
var urlRe = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)

// URLs scans free text for absolute URLs, keeps those whose host belongs to
// one of the allowed domains, removes byte-identical duplicates, and caps
// the result at max entries. Order is first-seen order; zero matches is a
// valid empty result.
func URLs(text string, allowed []string, max int) []string {
	var out []string
	seen := make(map[string]struct{})

	for _, raw := range urlRe.FindAllString(text, -1) {
		if _, dup := seen[raw]; dup {
			continue
		}
		if !hostAllowed(raw, allowed) {
			continue
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// hostAllowed reports whether the URL's host equals, or is a subdomain of,
// one of the allowed domains.
func hostAllowed(raw string, allowed []string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range allowed {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
