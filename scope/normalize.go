// Package scope turns raw link references into canonical, origin-scoped URLs.
package scope

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidSeed is returned when the seed URL cannot anchor a crawl.
var ErrInvalidSeed = errors.New("invalid seed url")

// Origin is the scheme://host[:port] prefix of a crawl, without a trailing slash.
type Origin string

func (o Origin) String() string {
	return string(o)
}

// Scheme returns "http" or "https".
func (o Origin) Scheme() string {
	scheme, _, _ := strings.Cut(string(o), "://")
	return scheme
}

// Contains reports whether u sits under the origin. A bare prefix match is not enough:
// http://example.com must not claim http://example.com.evil.test.
func (o Origin) Contains(u string) bool {
	rest, ok := strings.CutPrefix(u, string(o))
	if !ok {
		return false
	}
	return rest == "" || rest[0] == '/' || rest[0] == '?' || rest[0] == '#'
}

// ParseSeed validates the seed URL and returns the crawl origin and the canonical seed.
func ParseSeed(raw string) (Origin, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("%w: empty", ErrInvalidSeed)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSeed, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("%w: missing host", ErrInvalidSeed)
	}

	origin := Origin(scheme + "://" + strings.ToLower(u.Host))

	seed := origin.String()
	if p := strings.Trim(u.EscapedPath(), "/"); p != "" {
		seed += "/" + p
	}
	if u.RawQuery != "" {
		seed += "?" + u.RawQuery
	}
	return origin, seed, nil
}

// Normalize resolves rawLink found on referrer into a canonical URL under origin.
// The second result is false when the link is rejected.
func Normalize(rawLink, referrer string, origin Origin) (string, bool) {
	link := strings.TrimSpace(rawLink)
	if link == "" || link == "/" || strings.HasPrefix(link, "#") || link == "javascript:;" {
		return "", false
	}

	if strings.HasPrefix(link, "//") {
		link = origin.Scheme() + ":" + link
	}
	if u, err := url.Parse(link); err == nil && u.Scheme != "" {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			link = canonical(link)
		default:
			// mailto:, tel:, javascript:void(0) and friends never name a page.
			return "", false
		}
	}

	// Relative paths hang off the referring page as if it were a directory.
	if strings.HasPrefix(link, ".") {
		base, err := url.Parse(strings.TrimRight(referrer, "/") + "/")
		if err != nil {
			return "", false
		}
		ref, err := url.Parse(link)
		if err != nil {
			return "", false
		}
		link = base.ResolveReference(ref).String()
	}

	if strings.Contains(link, "http") {
		if !origin.Contains(link) {
			return "", false
		}
	} else {
		link = origin.String() + "/" + strings.TrimLeft(link, "/")
	}

	if i := strings.IndexByte(link, '#'); i >= 0 {
		link = link[:i]
	}
	link = canonical(link)
	if link == origin.String()+"/" {
		link = origin.String()
	}
	return link, true
}

// canonical gives every spelling of a URL one form: lower case scheme and host, and the
// path escaped the way net/url escapes it. Unparseable links are kept as written.
func canonical(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" {
		return link
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment, u.RawFragment = "", ""
	return u.String()
}
