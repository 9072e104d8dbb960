// Package browser talks to the browser the extension runs in: opening tabs,
// finding the ones on the supported sites and reloading them.
package browser

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrTabNotFound is returned when a tab id does not name an open tab.
var ErrTabNotFound = errors.New("tab not found")

// Tab is one open page.
type Tab struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Tabs is the slice of the browser's tab API the lifecycle needs.
type Tabs interface {
	Create(ctx context.Context, url string) error
	// Query lists open tabs whose URL matches any of patterns.
	Query(ctx context.Context, patterns []string) ([]Tab, error)
	Reload(ctx context.Context, id string) error
}

// MatchPattern reports whether rawURL matches a match pattern of the form
// <scheme>://<host>/<path>. The scheme may be "*" (http or https), the host
// may be "*" or start with "*." to include subdomains, and "*" in the path
// matches any run of characters.
func MatchPattern(pattern, rawURL string) bool {
	if pattern == "<all_urls>" {
		u, err := url.Parse(rawURL)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https")
	}

	scheme, rest, ok := strings.Cut(pattern, "://")
	if !ok {
		return false
	}
	host, path, ok := strings.Cut(rest, "/")
	if !ok {
		return false
	}
	path = "/" + path

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	switch scheme {
	case "*":
		if u.Scheme != "http" && u.Scheme != "https" {
			return false
		}
	default:
		if u.Scheme != scheme {
			return false
		}
	}

	hostname := strings.ToLower(u.Hostname())
	host = strings.ToLower(host)
	switch {
	case host == "*":
	case strings.HasPrefix(host, "*."):
		base := host[2:]
		if hostname != base && !strings.HasSuffix(hostname, "."+base) {
			return false
		}
	default:
		if hostname != host {
			return false
		}
	}

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return globRegexp(path).MatchString(target)
}

func globRegexp(glob string) *regexp.Regexp {
	parts := strings.Split(glob, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
}

// MatchAny reports whether rawURL matches one of patterns.
func MatchAny(patterns []string, rawURL string) bool {
	for _, p := range patterns {
		if MatchPattern(p, rawURL) {
			return true
		}
	}
	return false
}
