package bridge

import (
	"net/url"
	"strings"
)

// DefaultSafeDomains are the domains external links may point to.
var DefaultSafeDomains = []string{
	"tonsandbox.com",
	"tonwhales.com",
	"tontestnet.com",
	"tonhub.com",
	"holders.io",
}

// SafeOpener opens external links that pass the domain allow-list.
type SafeOpener struct {
	// Domains is the allow-list; a host matches a domain or any subdomain.
	Domains []string
	// TrustedOrigin may open non-http links when it is the current source.
	TrustedOrigin string
	// Source returns the origin of the currently loaded content.
	Source func() string
	// Open performs the actual open.
	Open func(rawURL string)
}

// Allowed reports whether rawURL may be opened.
func (o *SafeOpener) Allowed(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return o.trustedSource()
	}

	return o.safeHost(u.Hostname())
}

// OpenURL opens rawURL when allowed and reports whether it did.
func (o *SafeOpener) OpenURL(rawURL string) bool {
	if !o.Allowed(rawURL) || o.Open == nil {
		return false
	}

	o.Open(strings.TrimSpace(rawURL))

	return true
}

func (o *SafeOpener) safeHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}

	domains := o.Domains
	if domains == nil {
		domains = DefaultSafeDomains
	}

	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}

	return false
}

func (o *SafeOpener) trustedSource() bool {
	if o.TrustedOrigin == "" || o.Source == nil {
		return false
	}

	trusted := origin(o.TrustedOrigin)
	if trusted == "" {
		return false
	}

	return origin(o.Source()) == trusted
}

func origin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}

	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
