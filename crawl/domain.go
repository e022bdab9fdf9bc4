package crawl

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DefaultSkipDomains are sites whose pages never carry useful signals.
var DefaultSkipDomains = []string{
	"google.com", "google.se", "youtube.com", "facebook.com",
	"instagram.com", "twitter.com", "x.com", "tiktok.com",
	"pinterest.com", "wikipedia.org", "amazon.se", "amazon.com",
}

// Domain returns the registrable domain of host, such as "example.co.uk"
// for "www.shop.example.co.uk". Hosts without a public suffix, such as IP
// addresses and localhost, are returned lowercased without a "www." prefix.
func Domain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if net.ParseIP(host) != nil {
		return host
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return strings.TrimPrefix(host, "www.")
}

type domainSet map[string]bool

func newDomainSet(domains []string) domainSet {
	if domains == nil {
		domains = DefaultSkipDomains
	}
	s := make(domainSet, len(domains))
	for _, d := range domains {
		s[strings.ToLower(d)] = true
	}
	return s
}

// contains reports whether the URL's host or registrable domain is listed.
func (s domainSet) contains(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return s[strings.TrimPrefix(host, "www.")] || s[Domain(host)]
}
