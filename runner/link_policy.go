package runner

import (
	"net/url"
	"strings"

	"github.com/will-x86/brokenlinks/scope"
)

// LinkPolicy decides whether a link found on currentURL may enter the frontier.
type LinkPolicy interface {
	ShouldEnqueue(currentURL *url.URL, targetURL string) bool
}

type allowAllPolicy struct{}

func (p *allowAllPolicy) ShouldEnqueue(currentURL *url.URL, targetURL string) bool {
	return true
}

var PolicyAllowAll LinkPolicy = &allowAllPolicy{}

type sameOriginPolicy struct {
	origin scope.Origin
}

func (p *sameOriginPolicy) ShouldEnqueue(currentURL *url.URL, targetURL string) bool {
	return p.origin.Contains(targetURL)
}

// NewSameOriginPolicy admits only URLs under origin.
func NewSameOriginPolicy(origin scope.Origin) LinkPolicy {
	return &sameOriginPolicy{origin: origin}
}

type excludePolicy struct {
	substrings []string
}

func (p *excludePolicy) ShouldEnqueue(currentURL *url.URL, targetURL string) bool {
	for _, s := range p.substrings {
		if strings.Contains(targetURL, s) {
			return false
		}
	}
	return true
}

// NewExcludePolicy refuses any URL containing one of substrings. Blank entries are ignored.
func NewExcludePolicy(substrings ...string) LinkPolicy {
	p := &excludePolicy{}
	for _, s := range substrings {
		if s = strings.TrimSpace(s); s != "" {
			p.substrings = append(p.substrings, s)
		}
	}
	return p
}

type allPolicy struct {
	policies []LinkPolicy
}

func (p *allPolicy) ShouldEnqueue(currentURL *url.URL, targetURL string) bool {
	for _, policy := range p.policies {
		if !policy.ShouldEnqueue(currentURL, targetURL) {
			return false
		}
	}
	return true
}

// NewAllPolicy admits a URL only when every policy does.
func NewAllPolicy(policies ...LinkPolicy) LinkPolicy {
	return &allPolicy{policies: policies}
}
