// Package resolve turns web links into Markdown text. A Dispatcher holds an
// ordered rule table; the first rule whose host pattern matches a URL picks
// the resolver, and a rule may hand URLs that are not its content shape
// back to the generic web resolver.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Rule names, in dispatch precedence.
const (
	RuleRepository   = "repository"
	RuleVideo        = "video"
	RuleProfessional = "professional"
	RuleSocial       = "social"
	RuleForum        = "forum"
	RuleEncyclopedia = "encyclopedia"
	RuleWeb          = "web"
)

var (
	// ErrInvalidURL is returned for links without scheme or host.
	ErrInvalidURL = errors.New("invalid url")
	// ErrNoContent is returned when a page yields no meaningful text.
	ErrNoContent = errors.New("no meaningful content")
	// ErrMissingCredentials is returned when a resolver needs an API token that is not configured.
	ErrMissingCredentials = errors.New("missing api credentials")
	// ErrNotFound is returned when the remote resource does not exist.
	ErrNotFound = errors.New("resource not found")
)

// Resolver converts a single URL into Markdown.
type Resolver interface {
	Resolve(ctx context.Context, u *url.URL) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, u *url.URL) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, u *url.URL) (string, error) {
	return f(ctx, u)
}

// Rule binds a host pattern to a resolver.
type Rule struct {
	Name string
	// Match selects the rule by host.
	Match func(u *url.URL) bool
	// Accept reports whether the URL has the content shape the resolver
	// handles. Nil accepts everything; a false result sends the URL to
	// the web resolver.
	Accept   func(u *url.URL) bool
	Resolver Resolver
}

// Options configures the default resolvers.
type Options struct {
	HTTPClient   *http.Client
	Timeout      time.Duration
	UserAgent    string
	GitHubToken  string
	XBearerToken string
	Logger       *slog.Logger
}

// Dispatcher routes URLs to resolvers by an ordered rule table.
type Dispatcher struct {
	rules    []Rule
	fallback Resolver
	logger   *slog.Logger
}

// NewDispatcher builds the default rule table.
func NewDispatcher(opts Options) *Dispatcher {
	f := newFetcher(opts)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	web := &webResolver{fetch: f}
	rules := []Rule{
		{
			Name:     RuleRepository,
			Match:    hostIs("github.com"),
			Resolver: newGitHubResolver(opts.GitHubToken, f.client, ""),
		},
		{
			Name:     RuleVideo,
			Match:    hostIs("youtube.com", "youtu.be"),
			Resolver: &youtubeResolver{fetch: f},
		},
		{
			Name:     RuleProfessional,
			Match:    hostIs("linkedin.com"),
			Accept:   linkedinIsPost,
			Resolver: &linkedinResolver{fetch: f},
		},
		{
			Name:     RuleSocial,
			Match:    hostIs("x.com", "twitter.com", "t.co"),
			Accept:   pathContains("/status/"),
			Resolver: &xResolver{fetch: f, token: opts.XBearerToken},
		},
		{
			Name:     RuleForum,
			Match:    hostIs("reddit.com"),
			Accept:   pathContains("/comments/"),
			Resolver: &redditResolver{fetch: f},
		},
		{
			Name:     RuleEncyclopedia,
			Match:    hostIs("wikipedia.org"),
			Resolver: &wikipediaResolver{fetch: f},
		},
	}

	return NewDispatcherWithRules(rules, web, logger)
}

// NewDispatcherWithRules builds a dispatcher from an explicit rule table.
func NewDispatcherWithRules(rules []Rule, fallback Resolver, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{rules: rules, fallback: fallback, logger: logger}
}

// Rules returns the rule table in precedence order.
func (d *Dispatcher) Rules() []Rule {
	return append([]Rule(nil), d.rules...)
}

func (d *Dispatcher) match(u *url.URL) (Rule, bool) {
	for _, r := range d.rules {
		if r.Match(u) {
			return r, true
		}
	}
	return Rule{}, false
}

// Classify returns the name of the first rule whose host pattern matches
// rawURL, or RuleWeb.
func (d *Dispatcher) Classify(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return RuleWeb
	}
	if r, ok := d.match(u); ok {
		return r.Name
	}
	return RuleWeb
}

// Route returns the name of the resolver that will actually handle rawURL,
// taking content-shape re-dispatch into account.
func (d *Dispatcher) Route(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return RuleWeb
	}
	r, ok := d.match(u)
	if !ok || (r.Accept != nil && !r.Accept(u)) {
		return RuleWeb
	}
	return r.Name
}

// Resolve fetches rawURL with the matching resolver.
func (d *Dispatcher) Resolve(ctx context.Context, rawURL string) (string, error) {
	u, err := parseLink(rawURL)
	if err != nil {
		return "", err
	}

	resolver := d.fallback
	name := RuleWeb
	if r, ok := d.match(u); ok {
		if r.Accept == nil || r.Accept(u) {
			resolver, name = r.Resolver, r.Name
		} else {
			d.logger.Info("url is not a post, treating as web content", "rule", r.Name, "url", rawURL)
		}
	}

	d.logger.Debug("resolving url", "rule", name, "url", rawURL)
	text, err := resolver.Resolve(ctx, u)
	if err != nil {
		return "", fmt.Errorf("%s resolver: %w", name, err)
	}
	return text, nil
}

func parseLink(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}

// hostIs matches the given domains and their subdomains.
func hostIs(domains ...string) func(*url.URL) bool {
	return func(u *url.URL) bool {
		host := strings.ToLower(u.Hostname())
		for _, d := range domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return true
			}
		}
		return false
	}
}

func pathContains(segment string) func(*url.URL) bool {
	return func(u *url.URL) bool {
		return strings.Contains(u.Path, segment)
	}
}

// linkedinIsPost rejects documentation pages (/help/, /business/) that are
// not posts.
func linkedinIsPost(u *url.URL) bool {
	isPost := strings.Contains(u.Path, "/posts/") || strings.Contains(u.Path, "/feed/update/")
	isDoc := strings.Contains(u.Path, "/help/") || strings.Contains(u.Path, "/business/") ||
		strings.HasSuffix(u.Path, "/help") || strings.HasSuffix(u.Path, "/business")
	return isPost || !isDoc
}
