package config

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// App types. The type is usually inferred from which section is populated.
const (
	TypeLink     = "link"
	TypeUpstream = "upstream"
	TypeAudited  = "audited"
	TypeUnknown  = "unknown"
)

// Pattern is one compiled whitelist entry. The raw source is kept so
// decisions can report exactly which declared pattern matched.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

func (p Pattern) String() string { return p.raw }

// Match reports whether the pattern matches anywhere in uri.
func (p Pattern) Match(uri string) bool { return p.re.MatchString(uri) }

// Upstream describes a protected app served through the HTTP proxy.
type Upstream struct {
	Host      string   `yaml:"host"`
	Protocol  string   `yaml:"protocol"`
	Subdomain string   `yaml:"subdomain"`
	Whitelist []string `yaml:"whitelist"`

	patterns []Pattern
}

// Patterns returns the compiled whitelist in declaration order.
func (u *Upstream) Patterns() []Pattern { return u.patterns }

// Audit describes an app that authenticates its own users; the gateway only
// records access to it.
type Audit struct {
	Host       string `yaml:"host"`
	Protocol   string `yaml:"protocol"`
	ServerName string `yaml:"server_name"`
	URL        string `yaml:"url"`
}

// App is a single application fronted by the gateway.
type App struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	Title    string    `yaml:"title"`
	Type     string    `yaml:"type"`
	URL      string    `yaml:"url"`
	Upstream *Upstream `yaml:"upstream"`
	Audit    *Audit    `yaml:"audit"`
}

// Enhance fills derived app fields and validates structural invariants.
// Load calls it once so the rest of the system never sees a partially
// populated app; tests building configs programmatically call it directly.
func (c *Config) Enhance() error {
	switch c.Gateway.TokenHMACAlgorithm {
	case "md5", "sha1", "sha256", "sha512":
	default:
		return fmt.Errorf("unsupported token_hmac_algorithm %q", c.Gateway.TokenHMACAlgorithm)
	}

	for _, app := range c.Apps {
		if app.Name == "" {
			return fmt.Errorf("app without a name in configuration")
		}
		if app.ID == "" {
			app.ID = strings.ToLower(app.Name)
		}
		if app.Title == "" {
			app.Title = app.Name
		}

		if app.Type == "" {
			switch {
			case app.Audit != nil:
				app.Type = TypeAudited
			case app.Upstream != nil:
				app.Type = TypeUpstream
			case app.URL != "":
				app.Type = TypeLink
			default:
				app.Type = TypeUnknown
			}
		}

		if err := c.enhanceApp(app); err != nil {
			return fmt.Errorf("app %s: %w", app.Name, err)
		}
	}
	return nil
}

func (c *Config) enhanceApp(app *App) error {
	switch app.Type {
	case TypeUpstream:
		if app.Upstream == nil {
			return fmt.Errorf("type upstream requires an upstream section")
		}
		if app.Audit != nil || app.URL != "" {
			return fmt.Errorf("upstream apps cannot carry audit or url sections")
		}
		up := app.Upstream
		if up.Subdomain == "" {
			up.Subdomain = strings.ToLower(app.Name)
		}
		if up.Protocol == "" {
			up.Protocol = "http"
		}
		up.patterns = make([]Pattern, 0, len(up.Whitelist))
		for _, raw := range up.Whitelist {
			re, err := regexp.Compile(raw)
			if err != nil {
				return fmt.Errorf("invalid whitelist pattern %q: %w", raw, err)
			}
			up.patterns = append(up.patterns, Pattern{raw: raw, re: re})
		}

	case TypeAudited:
		if app.Audit == nil {
			return fmt.Errorf("type audited requires an audit section")
		}
		if app.Upstream != nil || app.URL != "" {
			return fmt.Errorf("audited apps cannot carry upstream or url sections")
		}
		au := app.Audit
		if au.Protocol == "" {
			au.Protocol = "https"
		}
		if au.ServerName == "" {
			au.ServerName = strings.ToLower(app.Name) + "." + c.Gateway.Domain
		}
		if au.URL == "" {
			au.URL = au.Protocol + "://" + au.ServerName + "/"
		}

	case TypeLink:
		if app.URL == "" {
			return fmt.Errorf("type link requires a url")
		}
		if app.Upstream != nil || app.Audit != nil {
			return fmt.Errorf("link apps cannot carry upstream or audit sections")
		}

	case TypeUnknown:
		// Listed on the portal but not routable.

	default:
		return fmt.Errorf("unsupported app type %q", app.Type)
	}
	return nil
}

// hostIndex maps full host names to their upstream app, built at most once.
type hostIndex struct {
	once  sync.Once
	byHost map[string]*App
}

// AppForHost returns the upstream app serving the given Host header, or nil
// if the host is not recognised.
func (c *Config) AppForHost(host string) *App {
	c.hosts.once.Do(func() {
		c.hosts.byHost = make(map[string]*App)
		for _, app := range c.Apps {
			if app.Type != TypeUpstream {
				continue
			}
			name := app.Upstream.Subdomain + "." + c.Gateway.Domain
			c.hosts.byHost[name] = app
		}
	})
	return c.hosts.byHost[host]
}

// UpstreamApps returns all upstream apps. Audited counterparts are returned
// by AuditedApps; both slices preserve declaration order.
func (c *Config) UpstreamApps() []*App {
	return c.appsOfType(TypeUpstream)
}

// AuditedApps returns all audited apps in declaration order.
func (c *Config) AuditedApps() []*App {
	return c.appsOfType(TypeAudited)
}

func (c *Config) appsOfType(t string) []*App {
	var out []*App
	for _, app := range c.Apps {
		if app.Type == t {
			out = append(out, app)
		}
	}
	return out
}
