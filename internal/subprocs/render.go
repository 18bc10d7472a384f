package subprocs

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"text/template"

	"authgateway/internal/platform/config"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// authProxyContext is the render context for the auth proxy config file.
type authProxyContext struct {
	Auth struct {
		Address string
		Port    int
		Prefix  string
		Session config.SessionCookie
		OAuth   map[string]string
		Extra   map[string]string
	}
	Gateway struct {
		Domain string
		Host   string
		Port   int
	}
	Proxy struct {
		Port int
	}
}

// RenderAuthProxyConfig renders the main configuration file for the auth
// proxy, oauth2-proxy by default. The template is flexible enough that auth
// proxies can be swapped without code changes.
func RenderAuthProxyConfig(conf *config.Config) (string, error) {
	var ctx authProxyContext
	ctx.Auth.Address = conf.AuthProxy.Bind.Host()
	ctx.Auth.Port = conf.AuthProxy.Bind.Port
	ctx.Auth.Prefix = conf.AuthProxy.Prefix
	ctx.Auth.Session = conf.AuthProxy.Session
	ctx.Auth.OAuth = conf.AuthProxy.OAuth
	ctx.Auth.Extra = conf.AuthProxy.Extra
	ctx.Gateway.Domain = conf.Gateway.Domain
	ctx.Gateway.Host = conf.Gateway.Bind.Host()
	ctx.Gateway.Port = conf.Gateway.Bind.Port
	ctx.Proxy.Port = conf.HTTPProxy.Bind.Port

	return render("oauth2_proxy.cfg.tmpl", conf.AuthProxy.ConfigTemplate, ctx)
}

// httpProxyContext is the render context for the HTTP proxy config file.
type httpProxyContext struct {
	Apps struct {
		Audited   []*config.App
		Upstreams []*config.App
	}
	Auth struct {
		Host   string
		Port   int
		Prefix string
	}
	Gateway struct {
		Domain string
		Host   string
		Port   int
	}
	Proxy struct {
		Bind config.Bind
		HSTS bool
		TLS  config.TLS
	}
}

// RenderHTTPProxyConfig renders the main configuration file for the HTTP
// proxy, nginx by default (it must support the auth_request directive).
func RenderHTTPProxyConfig(conf *config.Config) (string, error) {
	var ctx httpProxyContext
	ctx.Apps.Audited = conf.AuditedApps()
	ctx.Apps.Upstreams = conf.UpstreamApps()
	ctx.Auth.Host = conf.AuthProxy.Bind.Host()
	ctx.Auth.Port = conf.AuthProxy.Bind.Port
	ctx.Auth.Prefix = conf.AuthProxy.Prefix
	ctx.Gateway.Domain = conf.Gateway.Domain
	ctx.Gateway.Host = conf.Gateway.Bind.Host()
	ctx.Gateway.Port = conf.Gateway.Bind.Port
	ctx.Proxy.Bind = conf.HTTPProxy.Bind
	ctx.Proxy.HSTS = conf.HTTPProxy.HSTS
	ctx.Proxy.TLS = conf.HTTPProxy.TLS

	return render("nginx.conf.tmpl", conf.HTTPProxy.ConfigTemplate, ctx)
}

// render executes the embedded template by name, or an override template
// loaded from the configured path when one is given.
func render(name, overridePath string, ctx any) (string, error) {
	var (
		tmpl *template.Template
		err  error
	)
	if overridePath != "" {
		data, readErr := os.ReadFile(overridePath)
		if readErr != nil {
			return "", fmt.Errorf("reading config template: %w", readErr)
		}
		tmpl, err = template.New(name).Parse(string(data))
	} else {
		tmpl, err = template.ParseFS(defaultTemplates, "templates/"+name)
	}
	if err != nil {
		return "", fmt.Errorf("parsing config template %s: %w", name, err)
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, ctx); err != nil {
		return "", fmt.Errorf("rendering config template %s: %w", name, err)
	}
	return out.String(), nil
}
