// Package config loads and normalizes the gateway configuration.
//
// Configuration is declarative YAML overlaid on built-in defaults. Apps are
// "enhanced" after loading so the rest of the system can rely on every field
// being populated: titles default to names, app types are inferred from the
// populated sections, and host names are derived from the gateway domain.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfFile is used when no --config flag is given. A missing default
// file is not an error; a missing explicit file is.
const DefaultConfFile = "authgateway.yml"

// Bind is a listening address for one of the managed servers.
type Bind struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// Addr returns the address to listen on in host:port form. A wildcard
// bind listens on every interface.
func (b Bind) Addr() string {
	if b.Address == "*" {
		return fmt.Sprintf(":%d", b.Port)
	}
	return fmt.Sprintf("%s:%d", b.Address, b.Port)
}

// Host returns the address a client on the same machine should dial.
// A wildcard bind is reachable on localhost.
func (b Bind) Host() string {
	if b.Address == "*" {
		return "localhost"
	}
	return b.Address
}

// Gateway holds options for the control plane itself.
type Gateway struct {
	Domain             string `yaml:"domain"`
	Bind               Bind   `yaml:"bind"`
	TokenHMACAlgorithm string `yaml:"token_hmac_algorithm"`
}

// Process describes how to start a supervised child process.
type Process struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Signals maps lifecycle operations to signal names for a child process.
// Empty reload or logrotate means the process does not support the operation.
type Signals struct {
	Stop      string `yaml:"stop"`
	Reload    string `yaml:"reload"`
	Logrotate string `yaml:"logrotate"`
}

// SessionCookie identifies the auth proxy session cookie.
type SessionCookie struct {
	Name   string `yaml:"name"`
	Secret string `yaml:"secret"`
}

// AuthProxy configures the supervised authentication proxy (oauth2-proxy by
// default) and how the gateway talks to its session endpoint.
type AuthProxy struct {
	Bind           Bind              `yaml:"bind"`
	Prefix         string            `yaml:"prefix"`
	Session        SessionCookie     `yaml:"session"`
	OAuth          map[string]string `yaml:"oauth"`
	Extra          map[string]string `yaml:"extra"`
	Process        Process           `yaml:"process"`
	ConfigTemplate string            `yaml:"config_template"`
	Signals        Signals           `yaml:"signals"`
}

// TLS holds certificate material paths for the HTTP proxy.
type TLS struct {
	Certificate string `yaml:"certificate"`
	Key         string `yaml:"key"`
}

// HTTPProxy configures the supervised HTTP reverse proxy (nginx by default).
type HTTPProxy struct {
	Bind           Bind    `yaml:"bind"`
	Process        Process `yaml:"process"`
	ConfigTemplate string  `yaml:"config_template"`
	Signals        Signals `yaml:"signals"`
	TLS            TLS     `yaml:"tls"`
	HSTS           bool    `yaml:"hsts"`
}

// Auditor selects the audit backend. Endpoint is only meaningful for the
// http provider.
type Auditor struct {
	Provider string `yaml:"provider"`
	Endpoint string `yaml:"endpoint"`
}

// Config is the fully loaded gateway configuration.
type Config struct {
	Gateway   Gateway   `yaml:"gateway"`
	AuthProxy AuthProxy `yaml:"auth_proxy"`
	HTTPProxy HTTPProxy `yaml:"http_proxy"`
	Auditor   Auditor   `yaml:"auditor"`
	Apps      []*App    `yaml:"apps"`

	hosts hostIndex
}

// Default returns the built-in configuration, before any file overlay.
func Default() *Config {
	return &Config{
		Gateway: Gateway{
			Domain:             "example.com",
			Bind:               Bind{Address: "localhost", Port: 8090},
			TokenHMACAlgorithm: "sha256",
		},
		AuthProxy: AuthProxy{
			Bind:   Bind{Address: "localhost", Port: 4180},
			Prefix: "/oauth2",
			Session: SessionCookie{
				Name: "_oauth2_proxy",
			},
			Process: Process{
				Name:    "oauth2-proxy",
				Command: "oauth2-proxy",
			},
		},
		HTTPProxy: HTTPProxy{
			Bind: Bind{Address: "*", Port: 443},
			Process: Process{
				Name:    "nginx",
				Command: "nginx",
			},
			Signals: Signals{
				Stop:      "SIGQUIT",
				Reload:    "SIGHUP",
				Logrotate: "SIGUSR1",
			},
		},
		Auditor: Auditor{Provider: "null"},
	}
}

// Load reads a YAML configuration file on top of the defaults and returns
// the enhanced, validated result. An empty path falls back to
// DefaultConfFile, which is allowed to be absent.
func Load(path string) (*Config, error) {
	required := true
	if path == "" {
		path = DefaultConfFile
		required = false
	}

	conf := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, conf); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !required:
		// Run on defaults alone.
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := conf.Enhance(); err != nil {
		return nil, err
	}
	return conf, nil
}

// SessionEndpoint returns the URL to resolve sessions through. It targets
// the auth proxy bind, not the gateway's own: the call has to pass through
// the auth proxy so it validates the cookie and injects the X-Forwarded-*
// identity headers before the request reaches /api/proxied/session.
func (c *Config) SessionEndpoint() string {
	return fmt.Sprintf("http://%s:%d/api/proxied/session",
		c.AuthProxy.Bind.Host(), c.AuthProxy.Bind.Port)
}
