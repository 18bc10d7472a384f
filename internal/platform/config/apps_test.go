package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enhanced(t *testing.T, apps ...*App) *Config {
	t.Helper()
	conf := Default()
	conf.Apps = apps
	require.NoError(t, conf.Enhance())
	return conf
}

func TestEnhanceInfersTypes(t *testing.T) {
	conf := enhanced(t,
		&App{Name: "Wiki", Upstream: &Upstream{Host: "10.0.0.5:3000"}},
		&App{Name: "Grafana", Audit: &Audit{Host: "grafana.internal"}},
		&App{Name: "Handbook", URL: "https://handbook.example.com"},
		&App{Name: "Phone"},
	)

	assert.Equal(t, TypeUpstream, conf.Apps[0].Type)
	assert.Equal(t, TypeAudited, conf.Apps[1].Type)
	assert.Equal(t, TypeLink, conf.Apps[2].Type)
	assert.Equal(t, TypeUnknown, conf.Apps[3].Type)
}

func TestEnhanceFillsDerivedFields(t *testing.T) {
	conf := enhanced(t,
		&App{Name: "Wiki", Upstream: &Upstream{Host: "10.0.0.5:3000"}},
		&App{Name: "Grafana", Audit: &Audit{Host: "grafana.internal"}},
	)

	wiki := conf.Apps[0]
	assert.Equal(t, "wiki", wiki.ID)
	assert.Equal(t, "Wiki", wiki.Title)
	assert.Equal(t, "wiki", wiki.Upstream.Subdomain)
	assert.Equal(t, "http", wiki.Upstream.Protocol)

	grafana := conf.Apps[1]
	assert.Equal(t, "https", grafana.Audit.Protocol)
	assert.Equal(t, "grafana.example.com", grafana.Audit.ServerName)
	assert.Equal(t, "https://grafana.example.com/", grafana.Audit.URL)
}

func TestEnhanceKeepsExplicitFields(t *testing.T) {
	conf := enhanced(t, &App{
		Name:  "Wiki",
		ID:    "docs",
		Title: "Team Wiki",
		Upstream: &Upstream{
			Host:      "10.0.0.5:3000",
			Subdomain: "docs",
			Protocol:  "https",
		},
	})

	wiki := conf.Apps[0]
	assert.Equal(t, "docs", wiki.ID)
	assert.Equal(t, "Team Wiki", wiki.Title)
	assert.Equal(t, "docs", wiki.Upstream.Subdomain)
	assert.Equal(t, "https", wiki.Upstream.Protocol)
}

func TestEnhanceCompilesWhitelist(t *testing.T) {
	conf := enhanced(t, &App{
		Name: "Wiki",
		Upstream: &Upstream{
			Host:      "10.0.0.5:3000",
			Whitelist: []string{"^/public/", "^/api/status$"},
		},
	})

	patterns := conf.Apps[0].Upstream.Patterns()
	require.Len(t, patterns, 2)
	assert.True(t, patterns[0].Match("/public/readme"))
	assert.False(t, patterns[0].Match("/private"))
	assert.Equal(t, "^/public/", patterns[0].String())
}

func TestEnhanceRejectsInvalidApps(t *testing.T) {
	cases := map[string]*App{
		"nameless": {Upstream: &Upstream{Host: "h"}},
		"upstream with audit": {
			Name:     "X",
			Upstream: &Upstream{Host: "h"},
			Audit:    &Audit{Host: "h"},
		},
		"audited with url": {
			Name:  "X",
			URL:   "https://x",
			Type:  TypeAudited,
			Audit: &Audit{Host: "h"},
		},
		"link without url":      {Name: "X", Type: TypeLink},
		"unsupported type":      {Name: "X", Type: "teleport"},
		"upstream without body": {Name: "X", Type: TypeUpstream},
		"bad whitelist regexp": {
			Name:     "X",
			Upstream: &Upstream{Host: "h", Whitelist: []string{"("}},
		},
	}
	for name, app := range cases {
		t.Run(name, func(t *testing.T) {
			conf := Default()
			conf.Apps = []*App{app}
			assert.Error(t, conf.Enhance())
		})
	}
}

func TestAppForHost(t *testing.T) {
	conf := enhanced(t,
		&App{Name: "Wiki", Upstream: &Upstream{Host: "10.0.0.5:3000"}},
		&App{Name: "Grafana", Audit: &Audit{Host: "grafana.internal"}},
	)

	require.NotNil(t, conf.AppForHost("wiki.example.com"))
	assert.Equal(t, "Wiki", conf.AppForHost("wiki.example.com").Name)
	assert.Nil(t, conf.AppForHost("grafana.example.com"), "audited apps are not upstream routable")
	assert.Nil(t, conf.AppForHost("nope.example.com"))
}

func TestUpstreamAndAuditedApps(t *testing.T) {
	conf := enhanced(t,
		&App{Name: "Wiki", Upstream: &Upstream{Host: "10.0.0.5:3000"}},
		&App{Name: "Grafana", Audit: &Audit{Host: "grafana.internal"}},
		&App{Name: "Handbook", URL: "https://handbook.example.com"},
	)

	require.Len(t, conf.UpstreamApps(), 1)
	assert.Equal(t, "Wiki", conf.UpstreamApps()[0].Name)
	require.Len(t, conf.AuditedApps(), 1)
	assert.Equal(t, "Grafana", conf.AuditedApps()[0].Name)
}
