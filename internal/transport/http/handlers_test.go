package httptransport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgateway/internal/arbiter"
	"authgateway/internal/arbiter/metrics"
	"authgateway/internal/auditor"
	"authgateway/internal/platform/config"
	"authgateway/internal/session"
)

const cookieName = "_oauth2_proxy"

type fixture struct {
	router   http.Handler
	recorder *auditor.Recorder
	conf     *config.Config
}

func newFixture(t *testing.T, sessionAllowed bool, whitelist ...string) *fixture {
	t.Helper()

	conf := config.Default()
	conf.Gateway.Domain = "example.com"
	conf.AuthProxy.Session.Secret = "seed"
	conf.Apps = []*config.App{
		{
			Name: "App",
			Upstream: &config.Upstream{
				Host:      "127.0.0.1:9000",
				Whitelist: whitelist,
			},
		},
	}
	require.NoError(t, conf.Enhance())

	body := `{"allowed":false}`
	if sessionAllowed {
		body = `{"allowed":true,"email":"abc@example.com","id":"1234","user":"abc"}`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	reg := auditor.NewRegistry()
	require.NoError(t, reg.Init(config.Auditor{Provider: auditor.ProviderTest}, auditor.Options{}))

	logger := slog.Default()
	resolver := session.NewResolver(srv.URL, cookieName, srv.Client(), logger)
	svc := arbiter.New(conf, resolver, reg, logger,
		arbiter.WithMetrics(metrics.NewWith(prometheus.NewRegistry())),
	)
	h := NewHandler(svc, conf, logger)
	return &fixture{
		router:   NewRouter(h, logger),
		recorder: reg.Instance().(*auditor.Recorder),
		conf:     conf,
	}
}

func (f *fixture) get(path string, decorate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if decorate != nil {
		decorate(req)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func forwarded(host, uri string, withCookie bool) func(*http.Request) {
	return func(r *http.Request) {
		r.Host = host
		r.Header.Set("X-Forwarded-Proto", "https")
		r.Header.Set("X-Original-URI", uri)
		if withCookie {
			r.AddCookie(&http.Cookie{Name: cookieName, Value: "opaque"})
		}
	}
}

func TestAuthDeniedHasEmptyBody(t *testing.T) {
	f := newFixture(t, false)

	w := f.get("/api/auth", forwarded("app.example.com", "/secret", true))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestAuthAllowed(t *testing.T) {
	f := newFixture(t, true)

	w := f.get("/api/auth", forwarded("app.example.com", "/secret", true))

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestAuthWhitelisted(t *testing.T) {
	f := newFixture(t, false, "/public.*")

	w := f.get("/api/auth", forwarded("app.example.com", "/public/x", true))

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestAuditAlwaysAccepted(t *testing.T) {
	f := newFixture(t, false)

	w := f.get("/api/audit", forwarded("books.example.com", "/any", false))

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.recorder.Records(), 1)
}

func TestAuditOverride(t *testing.T) {
	f := newFixture(t, false)
	f.recorder.SetOverride(http.StatusInternalServerError)

	w := f.get("/api/audit", forwarded("books.example.com", "/any", false))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)

	w := f.get("/api/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestProxiedSessionAnonymous(t *testing.T) {
	f := newFixture(t, false)

	w := f.get("/api/proxied/session", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"allowed":false,"email":null,"gravatar":null,"id":null,"user":null}`,
		w.Body.String(),
	)
}

func TestProxiedSessionLoggedIn(t *testing.T) {
	f := newFixture(t, false)

	w := f.get("/api/proxied/session", func(r *http.Request) {
		r.Header.Set("X-Forwarded-Email", " ABC@Example.com ")
		r.Header.Set("X-Forwarded-User", "abc")
		r.Header.Set("X-Forwarded-Access-Token", "token-123")
	})

	assert.Equal(t, http.StatusOK, w.Code)
	var sess proxiedSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.True(t, sess.Allowed)
	require.NotNil(t, sess.Email)
	assert.Equal(t, " ABC@Example.com ", *sess.Email)
	require.NotNil(t, sess.User)
	assert.Equal(t, "abc", *sess.User)

	// The session id is the base64 HMAC of the access token.
	mac := hmac.New(sha256.New, []byte("seed"))
	mac.Write([]byte("token-123"))
	require.NotNil(t, sess.ID)
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), *sess.ID)

	// Gravatar hashes the trimmed, lowercased email.
	require.NotNil(t, sess.Gravatar)
	assert.Equal(t, "b28d5fe8da784e36235a487c03a47353", *sess.Gravatar)
}

func TestProxiedMetricsExposed(t *testing.T) {
	f := newFixture(t, false)

	w := f.get("/api/proxied/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
