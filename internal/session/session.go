// Package session resolves caller identity for inbound requests.
package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// Session types.
const (
	TypeCookie = "cookie"
	TypeNone   = "none"
)

// Session is the caller identity attached to one request. It is built once
// by the resolver and never mutated afterwards.
type Session struct {
	Allowed  bool   `json:"allowed"`
	Email    string `json:"email"`
	Gravatar string `json:"gravatar"`
	ID       string `json:"id"`
	User     string `json:"user"`
	Type     string `json:"-"`
}

// Anonymous returns the session used when no caller identity can be
// established.
func Anonymous() Session {
	return Session{Type: TypeNone}
}

// Resolver translates a request's session cookie into a Session by calling
// the auth proxy backed session endpoint.
type Resolver struct {
	endpoint   string
	cookieName string
	client     *http.Client
	logger     *slog.Logger
}

// NewResolver builds a resolver for the given session endpoint and cookie
// name. A nil client falls back to http.DefaultClient.
func NewResolver(endpoint, cookieName string, client *http.Client, logger *slog.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{
		endpoint:   endpoint,
		cookieName: cookieName,
		client:     client,
		logger:     logger,
	}
}

// Resolve returns the session for the given request.
//
// Requests without the session cookie resolve to the anonymous session
// locally. Otherwise the session endpoint is queried with the cookie
// forwarded; any transport error, non-2xx status, or malformed body also
// collapses to the anonymous session. Resolution failures are never
// surfaced to the caller.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) Session {
	cookie, err := req.Cookie(r.cookieName)
	if err != nil || cookie.Value == "" {
		return Anonymous()
	}
	return r.fetch(ctx, cookie)
}

func (r *Resolver) fetch(ctx context.Context, cookie *http.Cookie) Session {
	out, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return Anonymous()
	}
	out.AddCookie(&http.Cookie{Name: r.cookieName, Value: cookie.Value})

	resp, err := r.client.Do(out)
	if err != nil {
		r.logger.DebugContext(ctx, "session endpoint unreachable", "error", err)
		return Anonymous()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Anonymous()
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Anonymous()
	}

	var sess Session
	if err := json.Unmarshal(body, &sess); err != nil {
		return Anonymous()
	}
	sess.Type = TypeCookie
	return sess
}
