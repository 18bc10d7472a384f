// Package auditor records access decisions and may veto them.
//
// An Auditor receives every decision the gateway makes. Its answer is an
// optional HTTP status override: when present it supersedes the locally
// computed allow/deny code. Exactly one auditor backend is live at a time,
// selected by configuration from a fixed provider set.
package auditor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"authgateway/internal/authz"
	"authgateway/internal/platform/config"
	"authgateway/internal/session"
)

// Decision values recorded on audit records.
const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)

// Record captures one access decision for reporting. It is built once per
// request and submitted exactly once to the active auditor.
type Record struct {
	Email       string `json:"email"`
	Protocol    string `json:"protocol"`
	Resource    string `json:"resource"`
	Reason      string `json:"reason"`
	Result      string `json:"result"`
	SessionID   string `json:"session_id"`
	Timestamp   int64  `json:"timestamp"`
	User        string `json:"user"`
	Whitelisted bool   `json:"whitelisted"`
}

// NewRecord assembles the audit record for one request. The resource is the
// original URL reconstructed from the forwarded protocol, host, and URI.
// Its main purpose is to set every attribute consistently across all
// allow/deny paths.
func NewRecord(proto, host, uri string, sess session.Session, result authz.Result, now time.Time) Record {
	decision := ResultDeny
	if result.Allowed {
		decision = ResultAllow
	}
	return Record{
		Email:       sess.Email,
		Protocol:    "https",
		Resource:    fmt.Sprintf("%s://%s%s", proto, host, uri),
		Reason:      result.Reason,
		Result:      decision,
		SessionID:   sess.ID,
		Timestamp:   now.UnixMilli(),
		User:        sess.User,
		Whitelisted: result.Whitelisted,
	}
}

// Auditor records a decision and may override its outcome. The returned
// status supersedes the locally computed response code when ok is true;
// ok false means the auditor has no opinion.
type Auditor interface {
	Audit(ctx context.Context, record Record) (status int, ok bool)
}

// Registry holds the single live auditor for the process. It is explicit
// state built in main and injected into whoever audits, with a lifecycle
// reserved for tests to reset.
type Registry struct {
	mu       sync.Mutex
	auditor  Auditor
	provider string
}

// NewRegistry returns an empty registry. Init must be called before
// Instance.
func NewRegistry() *Registry {
	return &Registry{}
}

// Init selects and builds the auditor named by the configuration. Unknown
// provider names are a configuration error. Re-initialising while a
// non-test provider is live is disallowed; tests go through Reset first.
func (r *Registry) Init(conf config.Auditor, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.auditor != nil && r.provider != ProviderTest {
		return fmt.Errorf("auditor already initialised with provider %q", r.provider)
	}

	auditor, err := newProvider(conf, opts)
	if err != nil {
		return err
	}
	r.auditor = auditor
	r.provider = conf.Provider
	return nil
}

// Instance returns the live auditor. Calling it before Init is a
// programming defect and panics.
func (r *Registry) Instance() Auditor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.auditor == nil {
		panic("auditor: registry not initialised")
	}
	return r.auditor
}

// Reset clears the registry for test isolation. Only a test provider can
// be cleared; resetting a production auditor is refused silently.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.provider == ProviderTest {
		r.auditor = nil
		r.provider = ""
	}
}
