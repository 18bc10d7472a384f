// Package authz computes allow/deny verdicts for inbound requests.
//
// These are pure policy functions: no I/O, no shared state. Everything a
// decision needs is passed in; everything it produces goes into the Result.
package authz

import (
	"fmt"

	"authgateway/internal/platform/config"
	"authgateway/internal/session"
)

// Result is the verdict for one request. Never mutated after construction.
type Result struct {
	Allowed     bool
	Reason      string
	Whitelisted bool
}

// CheckAuditedRequest returns the verdict for requests to audited
// resources. Audited upstreams perform their own authentication, so the
// state of the session is deliberately ignored.
func CheckAuditedRequest(_ session.Session) Result {
	return Result{
		Allowed:     true,
		Reason:      "This is an audited request",
		Whitelisted: true,
	}
}

// CheckProtectedRequest returns the verdict for requests to protected
// resources based on the session. An invalid session may still be allowed
// when the requested path matches the app's whitelist: patterns are scanned
// in declaration order and the first match wins.
func CheckProtectedRequest(sess session.Session, host, originalURI string, conf *config.Config) Result {
	check := Result{
		Allowed: sess.Allowed,
		Reason:  "Session not valid",
	}
	if sess.Allowed {
		check.Reason = "Found valid session"
		return check
	}

	if host == "" {
		return check
	}
	app := conf.AppForHost(host)
	if app == nil {
		check.Reason = "Session not valid for unrecognised app"
		return check
	}

	for _, pattern := range app.Upstream.Patterns() {
		if pattern.Match(originalURI) {
			check.Allowed = true
			check.Reason = fmt.Sprintf("Path allowed by whitelist: '%s'", pattern)
			check.Whitelisted = true
			return check
		}
	}
	return check
}
