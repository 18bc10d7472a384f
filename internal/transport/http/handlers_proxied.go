package httptransport

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"net/http"
	"strings"

	"authgateway/internal/platform/httputil"
)

// proxiedSession is the session introspection payload. Pointer fields keep
// the "not logged in" case explicit as JSON nulls.
type proxiedSession struct {
	Allowed  bool    `json:"allowed"`
	Email    *string `json:"email"`
	Gravatar *string `json:"gravatar"`
	ID       *string `json:"id"`
	User     *string `json:"user"`
}

// handleProxiedSession derives user and session details from the identity
// headers the auth proxy forwards. The session id is an HMAC of the access
// token so the token itself never leaves this handler.
func (h *Handler) handleProxiedSession(w http.ResponseWriter, r *http.Request) {
	email := r.Header.Get("X-Forwarded-Email")
	token := r.Header.Get("X-Forwarded-Access-Token")
	user := r.Header.Get("X-Forwarded-User")

	sess := proxiedSession{
		Allowed: user != "",
		Email:   orNull(email),
		User:    orNull(user),
	}

	if token != "" {
		mac := hmac.New(
			digestFor(h.conf.Gateway.TokenHMACAlgorithm),
			[]byte(h.conf.AuthProxy.Session.Secret),
		)
		mac.Write([]byte(token))
		id := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		sess.ID = &id
	}
	if email != "" {
		sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
		gravatar := hex.EncodeToString(sum[:])
		sess.Gravatar = &gravatar
	}

	httputil.WriteJSON(w, http.StatusOK, sess)
}

// digestFor maps the configured digest name to its constructor. The name
// was validated at config load time; sha256 covers the unreachable default.
func digestFor(algorithm string) func() hash.Hash {
	switch algorithm {
	case "md5":
		return md5.New
	case "sha1":
		return sha1.New
	case "sha512":
		return sha512.New
	default:
		return sha256.New
	}
}

func orNull(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
