// Package preview implements draft mode: a signed session cookie that makes
// downstream content reads prefer unpublished revisions. The cookie is
// established only by presenting the server-held preview secret and carries
// no server-side state.
package preview

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CookieName is the draft-mode session cookie.
const CookieName = "millwright_preview"

// Mode is the resolved draft/publish state for one request.
type Mode struct {
	Draft bool
}

type cookiePayload struct {
	Draft    bool  `json:"draft"`
	IssuedAt int64 `json:"iat"`
}

// Resolver validates preview secrets and issues/verifies the draft-mode
// cookie. The zero value is unusable; construct with NewResolver.
type Resolver struct {
	secret    []byte
	cookieTTL time.Duration
}

func NewResolver(secret string, cookieTTL time.Duration) *Resolver {
	return &Resolver{secret: []byte(secret), cookieTTL: cookieTTL}
}

// ValidateSecret compares a presented secret against the configured value.
// Exact match only; the comparison runs over fixed-length digests so timing
// reveals nothing about either value.
func (r *Resolver) ValidateSecret(presented string) bool {
	if len(r.secret) == 0 || presented == "" {
		return false
	}
	presentedSum := sha256.Sum256([]byte(presented))
	configuredSum := sha256.Sum256(r.secret)
	return hmac.Equal(presentedSum[:], configuredSum[:])
}

// ResolveMode derives the draft/publish state from the request cookie.
// Missing, malformed or badly signed cookies resolve to published mode.
func (r *Resolver) ResolveMode(req *http.Request) Mode {
	cookie, err := req.Cookie(CookieName)
	if err != nil {
		return Mode{}
	}

	parts := strings.Split(cookie.Value, ".")
	if len(parts) != 2 {
		return Mode{}
	}
	expected := r.sign(parts[0])
	if !hmac.Equal([]byte(parts[1]), []byte(expected)) {
		return Mode{}
	}

	decoded, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Mode{}
	}
	var payload cookiePayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return Mode{}
	}
	return Mode{Draft: payload.Draft}
}

// IssueCookie creates the signed draft-mode cookie. Idempotent: entering
// draft mode twice simply reissues the cookie.
func (r *Resolver) IssueCookie() *http.Cookie {
	payload, _ := json.Marshal(cookiePayload{Draft: true, IssuedAt: time.Now().Unix()})
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return &http.Cookie{
		Name:     CookieName,
		Value:    encoded + "." + r.sign(encoded),
		Path:     "/",
		MaxAge:   int(r.cookieTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the draft-mode cookie. Idempotent.
func (r *Resolver) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (r *Resolver) sign(payload string) string {
	mac := hmac.New(sha256.New, r.secret)
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// SanitizeReturnPath restricts preview redirects to same-origin relative
// paths. Absolute URLs, scheme-relative URLs and anything that does not
// start with a single "/" fall back to the site root.
func SanitizeReturnPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "/") {
		return "/"
	}
	if strings.HasPrefix(path, "//") || strings.ContainsAny(path, "\\") {
		return "/"
	}
	parsed, err := url.Parse(path)
	if err != nil || parsed.IsAbs() || parsed.Host != "" {
		return "/"
	}
	return path
}
