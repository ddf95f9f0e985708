// Package delivery decides how credentials travel for a request: HTTP-only
// cookies for browsers, JSON bodies and headers for mobile clients.
package delivery

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/domain"
)

// ClientType classifies the caller.
type ClientType string

const (
	Web    ClientType = "web"
	Mobile ClientType = "mobile"
)

// Cookie names.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// ParseClientType maps a header value to a client type. Anything other than
// "mobile" is a web client.
func ParseClientType(v string) ClientType {
	if strings.EqualFold(strings.TrimSpace(v), string(Mobile)) {
		return Mobile
	}
	return Web
}

type ctxKey struct{}

// WithClient stores c in ctx.
func WithClient(ctx context.Context, c ClientType) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// ClientFrom returns the client type stored in ctx, or Web.
func ClientFrom(ctx context.Context) ClientType {
	if c, ok := ctx.Value(ctxKey{}).(ClientType); ok {
		return c
	}
	return Web
}

// Tokens is the JSON form of a credential pair for mobile clients.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Strategy encodes credential pairs for a client type and reads them back.
type Strategy struct {
	cookie        config.CookieSettings
	tokens        config.TokenLifetimes
	clientHeader  string
	refreshHeader string
}

func NewStrategy(cfg *config.Config) *Strategy {
	return &Strategy{
		cookie:        cfg.Cookie,
		tokens:        cfg.Tokens,
		clientHeader:  cfg.ClientTypeHeader,
		refreshHeader: cfg.RefreshTokenHeader,
	}
}

// ClientType reads the client type header of r.
func (s *Strategy) ClientType(r *http.Request) ClientType {
	return ParseClientType(r.Header.Get(s.clientHeader))
}

// Encode returns the cookies to set and the body fragment to embed for pair.
// Web clients get cookies only; mobile clients get the body only.
func (s *Strategy) Encode(client ClientType, pair *domain.TokenPair) ([]*http.Cookie, *Tokens) {
	if client == Mobile {
		return nil, &Tokens{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
	}
	return []*http.Cookie{
		s.newCookie(AccessCookie, pair.AccessToken, s.tokens.Access),
		s.newCookie(RefreshCookie, pair.RefreshToken, s.tokens.Refresh),
	}, nil
}

// Clear returns cookies that delete both credentials in the browser.
func (s *Strategy) Clear() []*http.Cookie {
	access := s.newCookie(AccessCookie, "", 0)
	refresh := s.newCookie(RefreshCookie, "", 0)
	for _, c := range []*http.Cookie{access, refresh} {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	}
	return []*http.Cookie{access, refresh}
}

func (s *Strategy) newCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.cookie.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// RefreshToken locates the refresh token of r. Web clients carry it in a
// cookie; mobile clients in the refresh header or, failing that, bodyToken.
func (s *Strategy) RefreshToken(r *http.Request, client ClientType, bodyToken string) string {
	if client == Web {
		return cookieValue(r, RefreshCookie)
	}
	if v := strings.TrimSpace(r.Header.Get(s.refreshHeader)); v != "" {
		return v
	}
	return strings.TrimSpace(bodyToken)
}

// AccessCandidates lists access tokens presented by r in the order they
// should be tried: the cookie first for web clients, then the bearer header.
func (s *Strategy) AccessCandidates(r *http.Request, client ClientType) []string {
	var out []string
	if client == Web {
		if v := cookieValue(r, AccessCookie); v != "" {
			out = append(out, v)
		}
	}
	if v := bearer(r); v != "" {
		out = append(out, v)
	}
	return out
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
