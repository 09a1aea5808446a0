// Package auth acquires bearer credentials for the Log Analytics and Azure
// Resource Manager APIs, preferring a cached session and falling back to an
// interactive sign-in when the identity platform demands user presence.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	LogAnalyticsScope = "https://api.loganalytics.io/Data.Read"
	ManagementScope   = "https://management.azure.com/user_impersonation"
)

// LoginScopes are added to every interactive sign-in so the session carries an
// ID token and a refresh token.
var LoginScopes = []string{"openid", "profile", "offline_access"}

var (
	// ErrInteractionRequired means silent acquisition cannot succeed without
	// the user (consent, MFA, expired or missing session).
	ErrInteractionRequired = errors.New("interactive sign-in required")

	// ErrRedirected means the interactive path has handed control away from
	// the running call. It is not a failure; the caller must not resume.
	ErrRedirected = errors.New("sign-in redirected")
)

// Credential is a bearer token and what little we know about it.
type Credential struct {
	Token     string
	ExpiresAt time.Time
	Account   string
}

// Provider is the identity platform seen from the query engine.
type Provider interface {
	AcquireSilent(ctx context.Context, scopes []string) (Credential, error)
	AcquireInteractive(ctx context.Context, scopes []string) (Credential, error)
}

// Acquire tries the silent path and falls back to the interactive one only
// when the silent failure asks for user interaction. Any other failure is
// returned unchanged.
func Acquire(ctx context.Context, p Provider, scopes []string) (Credential, error) {
	cred, err := p.AcquireSilent(ctx, scopes)
	if err == nil {
		return cred, nil
	}
	if !errors.Is(err, ErrInteractionRequired) {
		return Credential{}, err
	}
	return p.AcquireInteractive(ctx, scopes)
}

// IsRedirect reports whether err is the non-resuming interactive hand-off.
func IsRedirect(err error) bool {
	return errors.Is(err, ErrRedirected)
}

// CacheKey is the token cache key for a scope set, independent of order.
func CacheKey(scopes []string) string {
	s := append([]string(nil), scopes...)
	sort.Strings(s)
	return strings.Join(s, " ")
}

// inspectToken reads expiry and account hints from a JWT access token without
// verifying it; the resource server does the verification.
func inspectToken(raw string) (time.Time, string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, ""
	}
	var exp time.Time
	if e, err := claims.GetExpirationTime(); err == nil && e != nil {
		exp = e.Time
	}
	for _, k := range []string{"upn", "preferred_username", "unique_name", "email", "appid"} {
		if s, ok := claims[k].(string); ok && s != "" {
			return exp, s
		}
	}
	return exp, ""
}

// StaticProvider serves a pre-issued bearer token.
type StaticProvider struct {
	token string
	now   func() time.Time
}

func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: strings.TrimSpace(token), now: time.Now}
}

func (p *StaticProvider) AcquireSilent(_ context.Context, _ []string) (Credential, error) {
	if p.token == "" {
		return Credential{}, fmt.Errorf("no static token: %w", ErrInteractionRequired)
	}
	exp, account := inspectToken(p.token)
	if !exp.IsZero() && !p.now().Before(exp) {
		return Credential{}, fmt.Errorf("static token expired at %s: %w", exp.Format(time.RFC3339), ErrInteractionRequired)
	}
	return Credential{Token: p.token, ExpiresAt: exp, Account: account}, nil
}

func (p *StaticProvider) AcquireInteractive(_ context.Context, _ []string) (Credential, error) {
	return Credential{}, ErrRedirected
}
