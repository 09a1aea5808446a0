package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	DefaultAuthority = "https://login.microsoftonline.com"
	sessionKey       = "session"
	expirySkew       = 60 * time.Second
)

// CachedToken is one row of the token cache.
type CachedToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Account      string
}

// TokenCache persists sessions between runs.
type TokenCache interface {
	Token(ctx context.Context, key string) (CachedToken, bool, error)
	PutToken(ctx context.Context, key string, tok CachedToken) error
}

// DeviceCode is what the user needs to complete a device-code sign-in.
type DeviceCode struct {
	UserCode        string
	VerificationURI string
	Expiry          time.Time
}

func (d DeviceCode) Message() string {
	return fmt.Sprintf("To sign in, open %s and enter the code %s", d.VerificationURI, d.UserCode)
}

type EntraConfig struct {
	Authority  string
	Tenant     string
	ClientID   string
	HTTPClient *http.Client
}

// EntraProvider talks to the Microsoft identity platform. Silent acquisition
// uses the cached session; interactive acquisition runs the device-code grant
// when a prompt is configured and otherwise hands off with ErrRedirected.
type EntraProvider struct {
	cfg    EntraConfig
	cache  TokenCache
	prompt func(DeviceCode) error
	logger *slog.Logger
	now    func() time.Time
}

func NewEntraProvider(cfg EntraConfig, cache TokenCache, logger *slog.Logger) *EntraProvider {
	if cfg.Authority == "" {
		cfg.Authority = DefaultAuthority
	}
	cfg.Authority = strings.TrimRight(cfg.Authority, "/")
	if cfg.Tenant == "" {
		cfg.Tenant = "organizations"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &EntraProvider{cfg: cfg, cache: cache, logger: logger, now: time.Now}
}

// WithPrompt returns a copy whose interactive path runs the device-code flow,
// reporting the code through prompt.
func (p *EntraProvider) WithPrompt(prompt func(DeviceCode) error) *EntraProvider {
	cp := *p
	cp.prompt = prompt
	return &cp
}

func (p *EntraProvider) endpoint() oauth2.Endpoint {
	base := p.cfg.Authority + "/" + url.PathEscape(p.cfg.Tenant) + "/oauth2/v2.0"
	return oauth2.Endpoint{
		AuthURL:       base + "/authorize",
		TokenURL:      base + "/token",
		DeviceAuthURL: base + "/devicecode",
		AuthStyle:     oauth2.AuthStyleInParams,
	}
}

func (p *EntraProvider) jwksURL() string {
	return p.cfg.Authority + "/" + url.PathEscape(p.cfg.Tenant) + "/discovery/v2.0/keys"
}

func (p *EntraProvider) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.cfg.HTTPClient)
}

func (p *EntraProvider) AcquireSilent(ctx context.Context, scopes []string) (Credential, error) {
	key := CacheKey(scopes)
	cached, ok, err := p.cache.Token(ctx, key)
	if err != nil {
		return Credential{}, fmt.Errorf("read token cache: %w", err)
	}
	if ok && cached.AccessToken != "" && p.now().Add(expirySkew).Before(cached.Expiry) {
		return Credential{Token: cached.AccessToken, ExpiresAt: cached.Expiry, Account: cached.Account}, nil
	}

	session, ok, err := p.cache.Token(ctx, sessionKey)
	if err != nil {
		return Credential{}, fmt.Errorf("read session: %w", err)
	}
	if !ok || session.RefreshToken == "" {
		return Credential{}, fmt.Errorf("no cached session: %w", ErrInteractionRequired)
	}

	tok, err := p.refresh(ctx, session.RefreshToken, scopes)
	if err != nil {
		return Credential{}, err
	}
	account := session.Account
	if account == "" {
		_, account = inspectToken(tok.AccessToken)
	}
	if err := p.store(ctx, key, tok, account); err != nil {
		return Credential{}, err
	}
	p.logger.Debug("token refreshed", "scopes", key, "expires", tok.Expiry)
	return Credential{Token: tok.AccessToken, ExpiresAt: tok.Expiry, Account: account}, nil
}

func (p *EntraProvider) AcquireInteractive(ctx context.Context, scopes []string) (Credential, error) {
	if p.prompt == nil {
		return Credential{}, ErrRedirected
	}
	return p.Login(ctx, scopes, p.prompt)
}

// Login runs the device-code grant for scopes and caches the session.
func (p *EntraProvider) Login(ctx context.Context, scopes []string, prompt func(DeviceCode) error) (Credential, error) {
	conf := &oauth2.Config{
		ClientID: p.cfg.ClientID,
		Endpoint: p.endpoint(),
		Scopes:   append(append([]string(nil), scopes...), LoginScopes...),
	}
	hctx := p.httpContext(ctx)

	da, err := conf.DeviceAuth(hctx)
	if err != nil {
		return Credential{}, fmt.Errorf("start device sign-in: %w", err)
	}
	if err := prompt(DeviceCode{UserCode: da.UserCode, VerificationURI: da.VerificationURI, Expiry: da.Expiry}); err != nil {
		return Credential{}, fmt.Errorf("show device code: %w", err)
	}

	tok, err := conf.DeviceAccessToken(hctx, da)
	if err != nil {
		return Credential{}, fmt.Errorf("complete device sign-in: %w", err)
	}

	account := p.accountFromIDToken(ctx, tok)
	if account == "" {
		_, account = inspectToken(tok.AccessToken)
	}
	if err := p.store(ctx, CacheKey(scopes), tok, account); err != nil {
		return Credential{}, err
	}
	p.logger.Info("signed in", "account", account)
	return Credential{Token: tok.AccessToken, ExpiresAt: tok.Expiry, Account: account}, nil
}

func (p *EntraProvider) accountFromIDToken(ctx context.Context, tok *oauth2.Token) string {
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return ""
	}
	keySet := oidc.NewRemoteKeySet(p.httpContext(ctx), p.jwksURL())
	// Multi-tenant authorities issue tokens for the user's home tenant, so the
	// issuer cannot be known up front.
	verifier := oidc.NewVerifier("", keySet, &oidc.Config{ClientID: p.cfg.ClientID, SkipIssuerCheck: true})
	idToken, err := verifier.Verify(ctx, raw)
	if err != nil {
		p.logger.Warn("id token verification failed", "error", err)
		return ""
	}
	var claims struct {
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return ""
	}
	if claims.PreferredUsername != "" {
		return claims.PreferredUsername
	}
	return claims.Name
}

func (p *EntraProvider) store(ctx context.Context, key string, tok *oauth2.Token, account string) error {
	if err := p.cache.PutToken(ctx, key, CachedToken{
		AccessToken: tok.AccessToken,
		Expiry:      tok.Expiry,
		Account:     account,
	}); err != nil {
		return fmt.Errorf("cache token: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil
	}
	if err := p.cache.PutToken(ctx, sessionKey, CachedToken{
		RefreshToken: tok.RefreshToken,
		Account:      account,
	}); err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	return nil
}

// interactionCodes are the OAuth error codes that need the user back.
var interactionCodes = map[string]bool{
	"invalid_grant":        true,
	"interaction_required": true,
	"consent_required":     true,
	"login_required":       true,
}

type tokenErrorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// refresh redeems the session refresh token for scopes. Entra refresh tokens
// are multi-resource, so the scope parameter picks the audience.
func (p *EntraProvider) refresh(ctx context.Context, refreshToken string, scopes []string) (*oauth2.Token, error) {
	form := url.Values{
		"client_id":     {p.cfg.ClientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {strings.Join(append(append([]string(nil), scopes...), "offline_access"), " ")},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint().TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read refresh response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retrieveErr := &oauth2.RetrieveError{Response: resp, Body: body}
		var te tokenErrorBody
		if json.Unmarshal(body, &te) == nil {
			retrieveErr.ErrorCode = te.Error
			retrieveErr.ErrorDescription = te.Description
		}
		if interactionCodes[retrieveErr.ErrorCode] {
			return nil, fmt.Errorf("refresh rejected (%s): %w", retrieveErr.ErrorCode, ErrInteractionRequired)
		}
		return nil, fmt.Errorf("refresh token: %w", retrieveErr)
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("refresh response missing access_token")
	}
	tok := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = p.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	} else if exp, _ := inspectToken(tr.AccessToken); !exp.IsZero() {
		tok.Expiry = exp
	}
	return tok, nil
}
