package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"logq/internal/auth"
)

const (
	DefaultManagementEndpoint = "https://management.azure.com"

	subscriptionsAPIVersion = "2020-01-01"
	workspacesAPIVersion    = "2022-10-01"
)

// Source lists the workspaces the signed-in account can query.
type Source interface {
	Discover(ctx context.Context) ([]Workspace, error)
}

type DiscoverConfig struct {
	Endpoint    string
	HTTPClient  *http.Client
	Concurrency int
	Logger      *slog.Logger
}

// Discoverer enumerates Log Analytics workspaces through Azure Resource
// Manager: subscriptions first, then workspaces per subscription.
type Discoverer struct {
	endpoint string
	http     *http.Client
	creds    auth.Provider
	limit    int
	logger   *slog.Logger
}

func NewDiscoverer(cfg DiscoverConfig, creds auth.Provider) *Discoverer {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultManagementEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Discoverer{endpoint: endpoint, http: httpClient, creds: creds, limit: limit, logger: logger}
}

// ARMError is a non-2xx response from Resource Manager.
type ARMError struct {
	Status  int
	Code    string
	Message string
}

func (e *ARMError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("resource manager: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("resource manager: status %d", e.Status)
}

type subscriptionPage struct {
	Value []struct {
		SubscriptionID string `json:"subscriptionId"`
		State          string `json:"state"`
	} `json:"value"`
	NextLink string `json:"nextLink"`
}

type workspacePage struct {
	Value []struct {
		Name       string `json:"name"`
		Properties struct {
			CustomerID string `json:"customerId"`
		} `json:"properties"`
	} `json:"value"`
	NextLink string `json:"nextLink"`
}

func (d *Discoverer) Discover(ctx context.Context) ([]Workspace, error) {
	cred, err := auth.Acquire(ctx, d.creds, []string{auth.ManagementScope})
	if err != nil {
		return nil, err
	}

	subs, err := d.subscriptions(ctx, cred.Token)
	if err != nil {
		return nil, err
	}

	perSub := make([][]Workspace, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.limit)
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			ws, err := d.workspaces(gctx, cred.Token, sub)
			if err != nil {
				return fmt.Errorf("list workspaces in %s: %w", sub, err)
			}
			perSub[i] = ws
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Workspace
	for _, ws := range perSub {
		all = append(all, ws...)
	}
	out := Normalize(all)
	d.logger.Debug("workspaces discovered", "subscriptions", len(subs), "workspaces", len(out))
	return out, nil
}

func (d *Discoverer) subscriptions(ctx context.Context, token string) ([]string, error) {
	next := d.endpoint + "/subscriptions?api-version=" + subscriptionsAPIVersion
	var ids []string
	for next != "" {
		var page subscriptionPage
		if err := d.get(ctx, token, next, &page); err != nil {
			return nil, fmt.Errorf("list subscriptions: %w", err)
		}
		for _, s := range page.Value {
			if s.State != "" && !strings.EqualFold(s.State, "Enabled") {
				continue
			}
			ids = append(ids, s.SubscriptionID)
		}
		next = page.NextLink
	}
	return ids, nil
}

func (d *Discoverer) workspaces(ctx context.Context, token, subscription string) ([]Workspace, error) {
	next := fmt.Sprintf("%s/subscriptions/%s/providers/Microsoft.OperationalInsights/workspaces?api-version=%s",
		d.endpoint, url.PathEscape(subscription), workspacesAPIVersion)
	var out []Workspace
	for next != "" {
		var page workspacePage
		if err := d.get(ctx, token, next, &page); err != nil {
			return nil, err
		}
		for _, w := range page.Value {
			out = append(out, Workspace{Name: w.Name, CustomerID: w.Properties.CustomerID})
		}
		next = page.NextLink
	}
	return out, nil
}

func (d *Discoverer) get(ctx context.Context, token, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseARMError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseARMError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	armErr := &ARMError{Status: resp.StatusCode}
	if json.Unmarshal(body, &env) == nil {
		armErr.Code = env.Error.Code
		armErr.Message = env.Error.Message
	}
	return armErr
}

// Available returns the discovered workspaces, or the static list when
// discovery is disabled (src == nil) or fails. fallback reports that discovery
// failed, so the list is not a fresh view of what exists. A redirect from
// sign-in is passed through so the caller can react to it.
func Available(ctx context.Context, src Source, static []Workspace, logger *slog.Logger) (ws []Workspace, fallback bool, err error) {
	if src == nil {
		return Normalize(static), false, nil
	}
	ws, err = src.Discover(ctx)
	if err == nil {
		return ws, false, nil
	}
	if auth.IsRedirect(err) {
		return Normalize(static), true, err
	}
	if logger != nil {
		logger.Warn("workspace discovery failed, using configured workspaces", "error", err, "configured", len(static))
	}
	return Normalize(static), true, nil
}
