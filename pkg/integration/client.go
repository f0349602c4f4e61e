// Package integration talks to the external integration platform that holds
// per-user tool connections, and decides which requested tools an execution
// is authorized to use.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/blueragesoftware/backend/pkg/models"
)

const (
	defaultTimeout   = 30 * time.Second
	toolkitCacheSize = 64
)

// ConnectedAccount is one live tool connection of a user on the platform.
type ConnectedAccount struct {
	ConnectionID string
	ToolkitSlug  string
	Status       string
}

// Client is the integration-platform surface the authorizer needs.
type Client interface {
	// ListConnectedAccounts returns the user's live connections, optionally
	// filtered to the given toolkit slugs.
	ListConnectedAccounts(ctx context.Context, userID string, slugs []string) ([]ConnectedAccount, error)
	// GetToolkit returns platform metadata for a toolkit slug.
	GetToolkit(ctx context.Context, slug string) (models.Toolkit, error)
}

// HTTPClient implements Client against the platform's REST API. Toolkit
// metadata is immutable enough to cache across executions.
type HTTPClient struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	toolkits *lru.Cache[string, models.Toolkit]
}

func NewHTTPClient(baseURL, apiKey string) (*HTTPClient, error) {
	cache, err := lru.New[string, models.Toolkit](toolkitCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "init toolkit cache")
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: defaultTimeout},
		toolkits: cache,
	}, nil
}

func (c *HTTPClient) ListConnectedAccounts(ctx context.Context, userID string, slugs []string) ([]ConnectedAccount, error) {
	q := url.Values{}
	q.Set("user_ids", userID)
	if len(slugs) > 0 {
		q.Set("toolkit_slugs", strings.Join(slugs, ","))
	}
	var resp struct {
		Items []struct {
			ID      string `json:"id"`
			Status  string `json:"status"`
			Toolkit struct {
				Slug string `json:"slug"`
			} `json:"toolkit"`
		} `json:"items"`
	}
	if err := c.get(ctx, "/api/v3/connected_accounts?"+q.Encode(), &resp); err != nil {
		return nil, errors.Wrap(err, "list connected accounts")
	}
	accounts := make([]ConnectedAccount, 0, len(resp.Items))
	for _, item := range resp.Items {
		accounts = append(accounts, ConnectedAccount{
			ConnectionID: item.ID,
			ToolkitSlug:  strings.ToUpper(item.Toolkit.Slug),
			Status:       strings.ToLower(item.Status),
		})
	}
	return accounts, nil
}

func (c *HTTPClient) GetToolkit(ctx context.Context, slug string) (models.Toolkit, error) {
	key := strings.ToUpper(slug)
	if toolkit, ok := c.toolkits.Get(key); ok {
		return toolkit, nil
	}
	var resp struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
		Meta struct {
			Description string `json:"description"`
			Logo        string `json:"logo"`
		} `json:"meta"`
	}
	if err := c.get(ctx, "/api/v3/toolkits/"+url.PathEscape(strings.ToLower(slug)), &resp); err != nil {
		return models.Toolkit{}, errors.Wrapf(err, "get toolkit %s", slug)
	}
	toolkit := models.Toolkit{
		Slug:        strings.ToUpper(resp.Slug),
		Name:        resp.Name,
		Description: resp.Meta.Description,
		Logo:        resp.Meta.Logo,
	}
	c.toolkits.Add(key, toolkit)
	return toolkit, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("integration platform returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
