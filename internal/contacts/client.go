// Package contacts keeps the product's email audience in sync with user
// account changes. Delivery goes through its own low-priority pool so the
// audience API's rate limits never touch agent executions.
package contacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Contact is one audience member.
type Contact struct {
	Email        string `json:"email"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Unsubscribed bool   `json:"unsubscribed"`
}

// Client is the audience API surface the syncer needs.
type Client interface {
	CreateContact(ctx context.Context, c Contact) error
	GetContact(ctx context.Context, email string) (Contact, error)
	UpdateContact(ctx context.Context, c Contact) error
	RemoveContact(ctx context.Context, email string) error
}

// HTTPClient talks to a Resend-style audience REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	audienceID string
	http       *http.Client
}

func NewHTTPClient(baseURL, apiKey, audienceID string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		audienceID: audienceID,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) CreateContact(ctx context.Context, contact Contact) error {
	return c.do(ctx, http.MethodPost, c.contactsPath(""), contact, nil)
}

func (c *HTTPClient) GetContact(ctx context.Context, email string) (Contact, error) {
	var contact Contact
	if err := c.do(ctx, http.MethodGet, c.contactsPath(email), nil, &contact); err != nil {
		return Contact{}, err
	}
	return contact, nil
}

func (c *HTTPClient) UpdateContact(ctx context.Context, contact Contact) error {
	return c.do(ctx, http.MethodPatch, c.contactsPath(contact.Email), contact, nil)
}

func (c *HTTPClient) RemoveContact(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodDelete, c.contactsPath(email), nil, nil)
}

func (c *HTTPClient) contactsPath(email string) string {
	path := fmt.Sprintf("/audiences/%s/contacts", url.PathEscape(c.audienceID))
	if email != "" {
		path += "/" + url.PathEscape(email)
	}
	return path
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal contact")
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "audience api request")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("audience api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
