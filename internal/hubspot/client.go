// Package hubspot is a thin client for the CRM v3 objects API.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const maxErrorBody = 64 << 10

// Config controls the client. Token is the static private-app key.
type Config struct {
	BaseURL string
	Token   string

	// Timeout bounds each upstream call. Zero means no client-side deadline.
	Timeout time.Duration

	// TokenFromContext, when set, may supply a per-request token that takes
	// precedence over Token.
	TokenFromContext func(ctx context.Context) (string, bool)

	HTTPClient *http.Client
}

type Client struct {
	baseURL   string
	token     string
	tokenFrom func(ctx context.Context) (string, bool)
	http      *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("hubspot: base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("hubspot: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("hubspot: base url must use http or https, got %q", u.Scheme)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		token:     cfg.Token,
		tokenFrom: cfg.TokenFromContext,
		http:      hc,
	}, nil
}

// ListObjects reads the first page of an object type.
func (c *Client) ListObjects(ctx context.Context, objectType string, limit int) (Page, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var page Page
	err := c.do(ctx, http.MethodGet, "/objects/"+url.PathEscape(objectType), q, nil, &page)
	return page, err
}

func (c *Client) SearchObjects(ctx context.Context, objectType string, req SearchRequest) (Page, error) {
	var page Page
	err := c.do(ctx, http.MethodPost, "/objects/"+url.PathEscape(objectType)+"/search", nil, req, &page)
	return page, err
}

func (c *Client) CreateObject(ctx context.Context, objectType string, in ObjectInput) (Object, error) {
	var obj Object
	err := c.do(ctx, http.MethodPost, "/objects/"+url.PathEscape(objectType), nil, in, &obj)
	return obj, err
}

func (c *Client) UpdateObject(ctx context.Context, objectType, id string, in ObjectInput) (Object, error) {
	var obj Object
	err := c.do(ctx, http.MethodPatch, "/objects/"+url.PathEscape(objectType)+"/"+url.PathEscape(id), nil, in, &obj)
	return obj, err
}

func (c *Client) DeleteObject(ctx context.Context, objectType, id string) error {
	return c.do(ctx, http.MethodDelete, "/objects/"+url.PathEscape(objectType)+"/"+url.PathEscape(id), nil, nil, nil)
}

// Associate links two records with a labelled association.
func (c *Client) Associate(ctx context.Context, fromType, fromID, toType, toID, label string) error {
	path := fmt.Sprintf("/objects/%s/%s/associations/%s/%s/%s",
		url.PathEscape(fromType), url.PathEscape(fromID),
		url.PathEscape(toType), url.PathEscape(toID),
		url.PathEscape(label))
	return c.do(ctx, http.MethodPut, path, nil, struct{}{}, nil)
}

func (c *Client) tokenFor(ctx context.Context) string {
	if c.tokenFrom != nil {
		if tok, ok := c.tokenFrom(ctx); ok && tok != "" {
			return tok
		}
	}
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("hubspot: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("hubspot: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.tokenFor(ctx))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hubspot: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("hubspot: decode %s %s response: %w", method, path, err)
	}
	return nil
}
