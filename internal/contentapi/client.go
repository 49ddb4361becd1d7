// Package contentapi is the client for the hosted structured-content API,
// the secondary backend some content types are served from. The API answers
// typed projections over published and draft document revisions.
package contentapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"
)

// ErrNotFound indicates the API has no document for the requested address.
var ErrNotFound = errors.New("contentapi: document not found")

// Client talks to the structured-content API. A background loop tracks
// reachability so callers can degrade without paying a request timeout.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	healthy atomic.Bool
	done    chan struct{}
}

// New creates a client and starts the health monitor. The client is usable
// even when the API is down; requests then fail fast.
func New(baseURL, apiKey string) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		done:    make(chan struct{}),
	}

	if err := c.checkHealth(); err != nil {
		log.Printf("contentapi: unavailable at %s: %v", baseURL, err)
		c.healthy.Store(false)
	} else {
		c.healthy.Store(true)
	}

	go c.healthLoop()
	return c
}

func (c *Client) healthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			err := c.checkHealth()
			wasHealthy := c.healthy.Load()
			c.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Printf("contentapi: recovered")
			}
		}
	}
}

func (c *Client) checkHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}

// Close stops the background health monitor.
func (c *Client) Close() {
	close(c.done)
}

// Healthy reports whether the API is reachable.
func (c *Client) Healthy() bool {
	return c.healthy.Load()
}

// GetDocument fetches one document by type and slug.
func (c *Client) GetDocument(ctx context.Context, typ, slug string, draft bool) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/v1/documents/%s/%s", c.baseURL, url.PathEscape(typ), url.PathEscape(slug))
	var payload struct {
		Document map[string]any `json:"document"`
	}
	if err := c.get(ctx, endpoint, url.Values{}, draft, &payload); err != nil {
		return nil, err
	}
	if payload.Document == nil {
		return nil, ErrNotFound
	}
	return payload.Document, nil
}

// ListDocuments fetches documents of a type, optionally filtered by
// category, newest first.
func (c *Client) ListDocuments(ctx context.Context, typ, category string, limit int, draft bool) ([]map[string]any, error) {
	endpoint := fmt.Sprintf("%s/v1/documents/%s", c.baseURL, url.PathEscape(typ))
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var payload struct {
		Documents []map[string]any `json:"documents"`
	}
	if err := c.get(ctx, endpoint, params, draft, &payload); err != nil {
		return nil, err
	}
	if payload.Documents == nil {
		return []map[string]any{}, nil
	}
	return payload.Documents, nil
}

// GetGlobal fetches a singleton document (navigation, footer, settings).
func (c *Client) GetGlobal(ctx context.Context, typ string, draft bool) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/v1/globals/%s", c.baseURL, url.PathEscape(typ))
	var payload struct {
		Document map[string]any `json:"document"`
	}
	if err := c.get(ctx, endpoint, url.Values{}, draft, &payload); err != nil {
		return nil, err
	}
	if payload.Document == nil {
		return nil, ErrNotFound
	}
	return payload.Document, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, draft bool, target any) error {
	if draft {
		params.Set("draft", "true")
	}
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contentapi request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("contentapi status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
