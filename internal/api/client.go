package api

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
	"strings"
	"time"

	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
)

// Custom Error Types
var (
	ErrRateLimited   = errors.New("API rate limit exceeded")
	ErrUnauthorized  = errors.New("API request unauthorized (check API key)")
	ErrNotFound      = errors.New("API resource not found")
	ErrServerError   = errors.New("API server error")
	ErrNotConfigured = errors.New("service URL not configured")
)

const (
	maxRetries        = 3
	defaultRetryDelay = time.Second
)

// Client talks to the workshop hosting service. Calls other than Ping complete
// through Callbacks when it is set, so the caller only resumes after the event
// pump has been serviced.
type Client struct {
	BaseURL    string
	ApiKey     string
	HttpClient *http.Client
	Callbacks  *CallbackQueue
	RetryDelay time.Duration // Base backoff between attempts
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string, httpClient *http.Client, callbacks *CallbackQueue) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ApiKey:     apiKey,
		HttpClient: httpClient,
		Callbacks:  callbacks,
		RetryDelay: defaultRetryDelay,
	}
}

// Ping checks that the service is reachable. It runs outside the callback
// queue since it is used before any pump exists.
func (c *Client) Ping(ctx context.Context) error {
	var status models.StatusResponse
	if err := c.do(ctx, c.jsonRequest(http.MethodGet, "/status", nil), &status); err != nil {
		return err
	}
	if status.Status != "" && !strings.EqualFold(status.Status, "ok") {
		return fmt.Errorf("%w: service reports status %q", ErrServerError, status.Status)
	}
	log.WithField("version", status.Version).Debug("Service reachable")
	return nil
}

// GetCollectionDetails returns the member items of one collection.
func (c *Client) GetCollectionDetails(ctx context.Context, id uint64) ([]models.WorkshopItem, error) {
	var resp models.ItemsResponse
	err := c.dispatch(ctx, func(ctx context.Context) error {
		return c.do(ctx, c.jsonRequest(http.MethodGet, "/collections/"+strconv.FormatUint(id, 10), nil), &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching collection %d: %w", id, err)
	}
	return resp.Items, nil
}

// GetItems fetches metadata for all ids in one call.
func (c *Client) GetItems(ctx context.Context, ids []uint64) ([]models.WorkshopItem, error) {
	var resp models.ItemsResponse
	err := c.dispatch(ctx, func(ctx context.Context) error {
		return c.do(ctx, c.jsonRequest(http.MethodPost, "/items/query", models.ItemQuery{IDs: ids}), &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %d item(s): %w", len(ids), err)
	}
	return resp.Items, nil
}

// PublishItem creates a new item when req.ID is zero, otherwise it replaces the
// content of the existing one. It returns the remote id.
func (c *Client) PublishItem(ctx context.Context, req models.PublishRequest) (uint64, error) {
	body, contentType, err := buildMultipart(req.Metadata, req.Payload, req.Thumbnail)
	if err != nil {
		return 0, err
	}

	method, path := http.MethodPost, "/items"
	if req.ID != 0 {
		method, path = http.MethodPut, "/items/"+strconv.FormatUint(req.ID, 10)
	}

	var resp models.PublishResponse
	err = c.dispatch(ctx, func(ctx context.Context) error {
		return c.do(ctx, c.rawRequest(method, path, body, contentType), &resp)
	})
	if err != nil {
		return 0, fmt.Errorf("publishing %q: %w", req.Metadata.Title, err)
	}
	if resp.ID == 0 {
		resp.ID = req.ID
	}
	if resp.ID == 0 {
		return 0, fmt.Errorf("publishing %q: service returned no item id", req.Metadata.Title)
	}
	return resp.ID, nil
}

// UpdateItemMetadata replaces tags and, when thumbnail is set, the preview
// image of an existing item without touching its content.
func (c *Client) UpdateItemMetadata(ctx context.Context, id uint64, update models.MetadataUpdate, thumbnail string) error {
	body, contentType, err := buildMultipart(update, "", thumbnail)
	if err != nil {
		return err
	}
	err = c.dispatch(ctx, func(ctx context.Context) error {
		return c.do(ctx, c.rawRequest(http.MethodPatch, "/items/"+strconv.FormatUint(id, 10), body, contentType), nil)
	})
	if err != nil {
		return fmt.Errorf("updating metadata of %d: %w", id, err)
	}
	return nil
}

// ResolveURL turns a file reference returned by the service into an absolute
// URL. Absolute references are returned unchanged.
func (c *Client) ResolveURL(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	return c.BaseURL + "/" + strings.TrimLeft(ref, "/")
}

// dispatch runs call on a transport goroutine and waits for its completion
// callback.
func (c *Client) dispatch(ctx context.Context, call func(context.Context) error) error {
	if c.Callbacks == nil {
		return call(ctx)
	}
	done := make(chan error, 1)
	go func() {
		err := call(ctx)
		c.Callbacks.post(func() { done <- err })
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type requestFunc func(ctx context.Context) (*http.Request, error)

func (c *Client) jsonRequest(method, path string, payload interface{}) requestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		var body io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("error marshalling request body: %w", err)
			}
			body = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
}

func (c *Client) rawRequest(method, path string, body []byte, contentType string) requestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}
}

// do executes the request with retries on network errors, rate limiting and
// server errors, then decodes a JSON response into out.
func (c *Client) do(ctx context.Context, newReq requestFunc, out interface{}) error {
	if c.BaseURL == "" {
		return ErrNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := newReq(ctx)
		if err != nil {
			return fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.ApiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.ApiKey)
		}

		resp, err := c.HttpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request failed (attempt %d/%d): %w", attempt+1, maxRetries, err)
			if !c.backoff(ctx, attempt, lastErr, "Retrying") {
				break
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("error reading response body: %w", readErr)
			if !c.backoff(ctx, attempt, lastErr, "Retrying") {
				break
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil || len(bytes.TrimSpace(body)) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				log.Debugf("Response body causing unmarshal error: %s", string(body))
				return fmt.Errorf("error unmarshalling response JSON: %w", err)
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return ErrUnauthorized
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w (status code %d)", ErrServerError, resp.StatusCode)
		default:
			return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		// Rate limit or 5xx
		if !c.backoff(ctx, attempt, lastErr, "Retrying") {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		log.WithError(lastErr).Debug("Request cancelled while waiting to retry")
		return err
	}
	log.WithError(lastErr).Errorf("Request failed after %d attempts", maxRetries)
	return lastErr
}

// backoff sleeps before the next attempt. It returns false when no attempts
// remain or the context ended.
func (c *Client) backoff(ctx context.Context, attempt int, cause error, msg string) bool {
	if attempt >= maxRetries-1 {
		return false
	}
	delay := time.Duration(attempt+1) * c.RetryDelay
	if errors.Is(cause, ErrRateLimited) {
		delay *= 2
	}
	log.WithError(cause).Warnf("%s (%d/%d) after %s...", msg, attempt+1, maxRetries, delay)
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}
