// Package blacklistclient calls the check and validate endpoints from other
// Go services and wraps them in hooks that track loading and error state.
package blacklistclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AnshRaj112/estatehub-backend/internal/models"
)

const defaultTimeout = 10 * time.Second

// CheckParams identifies the entity to check. Email is only read for users.
type CheckParams struct {
	Category models.Category
	Value    string
	Email    string
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("blacklist api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("blacklist api: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the moderation API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client. A nil httpClient gets a default with a 10s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// Check asks whether the entity in p is blacklisted.
func (c *Client) Check(ctx context.Context, p CheckParams) (models.CheckResult, error) {
	body := map[string]string{"type": string(p.Category), "value": p.Value}
	if p.Email != "" {
		body["email"] = p.Email
	}
	var result models.CheckResult
	if err := c.post(ctx, "/api/blacklist/check", body, &result); err != nil {
		return models.CheckResult{}, err
	}
	return result, nil
}

// ValidateContent tests text against the content filters.
func (c *Client) ValidateContent(ctx context.Context, text string) (models.ContentValidation, error) {
	var verdict models.ContentValidation
	if err := c.post(ctx, "/api/blacklist/validate-content", map[string]string{"content": text}, &verdict); err != nil {
		return models.ContentValidation{}, err
	}
	return verdict, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Error}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}
