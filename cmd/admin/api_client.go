package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"santabot/backend/internal/api/handler"
	"santabot/backend/internal/storage"

	"github.com/tidwall/gjson"
)

const (
	apiTokenTTL    = 5 * time.Minute
	apiTimeout     = 10 * time.Second
	maxAPIResponse = 1 << 20
)

// apiClient sends event changes to the running bot's admin API, so the
// process that owns the store applies them.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, secret string) (*apiClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("ADMIN_API_URL is required")
	}
	token, err := handler.GenerateJWT([]byte(secret), apiTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("mint admin token: %w", err)
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: apiTimeout},
	}, nil
}

// SetExpected overwrites the expected count and reports whether the event
// was drawn as a result.
func (c *apiClient) SetExpected(ctx context.Context, chatID int64, n int) (bool, error) {
	raw, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/events/%d/expected", chatID), map[string]int{"count": n})
	if err != nil {
		return false, err
	}
	return gjson.GetBytes(raw, "drawn").Bool(), nil
}

func (c *apiClient) ResetEvent(ctx context.Context, chatID int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/events/%d", chatID), nil)
	return err
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponse))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, path, storage.ErrNotFound)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, gjson.GetBytes(raw, "error").String())
	}
	return raw, nil
}
