package main

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

	"github.com/sjohnston82/twitter-t3-clone/internal/domain"
)

// apiClient wraps the server's HTTP API.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *apiClient) listFeed(ctx context.Context, limit int) ([]domain.FeedItem, error) {
	var items []domain.FeedItem
	path := fmt.Sprintf("/api/feed?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *apiClient) listAuthorFeed(ctx context.Context, handle string, limit int) ([]domain.FeedItem, error) {
	var items []domain.FeedItem
	path := fmt.Sprintf("/api/users/%s/posts?limit=%d", url.PathEscape(handle), limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *apiClient) getProfile(ctx context.Context, handle string) (domain.Author, error) {
	var author domain.Author
	path := "/api/users/" + url.PathEscape(handle)
	if err := c.do(ctx, http.MethodGet, path, nil, &author); err != nil {
		return domain.Author{}, err
	}
	return author, nil
}

func (c *apiClient) createPost(ctx context.Context, content string) (*domain.Post, error) {
	if c.token == "" {
		return nil, fmt.Errorf("--token is required to post (or set MICROPOST_TOKEN)")
	}
	var post domain.Post
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, "/api/posts", body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Message)
		}
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
