// Package identity is an HTTP client for the external identity provider.
// User accounts, sessions, and profiles are owned by the provider; this
// service only reads public profile fields and verifies session tokens.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sjohnston82/twitter-t3-clone/internal/domain"
)

// Client is a minimal identity provider API client. It implements
// domain.IdentityResolver.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a new identity provider client authenticated with the
// given secret API key.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ResolveUsers fetches public profiles for a batch of user ids in one call.
// The result may contain fewer entries than requested; a missing entry means
// the provider does not know the id.
func (c *Client) ResolveUsers(ctx context.Context, ids []string) ([]domain.Author, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := url.Values{}
	for _, id := range ids {
		q.Add("user_id", id)
	}
	q.Set("limit", fmt.Sprintf("%d", len(ids)))

	var users []apiUser
	if err := c.get(ctx, "/v1/users?"+q.Encode(), &users); err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}

	authors := make([]domain.Author, len(users))
	for i, u := range users {
		authors[i] = u.toAuthor()
	}
	return authors, nil
}

// ResolveUserByHandle fetches a single public profile by username. Returns
// domain.ErrUserNotFound for unknown handles.
func (c *Client) ResolveUserByHandle(ctx context.Context, handle string) (domain.Author, error) {
	q := url.Values{}
	q.Set("username", handle)
	q.Set("limit", "1")

	var users []apiUser
	if err := c.get(ctx, "/v1/users?"+q.Encode(), &users); err != nil {
		return domain.Author{}, fmt.Errorf("resolve handle %q: %w", handle, err)
	}
	if len(users) == 0 {
		return domain.Author{}, domain.ErrUserNotFound
	}
	return users[0].toAuthor(), nil
}

// VerifyToken checks a caller's session token with the provider and returns
// the authenticated user id. Invalid or expired tokens map to
// domain.ErrUnauthorized; provider failures map to
// domain.ErrUpstreamUnavailable.
func (c *Client) VerifyToken(ctx context.Context, token string) (string, error) {
	body, err := json.Marshal(verifyTokenRequest{Token: token})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tokens/verify", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: verify token: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", domain.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound:
		return "", domain.ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("%w: verify token (status %d): %s", domain.ErrUpstreamUnavailable, resp.StatusCode, string(respBody))
	}

	var result verifyTokenResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if result.UserID == "" {
		return "", domain.ErrUnauthorized
	}
	return result.UserID, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

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
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

type apiUser struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
}

func (u apiUser) toAuthor() domain.Author {
	return domain.Author{
		ID:        u.ID,
		Handle:    u.Username,
		AvatarURL: u.ProfileImageURL,
	}
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

type verifyTokenResponse struct {
	UserID string `json:"user_id"`
}
