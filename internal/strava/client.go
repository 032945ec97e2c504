// Package strava implements the HTTP client for the Strava v3 API:
// OAuth token exchange and refresh, plus the recent-activity listing the
// sync engine consumes.
package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL  = "https://www.strava.com/api/v3"
	defaultTokenURL = "https://www.strava.com/oauth/token"
	defaultAuthURL  = "https://www.strava.com/oauth/authorize"

	// Bounded recent-activity fetch; backfill and pagination are out of scope.
	activitiesPerPage = 50
)

// Config holds the application credentials issued by the provider.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Timeout      time.Duration

	// BaseURL, TokenURL and AuthURL override the production endpoints,
	// primarily for tests.
	BaseURL  string
	TokenURL string
	AuthURL  string
}

// Client talks to the provider with a bounded request timeout.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// TokenResponse is the provider's answer to both the exchange and refresh
// grants. ExpiresAt is epoch seconds.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	Athlete      struct {
		ID int64 `json:"id"`
	} `json:"athlete"`
}

// Activity is one entry from the athlete activity listing. Distance is in
// meters, MovingTime in seconds.
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	Distance           float64   `json:"distance"`
	MovingTime         int64     `json:"moving_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	StartDateLocal     time.Time `json:"start_date_local"`
}

// APIError represents a non-2xx provider response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava: unexpected status %d: %s", e.Status, e.Body)
}

// AuthorizeURL builds the provider consent URL for the connect flow.
func (c *Client) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":       {c.cfg.ClientID},
		"response_type":   {"code"},
		"redirect_uri":    {c.cfg.RedirectURI},
		"approval_prompt": {"auto"},
		"scope":           {"read,activity:read_all,profile:read_all"},
	}
	if state != "" {
		params.Set("state", state)
	}
	return c.cfg.AuthURL + "?" + params.Encode()
}

// ExchangeToken redeems an authorization code for a token pair.
func (c *Client) ExchangeToken(ctx context.Context, code string) (*TokenResponse, error) {
	payload := map[string]string{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"code":          code,
		"grant_type":    "authorization_code",
		"redirect_uri":  c.cfg.RedirectURI,
	}
	return c.postToken(ctx, payload)
}

// RefreshToken exchanges a refresh token for a fresh token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	payload := map[string]string{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"refresh_token": refreshToken,
		"grant_type":    "refresh_token",
	}
	return c.postToken(ctx, payload)
}

func (c *Client) postToken(ctx context.Context, payload map[string]string) (*TokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("strava: decoding token response: %w", err)
	}
	return &token, nil
}

// FetchActivities lists the athlete's most recent activities.
func (c *Client) FetchActivities(ctx context.Context, accessToken string) ([]Activity, error) {
	endpoint := fmt.Sprintf("%s/athlete/activities?per_page=%d&page=1", c.cfg.BaseURL, activitiesPerPage)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var activities []Activity
	if err := json.NewDecoder(resp.Body).Decode(&activities); err != nil {
		return nil, fmt.Errorf("strava: decoding activity list: %w", err)
	}
	return activities, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
}
