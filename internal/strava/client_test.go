package strava

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost/callback",
		BaseURL:      server.URL,
		TokenURL:     server.URL + "/oauth/token",
		AuthURL:      server.URL + "/oauth/authorize",
	})
}

func TestRefreshToken(t *testing.T) {
	var got map[string]string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_at":    1700000000,
		})
	}))

	token, err := client.RefreshToken(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "new-access", token.AccessToken)
	require.Equal(t, "new-refresh", token.RefreshToken)
	require.Equal(t, int64(1700000000), token.ExpiresAt)

	require.Equal(t, "refresh_token", got["grant_type"])
	require.Equal(t, "old-refresh", got["refresh_token"])
	require.Equal(t, "client-id", got["client_id"])
	require.Equal(t, "client-secret", got["client_secret"])
}

func TestExchangeToken(t *testing.T) {
	var got map[string]string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access",
			"refresh_token": "refresh",
			"expires_at":    1700000000,
			"athlete":       map[string]interface{}{"id": 4242},
		})
	}))

	token, err := client.ExchangeToken(context.Background(), "auth-code")
	require.NoError(t, err)
	require.Equal(t, int64(4242), token.Athlete.ID)

	require.Equal(t, "authorization_code", got["grant_type"])
	require.Equal(t, "auth-code", got["code"])
	require.Equal(t, "http://localhost/callback", got["redirect_uri"])
}

func TestFetchActivities(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/athlete/activities", r.URL.Path)
		require.Equal(t, "Bearer the-token", r.Header.Get("Authorization"))
		require.Equal(t, "50", r.URL.Query().Get("per_page"))
		require.Equal(t, "1", r.URL.Query().Get("page"))

		json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"id":                   101,
				"name":                 "Morning Run",
				"type":                 "Run",
				"distance":             5200.0,
				"moving_time":          1800,
				"total_elevation_gain": 42.5,
				"start_date_local":     "2025-03-12T07:15:00Z",
			},
			{
				"id":       102,
				"name":     "Lunch Ride",
				"type":     "Ride",
				"distance": 20000.0,
			},
		})
	}))

	activities, err := client.FetchActivities(context.Background(), "the-token")
	require.NoError(t, err)
	require.Len(t, activities, 2)

	run := activities[0]
	require.Equal(t, int64(101), run.ID)
	require.Equal(t, "Run", run.Type)
	require.Equal(t, 5200.0, run.Distance)
	require.Equal(t, int64(1800), run.MovingTime)
	require.Equal(t, 42.5, run.TotalElevationGain)
	require.Equal(t, time.Date(2025, time.March, 12, 7, 15, 0, 0, time.UTC), run.StartDateLocal)
}

func TestNon2xxIsAPIError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Authorization Error"}`, http.StatusUnauthorized)
	}))

	_, err := client.FetchActivities(context.Background(), "expired")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, err = client.RefreshToken(context.Background(), "bad")
	require.ErrorAs(t, err, &apiErr)
}

func TestAuthorizeURL(t *testing.T) {
	client := NewClient(Config{
		ClientID:    "client-id",
		RedirectURI: "http://localhost/callback",
	})

	raw := client.AuthorizeURL("xyz")
	require.Contains(t, raw, "https://www.strava.com/oauth/authorize?")
	require.Contains(t, raw, "client_id=client-id")
	require.Contains(t, raw, "response_type=code")
	require.Contains(t, raw, "scope=read%2Cactivity%3Aread_all%2Cprofile%3Aread_all")
	require.Contains(t, raw, "state=xyz")
}
