//go:build e2e

package auth_test

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/rollcall/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// postLogin sends a raw form login so the test can inspect headers.
func postLogin(t *testing.T, baseURL, username, password string) *http.Response {
	t.Helper()

	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("username", username)
	data.Set("password", password)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, baseURL+"/v1/auth/login", strings.NewReader(data.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// TestRateLimitLoginEndpoint verifies that /v1/auth/login is rate limited.
// The strict profile allows 5 requests a minute per address and username.
func TestRateLimitLoginEndpoint(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)

	for i := range 5 {
		_, err := client.Login(t.Context(), "wronguser", "wrongpass")
		assertUnauthorized(t, err, fmt.Sprintf("request %d should fail authentication, not rate limiting", i+1))
	}

	_, err := client.Login(t.Context(), "wronguser", "wrongpass")
	assertStatus(t, err, http.StatusTooManyRequests, "6th request should be rate limited")

	// A different username from the same address has its own bucket.
	_, err = client.Login(t.Context(), "otheruser", "wrongpass")
	assertUnauthorized(t, err, "different username should not share the bucket")

	t.Logf("Successfully rate limited after 5 requests to /v1/auth/login")
}

// TestRateLimitSignupEndpoint verifies account creation is strictly limited.
func TestRateLimitSignupEndpoint(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)

	var lastErr error
	for i := range 6 {
		_, lastErr = client.Signup(t.Context(), authsdk.SignupRequest{
			Username: fmt.Sprintf("user%d", i),
			Email:    fmt.Sprintf("user%d@rollcall.test", i),
			Name:     "User",
			Password: testPassword,
		})
		if i < 5 {
			require.NoError(t, lastErr, "signup %d should not be rate limited", i+1)
		}
	}
	assertStatus(t, lastErr, http.StatusTooManyRequests, "6th signup should be rate limited")
}

// TestRateLimitHealthEndpoints verifies health checks have lenient limits.
// Monitoring systems poll these frequently.
func TestRateLimitHealthEndpoints(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)

	// Lenient limit is 100 req/min
	for i := range 30 {
		health, err := client.GetLiveness(t.Context())
		require.NoError(t, err, "Liveness request %d should not be rate limited", i+1)
		require.Equal(t, "ok", health.Status)

		health, err = client.GetReadiness(t.Context())
		require.NoError(t, err, "Readiness request %d should not be rate limited", i+1)
		require.Equal(t, "ok", health.Status)
	}

	t.Logf("Successfully made 30 requests each to /livez and /readyz without rate limiting")
}

// TestRateLimitResponseFormat verifies the 429 carries the retry headers and
// a JSON error body.
func TestRateLimitResponseFormat(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	for range 5 {
		drain(postLogin(t, baseURL, "wronguser", "wrongpass"))
	}

	resp := postLogin(t, baseURL, "wronguser", "wrongpass")
	defer resp.Body.Close()

	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	require.NotEmpty(t, resp.Header.Get("Retry-After"), "Should include Retry-After header")
	require.Equal(t, "5", resp.Header.Get("X-RateLimit-Limit"))
	require.Equal(t, time.Minute.String(), resp.Header.Get("X-RateLimit-Window"))
	require.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "rate_limit_exceeded")
	require.Contains(t, string(body), "error_description")

	t.Logf("Rate limit error response format: %s", body)
}

// TestRateLimitConcurrentRequests verifies limiting holds up under
// concurrent load on a lenient endpoint.
func TestRateLimitConcurrentRequests(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	httpClient := &http.Client{Timeout: 5 * time.Second}

	const numRequests = 20
	results := make(chan error, numRequests)

	for i := range numRequests {
		go func(reqNum int) {
			resp, err := httpClient.Get(baseURL + "/livez")
			if err != nil {
				results <- fmt.Errorf("request %d failed: %w", reqNum, err)
				return
			}
			defer drain(resp)

			if resp.StatusCode != http.StatusOK {
				results <- fmt.Errorf("request %d got status %d", reqNum, resp.StatusCode)
				return
			}
			results <- nil
		}(i)
	}

	successCount := 0
	for range numRequests {
		if err := <-results; err != nil {
			t.Logf("Concurrent request error: %v", err)
			continue
		}
		successCount++
	}

	require.Equal(t, numRequests, successCount, "All concurrent requests should succeed")
}
