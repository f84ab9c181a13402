package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-github/v41/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, maxPages int) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gh := github.NewClient(nil)
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = baseURL

	return newClient(gh, "octo", maxPages)
}

// TestGitHubDomainToAPIURL tests the logic that converts a domain to an API URL
func TestGitHubDomainToAPIURL(t *testing.T) {
	testCases := []struct {
		name           string
		domain         string
		expectedAPIURL string
	}{
		{
			name:           "Default GitHub.com",
			domain:         "github.com",
			expectedAPIURL: "https://api.github.com/",
		},
		{
			name:           "GitHub Enterprise",
			domain:         "github.example.com",
			expectedAPIURL: "https://github.example.com/api/v3/",
		},
		{
			name:           "Empty Domain (should default to github.com)",
			domain:         "",
			expectedAPIURL: "https://api.github.com/",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			apiURL := APIURL(tc.domain)
			assert.Equal(t, tc.expectedAPIURL, apiURL)

			parsedURL, err := url.Parse(apiURL)
			require.NoError(t, err)
			assert.Equal(t, apiURL, parsedURL.String())
		})
	}
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")

	client, err := NewClient(Settings{Token: "ghp_token", Username: "octo", Domain: "github.example.com", MaxPages: 3})
	require.NoError(t, err)
	assert.Equal(t, "https://github.example.com/api/v3/", client.client.BaseURL.String())
	assert.Equal(t, 3, client.maxPages)
}

func TestListOpenIssues(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))

		if r.URL.Query().Get("page") == "2" {
			fmt.Fprintf(w, `[{"id": 3, "number": 3, "title": "third", "created_at": %q, "updated_at": %q,
				"assignees": [{"login": "someone"}]}]`, created.Format(time.RFC3339), created.Format(time.RFC3339))
			return
		}

		next := fmt.Sprintf(`<http://%s/repos/acme/widgets/issues?page=2&per_page=100&state=open>; rel="next"`, r.Host)
		w.Header().Set("Link", next)
		fmt.Fprintf(w, `[
			{"id": 1001, "number": 1, "title": "first", "state": "open", "html_url": "https://github.com/acme/widgets/issues/1",
			 "created_at": %q, "updated_at": %q, "labels": [{"name": "good first issue"}, {"name": "docs"}]},
			{"id": 1002, "number": 2, "title": "a pr", "pull_request": {"url": "x"}}
		]`, created.Format(time.RFC3339), created.Format(time.RFC3339))
	})

	client := newTestClient(t, mux, 10)

	issues, err := client.ListOpenIssues(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	require.Len(t, issues, 2)

	first := issues[0]
	assert.Equal(t, int64(1001), first.ID)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "first", first.Title)
	assert.Equal(t, "https://github.com/acme/widgets/issues/1", first.URL)
	assert.Equal(t, []string{"good first issue", "docs"}, first.Labels)
	assert.True(t, created.Equal(first.CreatedAt))
	assert.False(t, first.Assigned)

	assert.Equal(t, 3, issues[1].Number)
	assert.True(t, issues[1].Assigned)
}

func TestListOpenIssuesStopsAtPageBound(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/acme/widgets/issues?page=%d>; rel="next"`, r.Host, calls+1))
		fmt.Fprintf(w, `[{"id": %d, "number": %d}]`, calls, calls)
	})

	client := newTestClient(t, mux, 2)

	issues, err := client.ListOpenIssues(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	assert.Len(t, issues, 2)
	assert.Equal(t, 2, calls)
}

func TestListOpenIssuesError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/missing/issues", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})

	client := newTestClient(t, mux, 1)

	_, err := client.ListOpenIssues(context.Background(), "acme", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme/missing")
}

func TestPostComment(t *testing.T) {
	var body map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues/42/comments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 1}`)
	})

	client := newTestClient(t, mux, 1)

	err := client.PostComment(context.Background(), "acme", "widgets", 42, "May I work on this?")
	require.NoError(t, err)
	assert.Equal(t, "May I work on this?", body["body"])
}

func TestPostCommentError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues/42/comments", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Forbidden"}`, http.StatusForbidden)
	})

	client := newTestClient(t, mux, 1)

	err := client.PostComment(context.Background(), "acme", "widgets", 42, "hi")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "acme/widgets#42"))
}

func TestRateLimitRemaining(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"resources": {"core": {"limit": 5000, "remaining": 4321, "reset": 1700000000}}}`)
	})

	client := newTestClient(t, mux, 1)

	remaining, err := client.RateLimitRemaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4321, remaining)
}

func TestRateLimitRemainingWithoutCore(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"resources": {}}`)
	})

	client := newTestClient(t, mux, 1)

	_, err := client.RateLimitRemaining(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no core limits")
}

func TestVerify(t *testing.T) {
	testCases := []struct {
		name          string
		status        int
		login         string
		errorContains string
	}{
		{name: "Matching login", status: http.StatusOK, login: "Octo"},
		{name: "Different login", status: http.StatusOK, login: "someone-else", errorContains: "someone-else"},
		{name: "Bad token", status: http.StatusUnauthorized, errorContains: "error testing github token"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
				if tc.status != http.StatusOK {
					http.Error(w, `{"message": "Bad credentials"}`, tc.status)
					return
				}
				fmt.Fprintf(w, `{"login": %q}`, tc.login)
			})

			client := newTestClient(t, mux, 1)

			err := client.Verify(context.Background())
			if tc.errorContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorContains)
		})
	}
}
