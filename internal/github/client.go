// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/danielolaszy/issuebot/internal/logging"
	"github.com/danielolaszy/issuebot/internal/ports"
	"github.com/danielolaszy/issuebot/pkg/models"
	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"
)

const defaultDomain = "github.com"

// Settings configures a Client.
type Settings struct {
	Token    string
	Username string
	Domain   string
	MaxPages int
}

// Client encapsulates the GitHub API client.
type Client struct {
	client   *github.Client
	username string
	maxPages int
}

var _ ports.IssueSource = (*Client)(nil)

// APIURL returns the REST endpoint for a GitHub domain. github.com (or an
// empty domain) maps to api.github.com, anything else to the Enterprise
// /api/v3/ path.
func APIURL(domain string) string {
	if domain == "" || domain == defaultDomain {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

// NewClient creates an authenticated GitHub API client.
func NewClient(settings Settings) (*Client, error) {
	if settings.Token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}

	domain := settings.Domain
	if domain == "" {
		domain = defaultDomain
	}
	apiURL := APIURL(domain)

	logging.Info("github configuration",
		"domain", domain,
		"api_url", apiURL,
		"token", logging.MaskSensitive(settings.Token))

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: settings.Token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	client := github.NewClient(tc)

	if domain != defaultDomain {
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}

		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}

	return newClient(client, settings.Username, settings.MaxPages), nil
}

func newClient(client *github.Client, username string, maxPages int) *Client {
	if maxPages <= 0 {
		maxPages = 1
	}
	return &Client{client: client, username: username, maxPages: maxPages}
}

// Verify checks that the token authenticates as the configured user.
func (c *Client) Verify(ctx context.Context) error {
	user, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}
		logging.Error("failed to test github token",
			"error", err,
			"status_code", statusCode)
		return fmt.Errorf("error testing github token: %w", err)
	}

	login := user.GetLogin()
	if c.username != "" && !strings.EqualFold(login, c.username) {
		return fmt.Errorf("github token belongs to %q, expected %q", login, c.username)
	}

	logging.Info("github authentication successful", "username", login)
	return nil
}

// ListOpenIssues retrieves open issues of owner/repo, following pagination up
// to the configured page bound. Pull requests are dropped.
func (c *Client) ListOpenIssues(ctx context.Context, owner, repo string) ([]models.IssueSnapshot, error) {
	opts := &github.IssueListByRepoOptions{
		State: "open",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var allIssues []*github.Issue
	for page := 0; page < c.maxPages; page++ {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch issues for %s/%s: %w", owner, repo, err)
		}

		allIssues = append(allIssues, issues...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	result := make([]models.IssueSnapshot, 0, len(allIssues))
	for _, issue := range allIssues {
		// Skip pull requests (they're also returned by the Issues API)
		if issue.IsPullRequest() {
			continue
		}
		result = append(result, toSnapshot(issue))
	}

	logging.Debug("fetched open issues",
		"repository", owner+"/"+repo,
		"count", len(result))

	return result, nil
}

// PostComment adds a comment to an issue. The call is not idempotent.
func (c *Client) PostComment(ctx context.Context, owner, repo string, number int, body string) error {
	comment := &github.IssueComment{Body: github.String(body)}

	_, _, err := c.client.Issues.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		return fmt.Errorf("failed to comment on %s/%s#%d: %w", owner, repo, number, err)
	}

	logging.Debug("posted comment", "repository", owner+"/"+repo, "issue_number", number)
	return nil
}

// RateLimitRemaining returns the remaining core API requests.
func (c *Client) RateLimitRemaining(ctx context.Context) (int, error) {
	limits, _, err := c.client.RateLimits(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query rate limit: %w", err)
	}
	if limits == nil || limits.Core == nil {
		return 0, fmt.Errorf("rate limit response has no core limits")
	}
	return limits.Core.Remaining, nil
}

func toSnapshot(issue *github.Issue) models.IssueSnapshot {
	labelNames := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labelNames = append(labelNames, label.GetName())
	}

	return models.IssueSnapshot{
		ID:        issue.GetID(),
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		URL:       issue.GetHTMLURL(),
		State:     issue.GetState(),
		CreatedAt: issue.GetCreatedAt(),
		UpdatedAt: issue.GetUpdatedAt(),
		Assigned:  issue.Assignee != nil || len(issue.Assignees) > 0,
		Labels:    labelNames,
	}
}
