package ports

import (
	"context"

	"github.com/danielolaszy/issuebot/pkg/models"
)

// IssueSource is the remote issue tracker the poller talks to.
type IssueSource interface {
	ListOpenIssues(ctx context.Context, owner, repo string) ([]models.IssueSnapshot, error)
	PostComment(ctx context.Context, owner, repo string, number int, body string) error
	RateLimitRemaining(ctx context.Context) (int, error)
}
