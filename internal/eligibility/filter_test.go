package eligibility

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/danielolaszy/issuebot/internal/logging"
	"github.com/danielolaszy/issuebot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func issue(id int64, number int, created time.Time, labels ...string) models.IssueSnapshot {
	return models.IssueSnapshot{
		ID:        id,
		Number:    number,
		Title:     "Issue " + string(rune('A'+number%26)),
		State:     "open",
		CreatedAt: created,
		UpdatedAt: created,
		Labels:    labels,
	}
}

func numbers(issues []models.IssueSnapshot) []int {
	out := make([]int, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Number)
	}
	return out
}

func TestCandidatesPredicate(t *testing.T) {
	assigned := issue(2, 2, base, "help wanted")
	assigned.Assigned = true

	testCases := []struct {
		name      string
		issues    []models.IssueSnapshot
		rule      models.RepositoryRule
		processed models.ProcessedSet
		expected  []int
	}{
		{
			name:     "No rule constraints accepts unassigned issues",
			issues:   []models.IssueSnapshot{issue(1, 1, base)},
			rule:     models.RepositoryRule{Owner: "o", Name: "r"},
			expected: []int{1},
		},
		{
			name:     "Assigned issue is never selected",
			issues:   []models.IssueSnapshot{assigned},
			rule:     models.RepositoryRule{Owner: "o", Name: "r"},
			expected: []int{},
		},
		{
			name:     "Required label missing",
			issues:   []models.IssueSnapshot{issue(1, 1, base, "bug"), issue(3, 3, base, "help wanted", "bug")},
			rule:     models.RepositoryRule{Labels: []string{"help wanted"}},
			expected: []int{3},
		},
		{
			name:     "All required labels needed",
			issues:   []models.IssueSnapshot{issue(1, 1, base, "help wanted"), issue(3, 3, base, "help wanted", "good first issue")},
			rule:     models.RepositoryRule{Labels: []string{"help wanted", "good first issue"}},
			expected: []int{3},
		},
		{
			name:     "Excluded label rejects",
			issues:   []models.IssueSnapshot{issue(1, 1, base, "blocked"), issue(3, 3, base, "bug")},
			rule:     models.RepositoryRule{ExcludeLabels: []string{"blocked"}},
			expected: []int{3},
		},
		{
			name:     "Label match is case sensitive",
			issues:   []models.IssueSnapshot{issue(1, 1, base, "Help Wanted")},
			rule:     models.RepositoryRule{Labels: []string{"help wanted"}},
			expected: []int{},
		},
		{
			name: "Processed issue is skipped",
			issues: []models.IssueSnapshot{
				issue(7, 7, base, "good first issue"),
				issue(8, 8, base.Add(time.Hour), "good first issue"),
			},
			rule:      models.RepositoryRule{Labels: []string{"good first issue"}},
			processed: models.NewProcessedSet(7),
			expected:  []int{8},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			processed := tc.processed
			if processed == nil {
				processed = models.NewProcessedSet()
			}
			got := Candidates(tc.issues, tc.rule, processed)
			assert.Equal(t, tc.expected, numbers(got))
		})
	}
}

func TestCandidatesOrdersOldestFirst(t *testing.T) {
	issues := []models.IssueSnapshot{
		issue(30, 3, base.Add(2*time.Hour)),
		issue(10, 1, base),
		issue(20, 2, base.Add(time.Hour)),
	}

	got := Candidates(issues, models.RepositoryRule{}, models.NewProcessedSet())
	assert.Equal(t, []int{1, 2, 3}, numbers(got))
}

func TestCandidatesBreaksTiesByID(t *testing.T) {
	issues := []models.IssueSnapshot{
		issue(99, 5, base),
		issue(11, 6, base),
		issue(50, 7, base),
	}

	got := Candidates(issues, models.RepositoryRule{}, models.NewProcessedSet())
	assert.Equal(t, []int{6, 7, 5}, numbers(got))
}

func TestCandidatesTitlePattern(t *testing.T) {
	docs := issue(1, 1, base)
	docs.Title = "docs: fix typo in README"
	feature := issue(2, 2, base.Add(time.Minute))
	feature.Title = "Add retry support"

	got := Candidates([]models.IssueSnapshot{docs, feature}, models.RepositoryRule{TitlePattern: `^docs:`}, models.NewProcessedSet())
	assert.Equal(t, []int{1}, numbers(got))
}

func TestCandidatesInvalidTitlePatternPassesThrough(t *testing.T) {
	docs := issue(1, 1, base)
	docs.Title = "anything"

	rule := models.RepositoryRule{Owner: "o", Name: "r", TitlePattern: `([unclosed`}
	assert.Nil(t, CompileTitlePattern(rule))

	got := Candidates([]models.IssueSnapshot{docs}, rule, models.NewProcessedSet())
	assert.Equal(t, []int{1}, numbers(got))
}

func TestFilterWarnsOnceForInvalidTitlePattern(t *testing.T) {
	var buf bytes.Buffer
	logging.SetupLogger(&buf, logging.LevelWarn)
	t.Cleanup(func() { logging.SetupLogger(os.Stdout, logging.LevelFromEnv()) })

	docs := issue(1, 1, base)
	rule := models.RepositoryRule{Owner: "o", Name: "r", TitlePattern: `([unclosed`}

	filter := NewFilter(rule)
	for i := 0; i < 3; i++ {
		got, ok := filter.Select([]models.IssueSnapshot{docs}, models.NewProcessedSet())
		require.True(t, ok)
		assert.Equal(t, 1, got.Number)
	}

	assert.Equal(t, 1, strings.Count(buf.String(), "ignoring invalid title pattern"))
	assert.Equal(t, rule, filter.Rule())
}

func TestSelectGoodFirstIssue(t *testing.T) {
	target := issue(4200, 42, base, "good first issue")
	other := issue(4300, 43, base.Add(time.Hour), "good first issue")
	unlabeled := issue(4100, 41, base.Add(-time.Hour))

	got, ok := Select([]models.IssueSnapshot{other, unlabeled, target},
		models.RepositoryRule{Labels: []string{"good first issue"}}, models.NewProcessedSet())
	require.True(t, ok)
	assert.Equal(t, 42, got.Number)
}

func TestSelectEmpty(t *testing.T) {
	_, ok := Select(nil, models.RepositoryRule{}, models.NewProcessedSet())
	assert.False(t, ok)
}
