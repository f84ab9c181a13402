// Package eligibility decides which issues of a repository may receive an
// assignment request, and in which order.
package eligibility

import (
	"regexp"
	"sort"

	"github.com/danielolaszy/issuebot/internal/logging"
	"github.com/danielolaszy/issuebot/pkg/models"
)

// Filter applies one repository rule. The title pattern is compiled once, so
// an invalid pattern is reported only when the Filter is built.
type Filter struct {
	rule  models.RepositoryRule
	title *regexp.Regexp
}

// NewFilter compiles rule into a Filter.
func NewFilter(rule models.RepositoryRule) *Filter {
	return &Filter{rule: rule, title: CompileTitlePattern(rule)}
}

// Rule returns the rule the filter was built from.
func (f *Filter) Rule() models.RepositoryRule {
	return f.rule
}

// Candidates returns the issues that qualify under the rule and have not been
// processed yet, oldest first. Ties on creation time are broken by ID.
func (f *Filter) Candidates(issues []models.IssueSnapshot, processed models.ProcessedSet) []models.IssueSnapshot {
	var result []models.IssueSnapshot
	for _, issue := range issues {
		if processed.Contains(issue.ID) {
			continue
		}
		if issue.Assigned {
			continue
		}
		if !hasAllLabels(issue.Labels, f.rule.Labels) {
			continue
		}
		if hasAnyLabel(issue.Labels, f.rule.ExcludeLabels) {
			continue
		}
		if f.title != nil && !f.title.MatchString(issue.Title) {
			continue
		}
		result = append(result, issue)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result
}

// Select returns the single oldest eligible issue, if any.
func (f *Filter) Select(issues []models.IssueSnapshot, processed models.ProcessedSet) (models.IssueSnapshot, bool) {
	candidates := f.Candidates(issues, processed)
	if len(candidates) == 0 {
		return models.IssueSnapshot{}, false
	}
	return candidates[0], true
}

// Candidates is a one-shot form of Filter.Candidates.
func Candidates(issues []models.IssueSnapshot, rule models.RepositoryRule, processed models.ProcessedSet) []models.IssueSnapshot {
	return NewFilter(rule).Candidates(issues, processed)
}

// Select is a one-shot form of Filter.Select.
func Select(issues []models.IssueSnapshot, rule models.RepositoryRule, processed models.ProcessedSet) (models.IssueSnapshot, bool) {
	return NewFilter(rule).Select(issues, processed)
}

// CompileTitlePattern compiles the rule's title pattern. It returns nil when
// the rule has no pattern or the pattern does not compile; in the latter case
// the title check is skipped rather than rejecting every issue.
func CompileTitlePattern(rule models.RepositoryRule) *regexp.Regexp {
	if rule.TitlePattern == "" {
		return nil
	}

	re, err := regexp.Compile(rule.TitlePattern)
	if err != nil {
		logging.Warn("ignoring invalid title pattern",
			"repository", rule.FullName(),
			"pattern", rule.TitlePattern,
			"error", err)
		return nil
	}
	return re
}

func hasAllLabels(labels []string, required []string) bool {
	for _, want := range required {
		if !containsLabel(labels, want) {
			return false
		}
	}
	return true
}

func hasAnyLabel(labels []string, excluded []string) bool {
	for _, label := range excluded {
		if containsLabel(labels, label) {
			return true
		}
	}
	return false
}

func containsLabel(labels []string, target string) bool {
	for _, label := range labels {
		if label == target {
			return true
		}
	}
	return false
}
