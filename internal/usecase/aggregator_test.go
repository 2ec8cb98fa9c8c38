package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/contrib-stats/internal/domain"
	"github.com/naka-gawa/contrib-stats/internal/period"
)

func ts(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func tsPtr(year int, month time.Month, day int) *time.Time {
	t := ts(year, month, day)
	return &t
}

// scenarioPRs is the acme/widgets fixture: one ordinary merged PR, one
// agent-authored PR merged by bob, one still-open PR.
func scenarioPRs() []domain.PullRequest {
	return []domain.PullRequest{
		{
			Number:    1,
			Title:     "Add widget",
			Author:    "alice",
			State:     "merged",
			CreatedAt: ts(2024, 1, 5),
			MergedAt:  tsPtr(2024, 1, 10),
			MergedBy:  "alice",
			Additions: 10,
			Deletions: 2,
		},
		{
			Number:    2,
			Title:     "Automated refactor",
			Author:    DefaultBotLogin,
			State:     "merged",
			CreatedAt: ts(2024, 1, 20),
			MergedAt:  tsPtr(2024, 2, 1),
			MergedBy:  "bob",
			Additions: 30,
			Deletions: 5,
		},
		{
			Number:    3,
			Title:     "Work in progress",
			Author:    "carol",
			State:     "open",
			CreatedAt: ts(2024, 2, 15),
		},
	}
}

func newTestAccumulator() *Accumulator {
	return NewAccumulator("acme/widgets", period.Default(), DefaultBotLogin)
}

func TestAccumulator_Scenario(t *testing.T) {
	acc := newTestAccumulator()
	for _, pr := range scenarioPRs() {
		acc.FoldPullRequest(pr)
	}
	snap := acc.Snap

	assert.Equal(t, 2, snap.MonthlyStats["2024-01"].PRsCreated)
	assert.Equal(t, 1, snap.MonthlyStats["2024-01"].PRsMerged)
	assert.Equal(t, 1, snap.MonthlyStats["2024-02"].PRsCreated)
	assert.Equal(t, 1, snap.MonthlyStats["2024-02"].PRsMerged)

	require.Contains(t, snap.Contributions, "bob")
	assert.Equal(t, 1, snap.Contributions["bob"].PRsMerged)
	assert.Equal(t, 30, snap.Contributions["bob"].Additions)
	assert.Equal(t, 5, snap.Contributions["bob"].Deletions)

	require.Contains(t, snap.DevinBreakdown, "bob")
	assert.Equal(t, &domain.DevinBreakdown{PRsMerged: 1, Additions: 30, Deletions: 5}, snap.DevinBreakdown["bob"])

	// The agent itself accrues nothing.
	assert.NotContains(t, snap.Contributions, DefaultBotLogin)
	assert.NotContains(t, snap.DevinBreakdown, DefaultBotLogin)

	alice := snap.Contributions["alice"]
	assert.Equal(t, 1, alice.PRsCreated)
	assert.Equal(t, 1, alice.PRsMerged)
	assert.Equal(t, 10, alice.Additions)
	assert.Equal(t, 2, alice.Deletions)

	// The merger counts as a contributor of the merge month.
	assert.True(t, snap.MonthlyStats["2024-02"].Contributors.Has("bob"))
	assert.True(t, snap.MonthlyStats["2024-01"].Contributors.Has("alice"))
}

func TestAccumulator_BotPRWithoutMergerFallsBackToAuthor(t *testing.T) {
	acc := newTestAccumulator()
	acc.FoldPullRequest(domain.PullRequest{
		Number:    4,
		Author:    DefaultBotLogin,
		State:     "merged",
		CreatedAt: ts(2024, 1, 3),
		MergedAt:  tsPtr(2024, 1, 4),
		Additions: 7,
	})

	// Without a known merger the reattribution rule does not apply.
	require.Contains(t, acc.Snap.Contributions, DefaultBotLogin)
	assert.Equal(t, 1, acc.Snap.Contributions[DefaultBotLogin].PRsCreated)
	assert.Empty(t, acc.Snap.DevinBreakdown)
}

func TestAccumulator_ReviewerDedup(t *testing.T) {
	acc := newTestAccumulator()
	acc.FoldPullRequest(domain.PullRequest{
		Number:    5,
		Author:    "alice",
		State:     "open",
		CreatedAt: ts(2024, 3, 1),
		Reviewers: []string{"bob", "bob", "carol"},
	})

	assert.Equal(t, 1, acc.Snap.Contributions["bob"].PRsReviewed)
	assert.Equal(t, 1, acc.Snap.Contributions["carol"].PRsReviewed)
	assert.Equal(t, 1, acc.Snap.MonthlyContributions["2024-03"]["bob"].PRsReviewed)
}

func TestAccumulator_UnknownAuthorSentinel(t *testing.T) {
	acc := newTestAccumulator()
	acc.FoldPullRequest(domain.PullRequest{
		Number:    6,
		Author:    "",
		State:     "closed",
		CreatedAt: ts(2024, 3, 2),
	})

	// A deleted account still counts, so totals stay consistent with the
	// total PR count.
	assert.Equal(t, 1, acc.Snap.Contributions[domain.UnknownLogin].PRsCreated)
	assert.Equal(t, 1, acc.Snap.MonthlyStats["2024-03"].PRsCreated)
}

func TestAccumulator_NegativeStatsClampToZero(t *testing.T) {
	acc := newTestAccumulator()
	acc.FoldPullRequest(domain.PullRequest{
		Number:    7,
		Author:    "alice",
		State:     "open",
		CreatedAt: ts(2024, 3, 3),
		Additions: -4,
		Deletions: -1,
	})
	acc.FoldCommit(domain.Commit{
		SHA:         "abc",
		AuthorLogin: "alice",
		AuthoredAt:  ts(2024, 3, 4),
		Additions:   -10,
		Deletions:   3,
	}, ts(2024, 3, 1), ts(2024, 3, 31))

	alice := acc.Snap.Contributions["alice"]
	assert.Equal(t, 0, alice.Additions)
	assert.Equal(t, 3, alice.Deletions)
}

func TestAccumulator_DuplicatePRNumberIgnored(t *testing.T) {
	acc := newTestAccumulator()
	pr := scenarioPRs()[0]
	acc.FoldPullRequest(pr)
	acc.FoldPullRequest(pr)

	assert.Equal(t, 1, acc.Snap.Contributions["alice"].PRsCreated)
	assert.Len(t, acc.Snap.PRs, 1)
}

func TestAccumulator_FoldCommit(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)

	testCases := []struct {
		name     string
		commit   domain.Commit
		expected bool
	}{
		{
			name:     "attributed commit in window",
			commit:   domain.Commit{SHA: "a", AuthorLogin: "alice", AuthoredAt: ts(2024, 1, 15), Additions: 5, Deletions: 1},
			expected: true,
		},
		{
			name:     "commit before window is discarded",
			commit:   domain.Commit{SHA: "b", AuthorLogin: "alice", AuthoredAt: ts(2023, 12, 15), Additions: 5},
			expected: false,
		},
		{
			name:     "commit after window is discarded",
			commit:   domain.Commit{SHA: "c", AuthorLogin: "alice", AuthoredAt: ts(2024, 2, 15), Additions: 5},
			expected: false,
		},
		{
			name:     "unattributable commit is skipped",
			commit:   domain.Commit{SHA: "d", AuthorLogin: "", AuthoredAt: ts(2024, 1, 16), Additions: 5},
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			acc := newTestAccumulator()
			acc.FoldCommit(tc.commit, since, until)
			if tc.expected {
				assert.Equal(t, 1, acc.Snap.Contributions["alice"].Commits)
				assert.Equal(t, 5, acc.Snap.CodeFrequency["2024-01"].Additions)
				assert.True(t, acc.Snap.MonthlyStats["2024-01"].Contributors.Has("alice"))
			} else {
				assert.Empty(t, acc.Snap.Contributions)
				assert.Empty(t, acc.Snap.CodeFrequency)
			}
		})
	}
}

// Folding the same record set twice into fresh accumulators yields
// identical snapshots: the fold is pure.
func TestAccumulator_IdempotentReaggregation(t *testing.T) {
	commits := []domain.Commit{
		{SHA: "a", AuthorLogin: "alice", AuthoredAt: ts(2024, 1, 15), Additions: 5, Deletions: 1},
		{SHA: "b", AuthorLogin: "bob", AuthoredAt: ts(2024, 2, 10), Additions: 3},
	}
	since := ts(2024, 1, 1)
	until := ts(2024, 3, 1)

	fold := func() *domain.RepoSnapshot {
		acc := newTestAccumulator()
		for _, pr := range scenarioPRs() {
			acc.FoldPullRequest(pr)
		}
		for _, cm := range commits {
			acc.FoldCommit(cm, since, until)
		}
		return acc.Snap
	}

	assert.Equal(t, fold(), fold())
}

// The monthly scopes of a contributor must sum to the all-time scope.
func TestAccumulator_MonthlySumsMatchAllTime(t *testing.T) {
	acc := newTestAccumulator()
	for _, pr := range scenarioPRs() {
		acc.FoldPullRequest(pr)
	}
	acc.FoldCommit(domain.Commit{SHA: "a", AuthorLogin: "alice", AuthoredAt: ts(2024, 2, 20), Additions: 8, Deletions: 2}, ts(2024, 1, 1), ts(2024, 3, 1))

	for login, allTime := range acc.Snap.Contributions {
		var summed domain.ContributionStats
		for _, month := range acc.Snap.MonthlyContributions {
			if cs, ok := month[login]; ok {
				summed.Add(cs)
			}
		}
		assert.Equal(t, *allTime, summed, "monthly scopes for %s must sum to the all-time scope", login)
	}
}
