// Package usecase contains the business logic of the application: the
// aggregation fold, the cache/fresh merge rules, and the multi-repository
// collection orchestrator.
package usecase

import (
	"time"

	"github.com/naka-gawa/contrib-stats/internal/domain"
	"github.com/naka-gawa/contrib-stats/internal/period"
)

// DefaultBotLogin is the automated agent whose merged PRs are credited to
// the human who merged them.
const DefaultBotLogin = "devin-ai-integration[bot]"

// Accumulator folds pull request and commit records into the running
// statistics of one repository snapshot. The fold is pure: no global
// state, so folding the same record set always yields the same snapshot,
// and folds over disjoint record sets can be merged by summation.
type Accumulator struct {
	Snap *domain.RepoSnapshot

	cal      period.Calendar
	botLogin string
	seenPRs  map[int]struct{}
}

// NewAccumulator returns an empty accumulator for repository.
func NewAccumulator(repository string, cal period.Calendar, botLogin string) *Accumulator {
	return &Accumulator{
		Snap:     domain.NewRepoSnapshot(repository),
		cal:      cal,
		botLogin: botLogin,
		seenPRs:  make(map[int]struct{}),
	}
}

// AccumulatorFromSnapshot wraps a cached snapshot so newly fetched
// records fold on top of it. PR numbers already present are remembered,
// which is what lets the collector skip records the cache already owns.
func AccumulatorFromSnapshot(snap *domain.RepoSnapshot, cal period.Calendar, botLogin string) *Accumulator {
	snap.Init()
	seen := make(map[int]struct{}, len(snap.PRs))
	for _, pr := range snap.PRs {
		seen[pr.Number] = struct{}{}
	}
	return &Accumulator{Snap: snap, cal: cal, botLogin: botLogin, seenPRs: seen}
}

// HasPR reports whether a PR with this number has already been folded.
func (a *Accumulator) HasPR(number int) bool {
	_, ok := a.seenPRs[number]
	return ok
}

// FoldPullRequest folds one pull request into the accumulator. A PR
// whose number was already folded is ignored, so re-folding a record
// set never double counts.
func (a *Accumulator) FoldPullRequest(pr domain.PullRequest) {
	if a.HasPR(pr.Number) {
		return
	}
	a.seenPRs[pr.Number] = struct{}{}

	pr.Additions = clampNonNegative(pr.Additions)
	pr.Deletions = clampNonNegative(pr.Deletions)
	if pr.Author == "" {
		pr.Author = domain.UnknownLogin
	}
	pr.Reviewers = dedupeLogins(pr.Reviewers)

	monthKey := a.cal.MonthKey(pr.CreatedAt)
	a.Snap.Monthly(monthKey).PRsCreated++

	mergeMonth := ""
	if pr.Merged() {
		mergeMonth = a.cal.MonthKey(*pr.MergedAt)
		a.Snap.Monthly(mergeMonth).PRsMerged++
	}

	if pr.Author == a.botLogin && pr.Merged() && pr.MergedBy != "" {
		// The agent's merged PR is credited to the human who merged it;
		// the same deltas are mirrored into that person's breakdown so
		// the report can show how much of their total came this way.
		merger := pr.MergedBy
		cs := a.Snap.Contribution(merger)
		cs.PRsMerged++
		cs.Additions += pr.Additions
		cs.Deletions += pr.Deletions

		mc := a.Snap.MonthlyContribution(mergeMonth, merger)
		mc.PRsMerged++
		mc.Additions += pr.Additions
		mc.Deletions += pr.Deletions

		db := a.Snap.Devin(merger)
		db.PRsMerged++
		db.Additions += pr.Additions
		db.Deletions += pr.Deletions

		a.Snap.Monthly(mergeMonth).Contributors.Add(merger)
	} else {
		cs := a.Snap.Contribution(pr.Author)
		cs.PRsCreated++
		cs.Additions += pr.Additions
		cs.Deletions += pr.Deletions

		mc := a.Snap.MonthlyContribution(monthKey, pr.Author)
		mc.PRsCreated++
		mc.Additions += pr.Additions
		mc.Deletions += pr.Deletions

		if pr.Merged() {
			cs.PRsMerged++
			a.Snap.MonthlyContribution(mergeMonth, pr.Author).PRsMerged++
		}
		a.Snap.Monthly(monthKey).Contributors.Add(pr.Author)
	}

	for _, reviewer := range pr.Reviewers {
		a.Snap.Contribution(reviewer).PRsReviewed++
		a.Snap.MonthlyContribution(monthKey, reviewer).PRsReviewed++
	}

	a.Snap.PRs = append(a.Snap.PRs, pr)
}

// FoldCommit folds one commit into the accumulator. Commits outside
// [since, until] are discarded, and commits with no resolvable author
// login are skipped as unattributable.
func (a *Accumulator) FoldCommit(c domain.Commit, since, until time.Time) {
	if c.AuthoredAt.Before(since) || c.AuthoredAt.After(until) {
		return
	}
	if c.AuthorLogin == "" {
		return
	}

	additions := clampNonNegative(c.Additions)
	deletions := clampNonNegative(c.Deletions)
	monthKey := a.cal.MonthKey(c.AuthoredAt)

	cs := a.Snap.Contribution(c.AuthorLogin)
	cs.Commits++
	cs.Additions += additions
	cs.Deletions += deletions

	mc := a.Snap.MonthlyContribution(monthKey, c.AuthorLogin)
	mc.Commits++
	mc.Additions += additions
	mc.Deletions += deletions

	cf := a.Snap.Frequency(monthKey)
	cf.Additions += additions
	cf.Deletions += deletions

	ms := a.Snap.Monthly(monthKey)
	ms.Additions += additions
	ms.Deletions += deletions
	ms.Contributors.Add(c.AuthorLogin)
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func dedupeLogins(logins []string) []string {
	if len(logins) == 0 {
		return logins
	}
	seen := make(map[string]struct{}, len(logins))
	out := logins[:0]
	for _, login := range logins {
		if _, ok := seen[login]; ok {
			continue
		}
		seen[login] = struct{}{}
		out = append(out, login)
	}
	return out
}
