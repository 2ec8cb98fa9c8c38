package usecase

import (
	"time"

	"github.com/naka-gawa/contrib-stats/internal/cache"
	"github.com/naka-gawa/contrib-stats/internal/domain"
)

// CacheUsable reports whether a cached snapshot has coverage back to
// startDate. A cache that does not reach back that far would silently
// under-report older history, so it is discarded in full for the run
// instead. Snapshots record the fetch window they were built from;
// snapshots written before that field existed fall back to the oldest
// retained PR as the coverage bound.
func CacheUsable(snap *domain.RepoSnapshot, startDate time.Time) bool {
	if !snap.StartDate.IsZero() {
		return !snap.StartDate.After(startDate)
	}
	oldest, ok := snap.OldestPRCreatedAt()
	if !ok {
		return false
	}
	return !oldest.After(startDate)
}

// MergeSnapshots combines two aggregates built from disjoint record sets
// into a fresh snapshot. Numeric accumulators merge by per-field
// summation; contributor sets merge by union.
func MergeSnapshots(a, b *domain.RepoSnapshot) *domain.RepoSnapshot {
	out := domain.NewRepoSnapshot(a.Repository)
	addSnapshot(out, a)
	addSnapshot(out, b)
	return out
}

func addSnapshot(dst, src *domain.RepoSnapshot) {
	dst.PRs = append(dst.PRs, src.PRs...)
	for login, cs := range src.Contributions {
		dst.Contribution(login).Add(cs)
	}
	for month, ms := range src.MonthlyStats {
		dst.Monthly(month).Add(ms)
	}
	for month, contributions := range src.MonthlyContributions {
		for login, cs := range contributions {
			dst.MonthlyContribution(month, login).Add(cs)
		}
	}
	for month, cf := range src.CodeFrequency {
		dst.Frequency(month).Add(cf)
	}
	for login, db := range src.DevinBreakdown {
		dst.Devin(login).Add(db)
	}
}

// MergeChunk folds a month's commit-side cache unit into the snapshot.
// Chunks and PR-derived aggregates never overlap, and no two chunks
// cover the same month, so summation is safe here too.
func MergeChunk(snap *domain.RepoSnapshot, chunk *cache.MonthlyChunk) {
	cf := snap.Frequency(chunk.Month)
	cf.Additions += chunk.CodeFrequency.Additions
	cf.Deletions += chunk.CodeFrequency.Deletions

	ms := snap.Monthly(chunk.Month)
	ms.Commits += chunk.Commits
	ms.Additions += chunk.CodeFrequency.Additions
	ms.Deletions += chunk.CodeFrequency.Deletions
	ms.Contributors.Union(chunk.Contributors)

	for login, cs := range chunk.Contributions {
		snap.Contribution(login).Add(cs)
		snap.MonthlyContribution(chunk.Month, login).Add(cs)
	}
}

// ChunkFromAccumulator extracts the commit-side cache unit for one month
// from an accumulator that folded exactly that month's commits. observed
// counts every commit seen inside the fetched window, attributed or not;
// a chunk with zero observed commits is never persisted.
func ChunkFromAccumulator(acc *Accumulator, monthKey string, start, end time.Time, observed int) *cache.MonthlyChunk {
	chunk := &cache.MonthlyChunk{
		Repository:    acc.Snap.Repository,
		Month:         monthKey,
		StartDate:     start,
		EndDate:       end,
		Commits:       observed,
		Contributions: acc.Snap.Contributions,
		Contributors:  make(domain.StringSet),
	}
	if cf, ok := acc.Snap.CodeFrequency[monthKey]; ok {
		chunk.CodeFrequency = *cf
	}
	if ms, ok := acc.Snap.MonthlyStats[monthKey]; ok {
		chunk.Contributors.Union(ms.Contributors)
	}
	return chunk
}
