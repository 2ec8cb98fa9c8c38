package usecase

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/contrib-stats/internal/cache"
	"github.com/naka-gawa/contrib-stats/internal/domain"
	"github.com/naka-gawa/contrib-stats/internal/gateway"
	"github.com/naka-gawa/contrib-stats/internal/period"
)

const (
	// flushInterval is how often newly settled PRs are persisted during a
	// long fetch, so an interrupted run keeps its settled progress.
	flushInterval = 30 * time.Second
	// progressInterval is how often a long fetch logs a progress line.
	progressInterval = 60 * time.Second
)

// Options configures a collection run.
type Options struct {
	MaxWorkers         int
	CollectReviews     bool
	CollectCommitStats bool
	UseCache           bool
	BotLogin           string
}

// Collector runs fetch and aggregation for every configured repository:
// one bounded pool of per-repository PR tasks, then one bounded pool of
// flattened (repository, month) commit tasks.
type Collector struct {
	fetcher gateway.Fetcher
	store   *cache.Store
	cal     period.Calendar
	opts    Options
	logger  *log.Logger
}

// NewCollector creates a Collector. store may be nil when caching is
// disabled.
func NewCollector(fetcher gateway.Fetcher, store *cache.Store, cal period.Calendar, opts Options, logger *log.Logger) *Collector {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.BotLogin == "" {
		opts.BotLogin = DefaultBotLogin
	}
	return &Collector{fetcher: fetcher, store: store, cal: cal, opts: opts, logger: logger}
}

func (c *Collector) useCache() bool {
	return c.opts.UseCache && c.store != nil
}

// Collect aggregates activity for every repository since startDate and
// returns the corpus of all repositories that produced data. A failing
// repository is logged and excluded; it never aborts its siblings.
func (c *Collector) Collect(ctx context.Context, repos []domain.RepoRef, startDate, now time.Time) *domain.Corpus {
	cutoff := c.cal.SettledCutoff(now)
	results := make([]*domain.RepoSnapshot, len(repos))

	// Phase 1: pull requests, one task per repository.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.opts.MaxWorkers)
	for i, repo := range repos {
		i, repo := i, repo
		eg.Go(func() error {
			snap, err := c.collectPullRequests(egCtx, repo, startDate, cutoff)
			if err != nil {
				c.logRepoFailure(repo, err)
				return nil
			}
			results[i] = snap
			return nil
		})
	}
	eg.Wait()

	// Phase 2: commits, one task per non-reusable (repository, month),
	// flattened across repositories into a single bounded pool.
	if c.opts.CollectCommitStats {
		c.collectCommits(ctx, repos, results, startDate, now, cutoff)
	}

	corpus := &domain.Corpus{CollectedAt: now, StartDate: startDate}
	for _, snap := range results {
		if snap != nil {
			corpus.Repositories = append(corpus.Repositories, snap.Export())
		}
	}
	c.logger.Printf("collection complete: %d/%d repositories produced data", len(corpus.Repositories), len(repos))
	return corpus
}

// collectPullRequests builds the PR-derived aggregate for one repository:
// settled data from the cache where usable, everything else fetched fresh.
func (c *Collector) collectPullRequests(ctx context.Context, repo domain.RepoRef, startDate, cutoff time.Time) (*domain.RepoSnapshot, error) {
	full := repo.FullName()

	if err := c.fetcher.CheckRepository(ctx, repo.Owner, repo.Name); err != nil {
		return nil, err
	}

	var settled *Accumulator
	if c.useCache() {
		if cached, ok := c.store.Load(full); ok {
			if CacheUsable(cached, startDate) {
				settled = AccumulatorFromSnapshot(cached, c.cal, c.opts.BotLogin)
				c.logger.Printf("%s: using %d cached PRs (before %s)", full, len(cached.PRs), c.cal.MonthKey(cutoff))
			} else {
				c.logger.Printf("%s: cache has no coverage before %s, refetching in full", full, startDate.Format("2006-01-02"))
			}
		}
	}
	if settled == nil {
		settled = NewAccumulator(full, c.cal, c.opts.BotLogin)
	}
	if settled.Snap.StartDate.IsZero() || settled.Snap.StartDate.After(startDate) {
		settled.Snap.StartDate = startDate
	}
	open := NewAccumulator(full, c.cal, c.opts.BotLogin)

	fetched := 0
	newSettled := 0
	lastFlush := time.Now()
	lastProgress := time.Now()
	started := time.Now()

	opts := gateway.PullRequestOptions{Since: startDate, WithReviews: c.opts.CollectReviews}
	err := c.fetcher.PullRequests(ctx, repo.Owner, repo.Name, opts, func(pr domain.PullRequest) error {
		fetched++
		if c.cal.IsSettled(pr.CreatedAt, cutoff) {
			// Cache wins for settled PRs it already holds; fresh data
			// fills every gap, including months settled since last run.
			if settled.HasPR(pr.Number) {
				return nil
			}
			if pr.CreatedAt.Before(startDate) {
				return nil
			}
			settled.FoldPullRequest(pr)
			newSettled++
			if c.useCache() && time.Since(lastFlush) >= flushInterval {
				c.store.Save(full, settled.Snap)
				lastFlush = time.Now()
			}
		} else {
			open.FoldPullRequest(pr)
		}

		if time.Since(lastProgress) >= progressInterval {
			elapsed := time.Since(started).Round(time.Second)
			c.logger.Printf("%s: %d PRs fetched so far (elapsed: %s)", full, fetched, elapsed)
			lastProgress = time.Now()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.useCache() && newSettled > 0 {
		c.store.Save(full, settled.Snap)
	}
	c.logger.Printf("%s: collected %d PRs (%d newly settled)", full, fetched, newSettled)

	return MergeSnapshots(settled.Snap, open.Snap), nil
}

type monthTask struct {
	repoIdx int
	repo    domain.RepoRef
	month   period.Month
	since   time.Time
	until   time.Time
	settled bool
}

// collectCommits merges reusable month chunks in-process and dispatches
// one fetch task per remaining (repository, month) pair.
func (c *Collector) collectCommits(ctx context.Context, repos []domain.RepoRef, results []*domain.RepoSnapshot, startDate, now, cutoff time.Time) {
	var tasks []monthTask
	for i, snap := range results {
		if snap == nil {
			continue
		}
		full := repos[i].FullName()
		for _, m := range c.cal.EnumerateMonths(startDate, now) {
			since := laterOf(m.Start, startDate)
			until := earlierOf(m.End, now)
			settledMonth := m.End.Before(cutoff)

			if c.useCache() && settledMonth {
				if chunk, ok := c.store.LoadChunk(full, m.Key); ok && chunk.Covers(since, until) {
					MergeChunk(snap, chunk)
					c.logger.Printf("%s: reusing cached commit chunk for %s", full, m.Key)
					continue
				}
			}
			tasks = append(tasks, monthTask{
				repoIdx: i,
				repo:    repos[i],
				month:   m,
				since:   since,
				until:   until,
				settled: settledMonth,
			})
		}
	}

	// Month tasks for the same repository can complete concurrently, so
	// each repository's accumulator gets its own lock.
	locks := make([]sync.Mutex, len(results))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.opts.MaxWorkers)
	for _, t := range tasks {
		t := t
		eg.Go(func() error {
			c.runMonthTask(egCtx, t, results, locks)
			return nil
		})
	}
	eg.Wait()
}

func (c *Collector) runMonthTask(ctx context.Context, t monthTask, results []*domain.RepoSnapshot, locks []sync.Mutex) {
	full := t.repo.FullName()
	acc := NewAccumulator(full, c.cal, c.opts.BotLogin)
	observed := 0

	err := c.fetcher.Commits(ctx, t.repo.Owner, t.repo.Name, t.since, t.until, func(cm domain.Commit) error {
		if !cm.AuthoredAt.Before(t.since) && !cm.AuthoredAt.After(t.until) {
			observed++
		}
		acc.FoldCommit(cm, t.since, t.until)
		return nil
	})
	if err != nil {
		c.logger.Printf("%s: failed to collect commits for %s: %v", full, t.month.Key, err)
		return
	}

	chunk := ChunkFromAccumulator(acc, t.month.Key, t.since, t.until, observed)
	if c.useCache() && t.settled {
		c.store.SaveChunk(full, chunk)
	}
	c.logger.Printf("%s: collected %d commits for %s", full, observed, t.month.Key)

	locks[t.repoIdx].Lock()
	MergeChunk(results[t.repoIdx], chunk)
	locks[t.repoIdx].Unlock()
}

func (c *Collector) logRepoFailure(repo domain.RepoRef, err error) {
	full := repo.FullName()
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		c.logger.Printf("%s: repository not found, skipping", full)
	case errors.Is(err, gateway.ErrForbidden):
		c.logger.Printf("%s: access forbidden, skipping (does the token have repo scope?)", full)
	case errors.Is(err, gateway.ErrUnauthorized):
		c.logger.Printf("%s: authentication failed, skipping", full)
	default:
		c.logger.Printf("%s: collection failed, skipping: %v", full, err)
	}
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
