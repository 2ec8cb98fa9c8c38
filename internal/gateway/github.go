// Package gateway provides a gateway to the GitHub API, abstracting away
// the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/contrib-stats/internal/domain"
)

// ErrStop terminates a paginated fetch early from inside a visit callback.
var ErrStop = errors.New("stop pagination")

// Structural errors; a repository task hitting one of these produces no
// data, and sibling tasks are unaffected.
var (
	ErrUnauthorized = errors.New("authentication failed")
	ErrForbidden    = errors.New("access forbidden")
	ErrNotFound     = errors.New("repository not found")
)

const (
	// rateLimitLowWater is the remaining-request threshold below which a
	// task waits for the reset.
	rateLimitLowWater = 10
	// rateLimitMargin pads the wait past the stated reset time.
	rateLimitMargin = 10 * time.Second
	// maxStatsErrors is the consecutive per-commit stat failure ceiling;
	// past it, remaining commits in the fetch degrade to zero stats.
	maxStatsErrors = 10
	// maxCommitsPerFetch bounds the expensive per-commit calls one fetch
	// may issue.
	maxCommitsPerFetch = 1000
)

// PullRequestOptions controls a PullRequests fetch.
type PullRequestOptions struct {
	// Since truncates pagination: the stream is ordered by updated_at
	// descending, and stops once records fall before Since.
	Since time.Time
	// WithReviews selects the more expensive query variant that also
	// retrieves each PR's reviewer logins.
	WithReviews bool
}

// Fetcher defines the behavior of a gateway for fetching repository
// activity from GitHub.
type Fetcher interface {
	CheckRepository(ctx context.Context, owner, name string) error
	PullRequests(ctx context.Context, owner, name string, opts PullRequestOptions, visit func(domain.PullRequest) error) error
	Commits(ctx context.Context, owner, name string, since, until time.Time, visit func(domain.Commit) error) error
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
}

// pullRequestQuery pages through a repository's pull requests newest
// updated first.
type pullRequestQuery struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool
			EndCursor   githubv4.String
		}
		Edges []struct {
			Node struct {
				Typename    string `graphql:"__typename"`
				PullRequest struct {
					Number    int
					Title     string
					State     githubv4.PullRequestState
					CreatedAt githubv4.DateTime
					UpdatedAt githubv4.DateTime
					MergedAt  githubv4.DateTime
					Additions int
					Deletions int
					Author    struct {
						Login string
					}
					MergedBy struct {
						Login string
					}
				} `graphql:"... on PullRequest"`
			}
		}
	} `graphql:"search(query: $query, type: ISSUE, first: 100, after: $cursor)"`
}

// pullRequestReviewQuery is the variant that also carries each PR's
// reviews; it uses a smaller page size because of the nested connection.
type pullRequestReviewQuery struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool
			EndCursor   githubv4.String
		}
		Edges []struct {
			Node struct {
				Typename    string `graphql:"__typename"`
				PullRequest struct {
					Number    int
					Title     string
					State     githubv4.PullRequestState
					CreatedAt githubv4.DateTime
					UpdatedAt githubv4.DateTime
					MergedAt  githubv4.DateTime
					Additions int
					Deletions int
					Author    struct {
						Login string
					}
					MergedBy struct {
						Login string
					}
					Reviews struct {
						Nodes []struct {
							Author struct {
								Login string
							}
						}
					} `graphql:"reviews(first: 100, states: [COMMENTED, APPROVED, CHANGES_REQUESTED])"`
				} `graphql:"... on PullRequest"`
			}
		}
	} `graphql:"search(query: $query, type: ISSUE, first: 25, after: $cursor)"`
}

// NewGitHubGateway creates a gateway authenticated with token. The HTTP
// transport stacks the secondary-rate-limit waiter under the oauth2
// token source.
func NewGitHubGateway(token string, logger *log.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
	}, nil
}

// AuthenticatedLogin verifies the token and returns the login it belongs to.
func (g *GitHubGateway) AuthenticatedLogin(ctx context.Context) (string, error) {
	user, _, err := g.restClient.Users.Get(ctx, "")
	if err != nil {
		return "", classifyError(err, "authenticate")
	}
	return user.GetLogin(), nil
}

// RateLimitStatus returns the remaining core-API budget and its reset time.
func (g *GitHubGateway) RateLimitStatus(ctx context.Context) (remaining, limit int, resetAt time.Time, err error) {
	limits, _, err := g.restClient.RateLimit.Get(ctx)
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("failed to fetch rate limit: %w", err)
	}
	core := limits.GetCore()
	return core.Remaining, core.Limit, core.Reset.Time, nil
}

// CheckRepository probes the repository and classifies access failures.
func (g *GitHubGateway) CheckRepository(ctx context.Context, owner, name string) error {
	if _, _, err := g.restClient.Repositories.Get(ctx, owner, name); err != nil {
		return classifyError(err, fmt.Sprintf("access %s/%s", owner, name))
	}
	return nil
}

// PullRequests streams the repository's pull requests, newest updated
// first, into visit until records fall before opts.Since or visit
// returns ErrStop.
func (g *GitHubGateway) PullRequests(ctx context.Context, owner, name string, opts PullRequestOptions, visit func(domain.PullRequest) error) error {
	query := fmt.Sprintf("repo:%s/%s is:pr sort:updated-desc", owner, name)
	variables := map[string]interface{}{
		"query":  githubv4.String(query),
		"cursor": (*githubv4.String)(nil),
	}

	for {
		if err := g.waitForRateLimit(ctx); err != nil {
			return err
		}

		var page []domain.PullRequest
		var hasNext bool
		var cursor githubv4.String
		var err error
		if opts.WithReviews {
			page, hasNext, cursor, err = g.queryPullRequestsWithReviews(ctx, variables)
		} else {
			page, hasNext, cursor, err = g.queryPullRequests(ctx, variables)
		}
		if err != nil {
			return fmt.Errorf("failed to execute pull request query for %s/%s: %w", owner, name, err)
		}

		for _, pr := range page {
			if pr.UpdatedAt.Before(opts.Since) {
				// Ordered by updated_at descending: everything after this
				// point is outside the lookback window.
				return nil
			}
			if err := visit(pr); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		}

		if !hasNext {
			return nil
		}
		variables["cursor"] = githubv4.NewString(cursor)
		g.logger.Printf("  fetching next page of pull requests for %s/%s...", owner, name)
	}
}

func (g *GitHubGateway) queryPullRequests(ctx context.Context, variables map[string]interface{}) ([]domain.PullRequest, bool, githubv4.String, error) {
	var q pullRequestQuery
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return nil, false, "", err
	}
	prs := make([]domain.PullRequest, 0, len(q.Search.Edges))
	for _, edge := range q.Search.Edges {
		if edge.Node.Typename != "PullRequest" {
			continue
		}
		n := edge.Node.PullRequest
		prs = append(prs, buildPullRequest(
			n.Number, n.Title, n.State, n.CreatedAt, n.UpdatedAt, n.MergedAt,
			n.Additions, n.Deletions, n.Author.Login, n.MergedBy.Login, nil,
		))
	}
	return prs, q.Search.PageInfo.HasNextPage, q.Search.PageInfo.EndCursor, nil
}

func (g *GitHubGateway) queryPullRequestsWithReviews(ctx context.Context, variables map[string]interface{}) ([]domain.PullRequest, bool, githubv4.String, error) {
	var q pullRequestReviewQuery
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return nil, false, "", err
	}
	prs := make([]domain.PullRequest, 0, len(q.Search.Edges))
	for _, edge := range q.Search.Edges {
		if edge.Node.Typename != "PullRequest" {
			continue
		}
		n := edge.Node.PullRequest
		var reviewers []string
		for _, review := range n.Reviews.Nodes {
			if review.Author.Login != "" {
				reviewers = append(reviewers, review.Author.Login)
			}
		}
		prs = append(prs, buildPullRequest(
			n.Number, n.Title, n.State, n.CreatedAt, n.UpdatedAt, n.MergedAt,
			n.Additions, n.Deletions, n.Author.Login, n.MergedBy.Login, reviewers,
		))
	}
	return prs, q.Search.PageInfo.HasNextPage, q.Search.PageInfo.EndCursor, nil
}

func buildPullRequest(number int, title string, state githubv4.PullRequestState, createdAt, updatedAt, mergedAt githubv4.DateTime, additions, deletions int, author, mergedBy string, reviewers []string) domain.PullRequest {
	pr := domain.PullRequest{
		Number:    number,
		Title:     title,
		Author:    author,
		State:     strings.ToLower(string(state)),
		CreatedAt: createdAt.Time,
		UpdatedAt: updatedAt.Time,
		Additions: additions,
		Deletions: deletions,
		Reviewers: reviewers,
	}
	if !mergedAt.IsZero() {
		t := mergedAt.Time
		pr.MergedAt = &t
		pr.MergedBy = mergedBy
	}
	return pr
}

// Commits streams the repository's commits within [since, until] into
// visit. Line stats cost one extra call per commit; after maxStatsErrors
// consecutive failures the remaining commits carry zero stats rather
// than aborting the fetch.
func (g *GitHubGateway) Commits(ctx context.Context, owner, name string, since, until time.Time, visit func(domain.Commit) error) error {
	if err := g.waitForRateLimit(ctx); err != nil {
		return err
	}

	opts := &github.CommitsListOptions{
		Since:       since,
		Until:       until,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	seen := 0
	statsErrors := 0
	degraded := false

	for {
		commits, resp, err := g.restClient.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			return classifyError(err, fmt.Sprintf("list commits for %s/%s", owner, name))
		}

		for _, rc := range commits {
			seen++
			if seen > maxCommitsPerFetch {
				g.logger.Printf("  reached commit limit (%d) for %s/%s, stopping collection", maxCommitsPerFetch, owner, name)
				return nil
			}

			c := domain.Commit{
				SHA:        rc.GetSHA(),
				AuthoredAt: rc.GetCommit().GetAuthor().GetDate().Time,
			}
			if rc.GetAuthor() != nil {
				c.AuthorLogin = rc.GetAuthor().GetLogin()
			}

			if statsErrors < maxStatsErrors {
				if err := g.waitForRateLimit(ctx); err != nil {
					return err
				}
				full, _, err := g.restClient.Repositories.GetCommit(ctx, owner, name, c.SHA, nil)
				if err != nil {
					statsErrors++
					g.logger.Printf("  failed to fetch stats for commit %s: %v", c.SHA, err)
				} else {
					statsErrors = 0
					c.Additions = full.GetStats().GetAdditions()
					c.Deletions = full.GetStats().GetDeletions()
				}
			} else if !degraded {
				degraded = true
				g.logger.Printf("  too many commit stat failures for %s/%s, remaining commits degrade to zero stats", owner, name)
			}

			if err := visit(c); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		}

		if resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
		g.logger.Printf("  fetching next page of commits for %s/%s...", owner, name)
	}
}

// waitForRateLimit blocks until the core budget is above the low-water
// mark. A failed status check is treated as healthy; the transport-level
// waiter still guards against hard limit responses.
func (g *GitHubGateway) waitForRateLimit(ctx context.Context) error {
	limits, _, err := g.restClient.RateLimit.Get(ctx)
	if err != nil {
		g.logger.Printf("  failed to check rate limit, proceeding: %v", err)
		return nil
	}
	core := limits.GetCore()
	if core.Remaining >= rateLimitLowWater {
		return nil
	}

	wait := time.Until(core.Reset.Time) + rateLimitMargin
	if wait <= 0 {
		return nil
	}
	g.logger.Printf("  rate limit low (%d remaining), waiting %s...", core.Remaining, wait.Round(time.Second))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classifyError(err error, action string) error {
	var ge *github.ErrorResponse
	if errors.As(err, &ge) && ge.Response != nil {
		switch ge.Response.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %v", ErrUnauthorized, action, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s: %v", ErrForbidden, action, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s: %v", ErrNotFound, action, err)
		}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
