// Package domain contains the core data structures of the application:
// the records fetched from GitHub, the per-contributor and per-month
// accumulators derived from them, and the cacheable repository snapshot.
package domain

import (
	"fmt"
	"time"
)

// UnknownLogin is the sentinel author for pull requests whose account has
// been deleted. Such PRs are attributed to it rather than dropped, so
// per-month PR counts stay consistent with the total PR count.
const UnknownLogin = "unknown"

// RepoRef identifies one configured repository.
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// FullName returns the "owner/name" form used as the repository key.
func (r RepoRef) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// PullRequest is one pull request record as fetched from GitHub.
// UpdatedAt is only used to truncate pagination and is not persisted.
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Author    string     `json:"author"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	MergedAt  *time.Time `json:"merged_at"`
	MergedBy  string     `json:"merged_by,omitempty"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	Reviewers []string   `json:"reviewers"`

	UpdatedAt time.Time `json:"-"`
}

// Merged reports whether the pull request has been merged.
func (p *PullRequest) Merged() bool {
	return p.MergedAt != nil && !p.MergedAt.IsZero()
}

// Commit is one commit record. AuthorLogin may be empty when the commit
// cannot be tied to a GitHub account; such commits are not attributed.
type Commit struct {
	SHA         string    `json:"sha"`
	AuthorLogin string    `json:"author_login"`
	AuthoredAt  time.Time `json:"authored_at"`
	Additions   int       `json:"additions"`
	Deletions   int       `json:"deletions"`
}
