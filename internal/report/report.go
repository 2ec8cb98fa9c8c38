// Package report aggregates a collected corpus across repositories and
// renders the contribution leaderboard.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/contrib-stats/internal/domain"
)

//go:embed template.html
var templateFS embed.FS

// Scoring weights for the leaderboard. Line churn contributes one point
// per hundred changed lines so that large mechanical diffs cannot drown
// out review and merge activity.
const (
	commitWeight   = 1
	createdWeight  = 5
	mergedWeight   = 10
	reviewedWeight = 3
	churnDivisor   = 100
)

// ContributorRow is one leaderboard entry, aggregated across every
// repository the contributor appears in.
type ContributorRow struct {
	Name         string
	Score        float64
	Repositories []string
	Stats        domain.ContributionStats
	Devin        domain.DevinBreakdown
}

// MonthlyRow is one month of activity summed across repositories.
type MonthlyRow struct {
	Month        string
	Commits      int
	PRsCreated   int
	PRsMerged    int
	Additions    int
	Deletions    int
	Contributors int
}

// Summary is the fully aggregated report model.
type Summary struct {
	GeneratedAt time.Time
	CollectedAt time.Time
	StartDate   time.Time
	RepoCount   int

	TotalPRs       int
	TotalMergedPRs int
	TotalCommits   int
	TotalAdditions int
	TotalDeletions int

	// Line churn distribution across months, for the headline.
	MeanMonthlyChurn   float64
	MedianMonthlyChurn float64
	P90MonthlyChurn    float64

	// Median time from a PR's creation to its merge.
	MedianMergeLeadTime time.Duration

	Contributors []ContributorRow
	Monthly      []MonthlyRow
}

// Score collapses one contributor's stats into a single ranking value.
func Score(cs domain.ContributionStats) float64 {
	return float64(cs.Commits*commitWeight+
		cs.PRsCreated*createdWeight+
		cs.PRsMerged*mergedWeight+
		cs.PRsReviewed*reviewedWeight) +
		float64(cs.Additions+cs.Deletions)/churnDivisor
}

// Aggregate folds every repository of the corpus into one summary.
// Ties in score break on name so the leaderboard order is stable.
func Aggregate(c *domain.Corpus, now time.Time) *Summary {
	s := &Summary{
		GeneratedAt: now,
		CollectedAt: c.CollectedAt,
		StartDate:   c.StartDate,
		RepoCount:   len(c.Repositories),
	}

	contributions := map[string]*domain.ContributionStats{}
	contributorRepos := map[string][]string{}
	devin := map[string]*domain.DevinBreakdown{}
	monthly := map[string]*MonthlyRow{}
	var leadTimes []float64

	monthRow := func(month string) *MonthlyRow {
		row, ok := monthly[month]
		if !ok {
			row = &MonthlyRow{Month: month}
			monthly[month] = row
		}
		return row
	}

	for _, repo := range c.Repositories {
		s.TotalPRs += len(repo.PRs)
		for _, pr := range repo.PRs {
			if pr.Merged() {
				s.TotalMergedPRs++
				if lead := pr.MergedAt.Sub(pr.CreatedAt); lead > 0 {
					leadTimes = append(leadTimes, lead.Seconds())
				}
			}
		}

		for name, cs := range repo.Contributions {
			total, ok := contributions[name]
			if !ok {
				total = &domain.ContributionStats{}
				contributions[name] = total
			}
			total.Add(cs)
			contributorRepos[name] = append(contributorRepos[name], repo.Repository)
		}

		for name, db := range repo.DevinBreakdown {
			total, ok := devin[name]
			if !ok {
				total = &domain.DevinBreakdown{}
				devin[name] = total
			}
			total.Add(db)
		}

		for month, ms := range repo.MonthlyStats {
			row := monthRow(month)
			row.Commits += ms.Commits
			row.PRsCreated += ms.PRsCreated
			row.PRsMerged += ms.PRsMerged
			row.Additions += ms.Additions
			row.Deletions += ms.Deletions
			// Per-repository contributor counts cannot be unioned once
			// collapsed, so the cross-repository count is a lower bound.
			if ms.Contributors > row.Contributors {
				row.Contributors = ms.Contributors
			}
		}

		// Months that saw commits but no PRs still get a row.
		for month := range repo.CodeFrequency {
			monthRow(month)
		}
	}

	for name, cs := range contributions {
		s.TotalCommits += cs.Commits
		s.TotalAdditions += cs.Additions
		s.TotalDeletions += cs.Deletions

		repos := contributorRepos[name]
		sort.Strings(repos)
		row := ContributorRow{
			Name:         name,
			Score:        Score(*cs),
			Repositories: repos,
			Stats:        *cs,
		}
		if db, ok := devin[name]; ok {
			row.Devin = *db
		}
		s.Contributors = append(s.Contributors, row)
	}
	sort.Slice(s.Contributors, func(i, j int) bool {
		a, b := s.Contributors[i], s.Contributors[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Name < b.Name
	})

	for _, row := range monthly {
		s.Monthly = append(s.Monthly, *row)
	}
	sort.Slice(s.Monthly, func(i, j int) bool { return s.Monthly[i].Month < s.Monthly[j].Month })

	churn := make([]float64, 0, len(s.Monthly))
	for _, row := range s.Monthly {
		churn = append(churn, float64(row.Additions+row.Deletions))
	}
	// Both helpers reject empty input; a corpus with no activity simply
	// reports zero.
	if mean, err := stats.Mean(churn); err == nil {
		s.MeanMonthlyChurn = mean
	}
	if median, err := stats.Median(churn); err == nil {
		s.MedianMonthlyChurn = median
	}
	if p90, err := stats.Percentile(churn, 90); err == nil {
		s.P90MonthlyChurn = p90
	}
	if median, err := stats.Median(leadTimes); err == nil {
		s.MedianMergeLeadTime = time.Duration(median * float64(time.Second))
	}

	return s
}

// WriteHTML renders the summary as a standalone HTML page.
func WriteHTML(w io.Writer, s *Summary) error {
	tmpl, err := template.New("template.html").Funcs(template.FuncMap{
		"score": func(v float64) string { return fmt.Sprintf("%.1f", v) },
		"churn": func(v float64) string { return fmt.Sprintf("%.0f", v) },
		"date":  func(t time.Time) string { return t.UTC().Format("2006-01-02") },
		"add1":  func(i int) int { return i + 1 },
		"lead": func(d time.Duration) string {
			if d == 0 {
				return "n/a"
			}
			return d.Round(time.Hour).String()
		},
	}).ParseFS(templateFS, "template.html")
	if err != nil {
		return fmt.Errorf("failed to parse report template: %w", err)
	}
	if err := tmpl.Execute(w, s); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}
