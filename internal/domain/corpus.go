package domain

import "time"

// Corpus is the document handed to the report exporter: one entry per
// successfully collected repository. This is the only boundary where
// contributor sets appear as plain counts.
type Corpus struct {
	CollectedAt  time.Time     `json:"collected_at"`
	StartDate    time.Time     `json:"start_date"`
	Repositories []*RepoExport `json:"repositories"`
}

// RepoExport is the export form of a RepoSnapshot.
type RepoExport struct {
	Repository           string                                   `json:"repository"`
	PRs                  []PullRequest                            `json:"prs"`
	Contributions        map[string]*ContributionStats            `json:"contributions"`
	MonthlyStats         map[string]*MonthlyStatsExport           `json:"monthly_stats"`
	MonthlyContributions map[string]map[string]*ContributionStats `json:"monthly_contributions"`
	CodeFrequency        map[string]*CodeFrequency                `json:"code_frequency"`
	DevinBreakdown       map[string]*DevinBreakdown               `json:"devin_breakdown"`
}

// MonthlyStatsExport is MonthlyStats with the contributor set collapsed
// to its cardinality.
type MonthlyStatsExport struct {
	Commits      int `json:"commits"`
	PRsCreated   int `json:"prs_created"`
	PRsMerged    int `json:"prs_merged"`
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	Contributors int `json:"contributors"`
}

// Export converts the snapshot into its serializable export form.
func (s *RepoSnapshot) Export() *RepoExport {
	out := &RepoExport{
		Repository:           s.Repository,
		PRs:                  s.PRs,
		Contributions:        s.Contributions,
		MonthlyStats:         make(map[string]*MonthlyStatsExport, len(s.MonthlyStats)),
		MonthlyContributions: s.MonthlyContributions,
		CodeFrequency:        s.CodeFrequency,
		DevinBreakdown:       s.DevinBreakdown,
	}
	for month, ms := range s.MonthlyStats {
		out.MonthlyStats[month] = &MonthlyStatsExport{
			Commits:      ms.Commits,
			PRsCreated:   ms.PRsCreated,
			PRsMerged:    ms.PRsMerged,
			Additions:    ms.Additions,
			Deletions:    ms.Deletions,
			Contributors: len(ms.Contributors),
		}
	}
	return out
}
