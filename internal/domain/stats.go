package domain

// ContributionStats accumulates one contributor's activity, either
// all-time for a repository or within one calendar month of it.
type ContributionStats struct {
	Commits     int `json:"commits"`
	Additions   int `json:"additions"`
	Deletions   int `json:"deletions"`
	PRsCreated  int `json:"prs_created"`
	PRsMerged   int `json:"prs_merged"`
	PRsReviewed int `json:"prs_reviewed"`
}

// Add sums other into the stats field by field.
func (c *ContributionStats) Add(other *ContributionStats) {
	c.Commits += other.Commits
	c.Additions += other.Additions
	c.Deletions += other.Deletions
	c.PRsCreated += other.PRsCreated
	c.PRsMerged += other.PRsMerged
	c.PRsReviewed += other.PRsReviewed
}

// MonthlyStats accumulates one repository's activity within one calendar
// month. Contributors remains a set until the export boundary.
type MonthlyStats struct {
	Commits      int       `json:"commits"`
	PRsCreated   int       `json:"prs_created"`
	PRsMerged    int       `json:"prs_merged"`
	Additions    int       `json:"additions"`
	Deletions    int       `json:"deletions"`
	Contributors StringSet `json:"contributors"`
}

// Add sums the numeric fields of other and unions its contributor set.
// Cached and fresh inputs cover disjoint record sets, so summation never
// double counts; the contributor set must union, never sum.
func (m *MonthlyStats) Add(other *MonthlyStats) {
	m.Commits += other.Commits
	m.PRsCreated += other.PRsCreated
	m.PRsMerged += other.PRsMerged
	m.Additions += other.Additions
	m.Deletions += other.Deletions
	m.Contributors.Union(other.Contributors)
}

// CodeFrequency accumulates line churn for one calendar month.
type CodeFrequency struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// Add sums other into the frequency.
func (f *CodeFrequency) Add(other *CodeFrequency) {
	f.Additions += other.Additions
	f.Deletions += other.Deletions
}

// DevinBreakdown tracks the share of a contributor's totals that came from
// merging the automated agent's pull requests. It never exceeds the
// contributor's ContributionStats on the same fields.
type DevinBreakdown struct {
	PRsMerged int `json:"prs_merged"`
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// Add sums other into the breakdown.
func (d *DevinBreakdown) Add(other *DevinBreakdown) {
	d.PRsMerged += other.PRsMerged
	d.Additions += other.Additions
	d.Deletions += other.Deletions
}
