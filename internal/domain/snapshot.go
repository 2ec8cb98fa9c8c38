package domain

import "time"

// RepoSnapshot holds everything aggregated for one repository. It doubles
// as the whole-repository cache unit; SchemaVersion and CachedAt are
// stamped by the cache store on save. Each snapshot is owned by exactly
// one collection task at a time.
type RepoSnapshot struct {
	SchemaVersion        int                                       `json:"schema_version"`
	CachedAt             time.Time                                 `json:"cached_at"`
	Repository           string                                    `json:"repository"`
	StartDate            time.Time                                 `json:"start_date"`
	PRs                  []PullRequest                             `json:"prs"`
	Contributions        map[string]*ContributionStats             `json:"contributions"`
	MonthlyStats         map[string]*MonthlyStats                  `json:"monthly_stats"`
	MonthlyContributions map[string]map[string]*ContributionStats  `json:"monthly_contributions"`
	CodeFrequency        map[string]*CodeFrequency                 `json:"code_frequency"`
	DevinBreakdown       map[string]*DevinBreakdown                `json:"devin_breakdown"`
}

// NewRepoSnapshot returns an empty snapshot with all maps initialized.
func NewRepoSnapshot(repository string) *RepoSnapshot {
	return &RepoSnapshot{
		Repository:           repository,
		PRs:                  []PullRequest{},
		Contributions:        make(map[string]*ContributionStats),
		MonthlyStats:         make(map[string]*MonthlyStats),
		MonthlyContributions: make(map[string]map[string]*ContributionStats),
		CodeFrequency:        make(map[string]*CodeFrequency),
		DevinBreakdown:       make(map[string]*DevinBreakdown),
	}
}

// Init backfills nil maps, so snapshots decoded from older or partial
// cache files can be folded into without nil map writes.
func (s *RepoSnapshot) Init() {
	if s.PRs == nil {
		s.PRs = []PullRequest{}
	}
	if s.Contributions == nil {
		s.Contributions = make(map[string]*ContributionStats)
	}
	if s.MonthlyStats == nil {
		s.MonthlyStats = make(map[string]*MonthlyStats)
	}
	if s.MonthlyContributions == nil {
		s.MonthlyContributions = make(map[string]map[string]*ContributionStats)
	}
	if s.CodeFrequency == nil {
		s.CodeFrequency = make(map[string]*CodeFrequency)
	}
	if s.DevinBreakdown == nil {
		s.DevinBreakdown = make(map[string]*DevinBreakdown)
	}
}

// Contribution returns the all-time stats for login, inserting a zero
// value on first use. Accumulator keys are discovered dynamically, so
// lookups must never fail.
func (s *RepoSnapshot) Contribution(login string) *ContributionStats {
	cs, ok := s.Contributions[login]
	if !ok {
		cs = &ContributionStats{}
		s.Contributions[login] = cs
	}
	return cs
}

// Monthly returns the stats for monthKey, inserting a zero value on
// first use.
func (s *RepoSnapshot) Monthly(monthKey string) *MonthlyStats {
	ms, ok := s.MonthlyStats[monthKey]
	if !ok {
		ms = &MonthlyStats{Contributors: make(StringSet)}
		s.MonthlyStats[monthKey] = ms
	}
	if ms.Contributors == nil {
		ms.Contributors = make(StringSet)
	}
	return ms
}

// MonthlyContribution returns the stats for login within monthKey,
// inserting zero values on first use.
func (s *RepoSnapshot) MonthlyContribution(monthKey, login string) *ContributionStats {
	month, ok := s.MonthlyContributions[monthKey]
	if !ok {
		month = make(map[string]*ContributionStats)
		s.MonthlyContributions[monthKey] = month
	}
	cs, ok := month[login]
	if !ok {
		cs = &ContributionStats{}
		month[login] = cs
	}
	return cs
}

// Frequency returns the code frequency for monthKey, inserting a zero
// value on first use.
func (s *RepoSnapshot) Frequency(monthKey string) *CodeFrequency {
	cf, ok := s.CodeFrequency[monthKey]
	if !ok {
		cf = &CodeFrequency{}
		s.CodeFrequency[monthKey] = cf
	}
	return cf
}

// Devin returns the automated-agent breakdown for login, inserting a zero
// value on first use.
func (s *RepoSnapshot) Devin(login string) *DevinBreakdown {
	db, ok := s.DevinBreakdown[login]
	if !ok {
		db = &DevinBreakdown{}
		s.DevinBreakdown[login] = db
	}
	return db
}

// OldestPRCreatedAt returns the creation time of the oldest retained PR.
// The second return is false when the snapshot holds no PRs.
func (s *RepoSnapshot) OldestPRCreatedAt() (time.Time, bool) {
	if len(s.PRs) == 0 {
		return time.Time{}, false
	}
	oldest := s.PRs[0].CreatedAt
	for _, pr := range s.PRs[1:] {
		if pr.CreatedAt.Before(oldest) {
			oldest = pr.CreatedAt
		}
	}
	return oldest, true
}
