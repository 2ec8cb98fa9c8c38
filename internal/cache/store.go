// Package cache persists aggregated repository data between runs: one
// whole-repository snapshot per repository, plus one chunk per settled
// (repository, month) pair for the commit-derived statistics.
//
// Caching is purely an optimization. Every operation that touches the
// filesystem logs its own failure and degrades to a cache miss; it never
// propagates an error into data collection.
package cache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/naka-gawa/contrib-stats/internal/domain"
)

// SchemaVersion is the current cache schema. Any stored unit carrying a
// different version is treated as absent and rebuilt from the API.
const SchemaVersion = 2

// MonthlyChunk is the commit-side cache unit for exactly one calendar
// month of one repository. StartDate and EndDate record the window that
// was actually fetched; a chunk is only reused when that window fully
// covers the requested range.
type MonthlyChunk struct {
	SchemaVersion int                                  `json:"schema_version"`
	CachedAt      time.Time                            `json:"cached_at"`
	Repository    string                               `json:"repository"`
	Month         string                               `json:"month"`
	StartDate     time.Time                            `json:"start_date"`
	EndDate       time.Time                            `json:"end_date"`
	Commits       int                                  `json:"commits"`
	CodeFrequency domain.CodeFrequency                 `json:"code_frequency"`
	Contributions map[string]*domain.ContributionStats `json:"contributions"`
	Contributors  domain.StringSet                     `json:"contributors"`
}

// Covers reports whether the chunk's fetched window fully contains the
// requested range.
func (c *MonthlyChunk) Covers(start, end time.Time) bool {
	return !c.StartDate.After(start) && !c.EndDate.Before(end)
}

// Store reads and writes cache units under a single directory. Each
// concurrent collection task owns a distinct repository or (repository,
// month), so the store needs no locking of its own.
type Store struct {
	dir     string
	version int
	logger  *log.Logger
}

// NewStore creates a Store rooted at dir, gating validity on version.
func NewStore(dir string, version int, logger *log.Logger) *Store {
	return &Store{dir: dir, version: version, logger: logger}
}

// Load returns the stored snapshot for repository. The second return is
// false when the file is missing, unreadable, or carries a different
// schema version; a version mismatch invalidates the whole unit rather
// than risking an old shape being read as a new one.
func (s *Store) Load(repository string) (*domain.RepoSnapshot, bool) {
	path := s.snapshotPath(repository)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("cache: failed to read %s: %v", path, err)
		}
		return nil, false
	}

	var snap domain.RepoSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Printf("cache: failed to decode %s: %v", path, err)
		return nil, false
	}
	if snap.SchemaVersion != s.version {
		s.logger.Printf("cache: %s has schema version %d, want %d, ignoring", path, snap.SchemaVersion, s.version)
		return nil, false
	}
	snap.Init()
	return &snap, true
}

// Save persists the snapshot for repository, stamping the current schema
// version and time. The write goes through a temp file and rename, so a
// reader never observes a partially written snapshot.
func (s *Store) Save(repository string, snap *domain.RepoSnapshot) {
	snap.SchemaVersion = s.version
	snap.CachedAt = time.Now().UTC()
	if err := s.writeJSON(s.snapshotPath(repository), snap); err != nil {
		s.logger.Printf("cache: failed to save snapshot for %s: %v", repository, err)
	}
}

// LoadChunk returns the stored chunk for (repository, monthKey), or false
// when missing, unreadable, or version-mismatched.
func (s *Store) LoadChunk(repository, monthKey string) (*MonthlyChunk, bool) {
	path := s.chunkPath(repository, monthKey)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("cache: failed to read %s: %v", path, err)
		}
		return nil, false
	}

	var chunk MonthlyChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		s.logger.Printf("cache: failed to decode %s: %v", path, err)
		return nil, false
	}
	if chunk.SchemaVersion != s.version {
		s.logger.Printf("cache: %s has schema version %d, want %d, ignoring", path, chunk.SchemaVersion, s.version)
		return nil, false
	}
	if chunk.Contributions == nil {
		chunk.Contributions = make(map[string]*domain.ContributionStats)
	}
	if chunk.Contributors == nil {
		chunk.Contributors = make(domain.StringSet)
	}
	return &chunk, true
}

// SaveChunk persists the chunk, stamping version and time. A month with
// no observed commits is never written: an empty month may just mean the
// fetch was cut short, and a future run should retry it instead of
// trusting a permanent "zero activity" record.
func (s *Store) SaveChunk(repository string, chunk *MonthlyChunk) {
	if chunk.Commits == 0 {
		return
	}
	chunk.SchemaVersion = s.version
	chunk.CachedAt = time.Now().UTC()
	chunk.Repository = repository
	if err := s.writeJSON(s.chunkPath(repository, chunk.Month), chunk); err != nil {
		s.logger.Printf("cache: failed to save chunk %s %s: %v", repository, chunk.Month, err)
	}
}

func (s *Store) snapshotPath(repository string) string {
	return filepath.Join(s.dir, safeName(repository)+".json")
}

func (s *Store) chunkPath(repository, monthKey string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", safeName(repository), monthKey))
}

func (s *Store) writeJSON(path string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func safeName(repository string) string {
	r := strings.NewReplacer("/", "_", "\\", "_")
	return r.Replace(repository)
}
