// Package state persists workspace-local research tracking: started
// interaction IDs, file search store aliases, and the duration history that
// feeds adaptive polling. Everything lives in one JSON document that is
// rewritten wholesale on every mutation.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultPath is the state file created in the working directory.
const DefaultPath = ".gemini-research.json"

// HistoryCap bounds researchHistory; the oldest entries are dropped first.
const HistoryCap = 50

const storeResourcePrefix = "fileSearchStores/"

// HistoryEntry records one completed research run.
type HistoryEntry struct {
	ID              string `json:"id"`
	DurationSeconds int64  `json:"duration_seconds"`
	Grounded        bool   `json:"grounded"`
	Timestamp       string `json:"timestamp"`
}

// State is the on-disk document. Fields marshal to the exact names older
// versions of the tool wrote, so workspaces carry over.
type State struct {
	ResearchIDs      []string          `json:"researchIds"`
	FileSearchStores map[string]string `json:"fileSearchStores"`
	ResearchHistory  []HistoryEntry    `json:"researchHistory"`
}

func emptyState() *State {
	return &State{
		ResearchIDs:      []string{},
		FileSearchStores: map[string]string{},
		ResearchHistory:  []HistoryEntry{},
	}
}

// Store reads and rewrites the workspace state file. A missing or corrupt
// file never fails the caller; it behaves as an empty state.
type Store struct {
	path string
	log  *zap.Logger
	now  func() time.Time
}

// NewStore returns a store backed by path, or DefaultPath when path is empty.
func NewStore(path string, log *zap.Logger) *Store {
	if path == "" {
		path = DefaultPath
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log, now: time.Now}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the current state. Unreadable or undecodable files load as
// empty; the diagnostic is logged, not returned.
func (s *Store) Load() *State {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("state file unreadable, treating as empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return emptyState()
	}

	st := emptyState()
	if err := json.Unmarshal(data, st); err != nil {
		s.log.Warn("state file corrupt, treating as empty",
			zap.String("path", s.path), zap.Error(err))
		return emptyState()
	}
	if st.ResearchIDs == nil {
		st.ResearchIDs = []string{}
	}
	if st.FileSearchStores == nil {
		st.FileSearchStores = map[string]string{}
	}
	if st.ResearchHistory == nil {
		st.ResearchHistory = []HistoryEntry{}
	}
	return st
}

// Save rewrites the whole state file. Last writer wins; there is no locking.
func (s *Store) Save(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// AddResearchID tracks a started interaction. Already-known IDs are a no-op
// and do not touch the file.
func (s *Store) AddResearchID(id string) error {
	st := s.Load()
	for _, existing := range st.ResearchIDs {
		if existing == id {
			return nil
		}
	}
	st.ResearchIDs = append(st.ResearchIDs, id)
	return s.Save(st)
}

// RecordCompletion appends a duration record for a finished run and trims
// history to HistoryCap entries.
func (s *Store) RecordCompletion(id string, durationSeconds int64, grounded bool) error {
	st := s.Load()
	st.ResearchHistory = append(st.ResearchHistory, HistoryEntry{
		ID:              id,
		DurationSeconds: durationSeconds,
		Grounded:        grounded,
		Timestamp:       s.now().UTC().Format(time.RFC3339),
	})
	if n := len(st.ResearchHistory); n > HistoryCap {
		st.ResearchHistory = st.ResearchHistory[n-HistoryCap:]
	}
	return s.Save(st)
}

// SetStoreAlias maps a display alias to a full store resource name.
func (s *Store) SetStoreAlias(alias, resourceName string) error {
	st := s.Load()
	st.FileSearchStores[alias] = resourceName
	return s.Save(st)
}

// ResolveStore turns an alias into its resource name. Full resource names
// and unknown aliases pass through unchanged.
func (s *Store) ResolveStore(nameOrAlias string) string {
	if strings.HasPrefix(nameOrAlias, storeResourcePrefix) {
		return nameOrAlias
	}
	st := s.Load()
	if resource, ok := st.FileSearchStores[nameOrAlias]; ok {
		return resource
	}
	return nameOrAlias
}

// History returns the recorded completion entries, oldest first.
func (s *Store) History() []HistoryEntry {
	return s.Load().ResearchHistory
}

// ResearchIDs returns every interaction ID started from this workspace.
func (s *Store) ResearchIDs() []string {
	return s.Load().ResearchIDs
}

// StoreAliases returns the alias to resource-name map.
func (s *Store) StoreAliases() map[string]string {
	return s.Load().FileSearchStores
}
