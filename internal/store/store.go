// Package store owns the durable journal state: the ordered entry history
// and the single pattern profile. The in-memory cache is loaded once and
// mutated only through Append, SetProfile and Clear; Persist is the explicit
// side-effecting write.
package store

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/halcyonlabs/reverie/pkg/models"
)

// StateVersion is the current persisted state schema version.
const StateVersion = 1

// State is the durable shape of the journal: the two named records plus a
// version field. Entries are ordered oldest first; the newest entry is last.
type State struct {
	Version int                    `json:"version"`
	Entries []models.JournalEntry  `json:"entries"`
	Profile *models.PatternProfile `json:"pattern_profile,omitempty"`
}

// Backend is the durable medium behind the store. Read returns an empty
// State when nothing has been persisted yet; it returns an error only for
// unreadable or corrupt state.
type Backend interface {
	Read() (State, error)
	Write(State) error
	Reset() error
	Close() error
}

// Store holds the exclusively-owned working copy of the journal state.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	entries []models.JournalEntry
	profile *models.PatternProfile
}

// Open loads persisted state through the backend. Corrupt or
// unknown-version state degrades to an empty history and absent profile;
// it never fails the caller.
func Open(backend Backend) *Store {
	s := &Store{backend: backend}

	state, err := backend.Read()
	if err != nil {
		log.Warn().Err(err).Msg("Unreadable journal state, starting fresh")
		return s
	}
	if state.Version != 0 && state.Version != StateVersion {
		log.Warn().Int("version", state.Version).Msg("Unknown journal state version, starting fresh")
		return s
	}

	s.entries = state.Entries
	s.profile = state.Profile
	return s
}

// Append adds an entry at the end of the history. Insertion order is
// significant: the last entry is the most recent.
func (s *Store) Append(entry models.JournalEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

// SetProfile replaces the current profile wholesale.
func (s *Store) SetProfile(profile models.PatternProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := profile
	s.profile = &p
}

// Persist writes both records durably. Persistence is best-effort: callers
// log failures and carry on, they never surface them to the user.
func (s *Store) Persist() error {
	s.mu.RLock()
	state := State{
		Version: StateVersion,
		Entries: append([]models.JournalEntry(nil), s.entries...),
		Profile: s.copyProfileLocked(),
	}
	s.mu.RUnlock()

	return s.backend.Write(state)
}

// Clear erases both history and profile, in memory and durably.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.entries = nil
	s.profile = nil
	s.mu.Unlock()

	return s.backend.Reset()
}

// Reload re-reads persisted state into the cache, degrading to empty on
// error. Used when the durable state changes underneath the process.
func (s *Store) Reload() {
	state, err := s.backend.Read()
	if err != nil || (state.Version != 0 && state.Version != StateVersion) {
		state = State{}
		if err != nil {
			log.Warn().Err(err).Msg("Reload found unreadable journal state, starting fresh")
		}
	}

	s.mu.Lock()
	s.entries = state.Entries
	s.profile = state.Profile
	s.mu.Unlock()
}

// History returns a copy of the entry history, oldest first.
func (s *Store) History() []models.JournalEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.JournalEntry(nil), s.entries...)
}

// Profile returns a copy of the current profile, or nil if absent.
func (s *Store) Profile() *models.PatternProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyProfileLocked()
}

// Len returns the number of entries in the history.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) copyProfileLocked() *models.PatternProfile {
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	p.Tendencies = append([]string(nil), s.profile.Tendencies...)
	p.TypicalTriggers = append([]string(nil), s.profile.TypicalTriggers...)
	p.TypicalCopingStyles = append([]string(nil), s.profile.TypicalCopingStyles...)
	return &p
}
