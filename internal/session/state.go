// Package session holds the process-wide mutable state shared by every
// connection worker: the live connection count, the pool of known local
// image files, and the most recent generation prompt and model.
//
// State is the only value shared across connection goroutines. Every method
// takes the same mutex, never performs I/O while holding it, and is safe for
// any number of concurrent callers.
package session

import (
	"math/rand/v2"
	"sync"
)

// State is the concurrency-safe session state of one server process.
//
// The zero value is not usable; create instances with New.
type State struct {
	mu sync.Mutex

	connections int

	filenames []string
	known     map[string]struct{}

	lastPrompt    string
	hasLastPrompt bool
	lastModel     string
	hasLastModel  bool
}

// Snapshot is a point-in-time copy of State for logging and status replies.
type Snapshot struct {
	Connections int
	Filenames   int
	LastPrompt  string
	LastModel   string
}

// New creates an empty session state.
func New() *State {
	return &State{
		known: make(map[string]struct{}),
	}
}

// RegisterConnection records a newly accepted connection and returns the
// running count.
func (s *State) RegisterConnection() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections++
	return s.connections
}

// UnregisterConnection records a closed connection and returns the running
// count. The count never goes below zero.
func (s *State) UnregisterConnection() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connections > 0 {
		s.connections--
	}
	return s.connections
}

// Connections returns the current connection count.
func (s *State) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// RecordFilename adds path to the pool of known files. Recording the same
// path twice has no effect. It reports whether the path was new.
func (s *State) RecordFilename(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordFilenameLocked(path)
}

// RecordFilenames adds every path in one critical section and returns the
// number of new entries.
func (s *State) RecordFilenames(paths []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, p := range paths {
		if s.recordFilenameLocked(p) {
			added++
		}
	}
	return added
}

func (s *State) recordFilenameLocked(path string) bool {
	if _, ok := s.known[path]; ok {
		return false
	}
	s.known[path] = struct{}{}
	s.filenames = append(s.filenames, path)
	return true
}

// PickRandomFilename returns a uniformly chosen known file. ok is false
// when no files are known.
func (s *State) PickRandomFilename() (path string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.filenames) == 0 {
		return "", false
	}
	return s.filenames[rand.IntN(len(s.filenames))], true
}

// FilenameCount returns the number of known files.
func (s *State) FilenameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filenames)
}

// ForgetFilename removes path from the pool. The files command calls it for
// files that could not be opened or decoded. It reports whether the path was
// known.
func (s *State) ForgetFilename(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.known[path]; !ok {
		return false
	}
	delete(s.known, path)
	for i, p := range s.filenames {
		if p == path {
			last := len(s.filenames) - 1
			s.filenames[i] = s.filenames[last]
			s.filenames = s.filenames[:last]
			break
		}
	}
	return true
}

// ReplaceFilenames swaps the whole pool for paths in one step, so pickers
// never observe an empty pool during a rescan. Duplicates are dropped. It
// returns the new pool size.
func (s *State) ReplaceFilenames(paths []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filenames = nil
	s.known = make(map[string]struct{}, len(paths))
	for _, p := range paths {
		s.recordFilenameLocked(p)
	}
	return len(s.filenames)
}

// SetLastPrompt stores the most recent generation prompt.
func (s *State) SetLastPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastPrompt = prompt
	s.hasLastPrompt = true
}

// LastPrompt returns the most recent generation prompt, if any.
func (s *State) LastPrompt() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPrompt, s.hasLastPrompt
}

// SetLastModel stores the name of the model that served the last generation.
func (s *State) SetLastModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastModel = model
	s.hasLastModel = true
}

// LastModel returns the model of the most recent generation, if any.
func (s *State) LastModel() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastModel, s.hasLastModel
}

// Snapshot returns a consistent copy of every field.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Connections: s.connections,
		Filenames:   len(s.filenames),
		LastPrompt:  s.lastPrompt,
		LastModel:   s.lastModel,
	}
}
