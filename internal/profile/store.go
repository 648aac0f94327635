// Package profile persists connection profiles in a TOML file.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/dbsmedya/gofanout/internal/types"
)

// ErrNotFound is returned when no profile matches a name or ID.
var ErrNotFound = errors.New("connection profile not found")

type document struct {
	Connections []types.ConnectionProfile `toml:"connections"`
}

// Store reads and writes the profile file. It is safe for concurrent use
// within one process.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by path. The file is created on the
// first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns all profiles sorted by name. A missing file yields none.
func (s *Store) Load() ([]types.ConnectionProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]types.ConnectionProfile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []types.ConnectionProfile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var doc document
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown profile keys: %s", strings.Join(keys, ", "))
	}

	profiles := doc.Connections
	if profiles == nil {
		profiles = []types.ConnectionProfile{}
	}
	sort.SliceStable(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// Save replaces the file contents with profiles. Passwords of profiles
// that do not opt in with SavePassword are not written.
func (s *Store) Save(profiles []types.ConnectionProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(profiles)
}

func (s *Store) save(profiles []types.ConnectionProfile) error {
	doc := document{Connections: make([]types.ConnectionProfile, len(profiles))}
	for i, p := range profiles {
		if !p.SavePassword {
			p.Password = ""
		}
		doc.Connections[i] = p
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create profile directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".profiles-*.toml")
	if err != nil {
		return fmt.Errorf("create profiles file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("encode profiles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace profiles file: %w", err)
	}
	return nil
}

// Find returns the profile whose name or ID equals key.
func (s *Store) Find(key string) (types.ConnectionProfile, error) {
	profiles, err := s.Load()
	if err != nil {
		return types.ConnectionProfile{}, err
	}
	for _, p := range profiles {
		if p.Name == key || p.ID == key {
			return p, nil
		}
	}
	return types.ConnectionProfile{}, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Add stores a new profile and returns it with its generated ID.
// Names must be unique.
func (s *Store) Add(p types.ConnectionProfile) (types.ConnectionProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return types.ConnectionProfile{}, fmt.Errorf("profile name is required")
	}
	if p.Host == "" {
		return types.ConnectionProfile{}, fmt.Errorf("profile host is required")
	}
	engine, err := types.ParseEngine(string(p.Engine))
	if err != nil {
		return types.ConnectionProfile{}, err
	}
	p.Engine = engine

	profiles, err := s.load()
	if err != nil {
		return types.ConnectionProfile{}, err
	}
	for _, existing := range profiles {
		if existing.Name == p.Name {
			return types.ConnectionProfile{}, fmt.Errorf("profile %q already exists", p.Name)
		}
	}

	p.ID = uuid.NewString()
	if err := s.save(append(profiles, p)); err != nil {
		return types.ConnectionProfile{}, err
	}
	return p, nil
}

// Remove deletes the profile whose name or ID equals key.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load()
	if err != nil {
		return err
	}
	kept := profiles[:0]
	removed := false
	for _, p := range profiles {
		if p.Name == key || p.ID == key {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return s.save(kept)
}
