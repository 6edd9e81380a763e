// Package credentials stores named CLI profiles: which server to talk to,
// the identity to act as and the bearer token proving it.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Sentinel errors
var (
	// ErrProfileNotFound is returned when a profile doesn't exist.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrNoDefaultProfile is returned when no default is set.
	ErrNoDefaultProfile = errors.New("no default profile set")

	// ErrInvalidProfile is returned when a profile is missing required fields.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Profile is one set of connection settings.
type Profile struct {
	Name      string    `json:"name"`
	ServerURL string    `json:"server_url"`
	Identity  string    `json:"identity,omitempty"`
	Token     string    `json:"token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the profile has a name and a server.
func (p *Profile) Validate() error {
	if p.Name == "" || strings.ContainsAny(p.Name, `/\`) {
		return fmt.Errorf("%w: name %q", ErrInvalidProfile, p.Name)
	}
	if p.ServerURL == "" {
		return fmt.Errorf("%w: server URL is required", ErrInvalidProfile)
	}
	return nil
}

// Config represents the profiles file.
type Config struct {
	Version        int                `json:"version"`
	DefaultProfile string             `json:"default_profile,omitempty"`
	Profiles       map[string]Profile `json:"profiles"`
}

// Store manages profiles on the local filesystem.
type Store struct {
	baseDir string
}

// NewStore creates a new profile store.
// If baseDir is empty, uses ~/.traceledger/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".traceledger")
	}

	// tokens are secrets
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	store := &Store{baseDir: baseDir}
	if err := store.ensureConfig(); err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("profile store initialized")

	return store, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.baseDir }

// Save creates or replaces a profile. The first profile saved becomes the
// default.
func (s *Store) Save(p Profile) (*Profile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if existing, ok := cfg.Profiles[p.Name]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	cfg.Profiles[p.Name] = p
	if len(cfg.Profiles) == 1 {
		cfg.DefaultProfile = p.Name
	}

	if err := s.saveConfig(cfg); err != nil {
		return nil, err
	}

	log.Info().Str("name", p.Name).Str("server", p.ServerURL).Msg("profile saved")

	return &p, nil
}

// Get retrieves a profile by name.
func (s *Store) Get(name string) (*Profile, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	p, ok := cfg.Profiles[name]
	if !ok {
		return nil, ErrProfileNotFound
	}

	return &p, nil
}

// GetDefault retrieves the default profile.
// Returns ErrNoDefaultProfile if none is set.
func (s *Store) GetDefault() (*Profile, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.DefaultProfile == "" {
		return nil, ErrNoDefaultProfile
	}

	return s.Get(cfg.DefaultProfile)
}

// Resolve returns the named profile, or the default when name is empty.
func (s *Store) Resolve(name string) (*Profile, error) {
	if name == "" {
		return s.GetDefault()
	}
	return s.Get(name)
}

// List returns all profiles sorted by name.
func (s *Store) List() ([]Profile, string, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, "", err
	}

	profiles := make([]Profile, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		profiles = append(profiles, p)
	}
	slices.SortFunc(profiles, func(a, b Profile) int { return strings.Compare(a.Name, b.Name) })

	return profiles, cfg.DefaultProfile, nil
}

// Delete removes a profile.
func (s *Store) Delete(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Profiles[name]; !ok {
		return ErrProfileNotFound
	}

	delete(cfg.Profiles, name)

	if cfg.DefaultProfile == name {
		cfg.DefaultProfile = ""
	}

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	log.Info().Str("name", name).Msg("profile deleted")

	return nil
}

// SetDefault sets the default profile.
func (s *Store) SetDefault(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Profiles[name]; !ok {
		return ErrProfileNotFound
	}

	cfg.DefaultProfile = name

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	log.Info().Str("name", name).Msg("default profile set")

	return nil
}

// ensureConfig creates an empty config if it doesn't exist.
func (s *Store) ensureConfig() error {
	configPath := filepath.Join(s.baseDir, "profiles.json")

	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	cfg := &Config{
		Version:  1,
		Profiles: make(map[string]Profile),
	}

	return s.saveConfig(cfg)
}

// loadConfig reads the profiles file.
func (s *Store) loadConfig() (*Config, error) {
	configPath := filepath.Join(s.baseDir, "profiles.json")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}

	return &cfg, nil
}

// saveConfig writes the profiles file atomically.
func (s *Store) saveConfig(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}

	configPath := filepath.Join(s.baseDir, "profiles.json")
	tempPath := configPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	return nil
}
