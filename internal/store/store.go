package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// State is the serialized authentication material captured from a logged-in
// browser context. Its existence does not imply validity; the controller
// always probes before trusting it.
type State struct {
	Cookies      []Cookie          `json:"cookies"`
	LocalStorage map[string]string `json:"localStorage,omitempty"`
	SavedAt      time.Time         `json:"savedAt"`
}

// Cookie is a minimal cookie snapshot, enough to rehydrate a fresh browser
// context or seed an HTTP cookie header.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Handle points at a live browser process left over from a previous
// invocation. Reconnection is opportunistic: any failure means the handle is
// discarded, never retried.
type Handle struct {
	DevtoolsURL string    `json:"devtoolsUrl"`
	PID         int       `json:"pid,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

const (
	stateFile  = "session.json"
	handleFile = "browser.json"
)

// Store persists session artifacts under a single volatile directory. It is
// an explicitly owned, injectable object so tests can point it at a temp dir
// and simulate expired, valid, or corrupt sessions.
type Store struct {
	dir    string
	logger *zap.Logger
}

// DefaultDir returns a memory-backed location when one is available.
// Authentication material must never land on permanent disk storage.
func DefaultDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", "zapctl")
	}
	return filepath.Join(os.TempDir(), "zapctl")
}

// New creates a Store rooted at dir, creating it if necessary.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger.Named("store")}, nil
}

// Dir returns the directory session artifacts live in.
func (s *Store) Dir() string {
	return s.dir
}

// SaveState atomically persists the authentication snapshot.
func (s *Store) SaveState(state *State) error {
	state.SavedAt = time.Now().UTC()
	return s.writeJSON(stateFile, state)
}

// LoadState returns the persisted snapshot, or (nil, nil) when there is none.
// Corrupt state is "no session", never a fatal condition: the file is removed
// and the caller proceeds as if nothing was saved.
func (s *Store) LoadState() (*State, error) {
	var state State
	ok, err := s.readJSON(stateFile, &state)
	if err != nil || !ok {
		return nil, err
	}
	return &state, nil
}

// SaveHandle atomically persists the live-process handle.
func (s *Store) SaveHandle(handle *Handle) error {
	return s.writeJSON(handleFile, handle)
}

// LoadHandle returns the persisted handle, or (nil, nil) when there is none.
func (s *Store) LoadHandle() (*Handle, error) {
	var handle Handle
	ok, err := s.readJSON(handleFile, &handle)
	if err != nil || !ok {
		return nil, err
	}
	if handle.DevtoolsURL == "" {
		return nil, nil
	}
	return &handle, nil
}

// ClearHandle removes only the live-process handle, keeping any saved
// authentication state for the next launch.
func (s *Store) ClearHandle() error {
	if err := os.Remove(filepath.Join(s.dir, handleFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", handleFile, err)
	}
	return nil
}

// Clear removes all session artifacts. Clearing an already-clear store is a
// no-op success.
func (s *Store) Clear() error {
	for _, name := range []string{stateFile, handleFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	s.logger.Debug("Session artifacts cleared.")
	return nil
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to persist %s: %w", name, err)
	}
	return nil
}

// readJSON reports whether a usable artifact was read. Unparsable content is
// discarded on the spot.
func (s *Store) readJSON(name string, v any) (bool, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("Discarding unparsable session artifact.", zap.String("file", name), zap.Error(err))
		os.Remove(path)
		return false, nil
	}
	return true, nil
}
