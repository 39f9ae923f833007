package eventservices

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

type MemoryTokenStore struct {
	mutex sync.Mutex
	state *eventmodels.TokenState
}

func (s *MemoryTokenStore) Get() (*eventmodels.TokenState, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state == nil {
		return nil, nil
	}

	state := *s.state
	return &state, nil
}

func (s *MemoryTokenStore) Set(state *eventmodels.TokenState) error {
	if state == nil {
		return fmt.Errorf("MemoryTokenStore.Set: nil state: %w", eventmodels.ErrInvalidArgument)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	copy := *state
	s.state = &copy
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state = nil
	return nil
}

func NewMemoryTokenStore(state *eventmodels.TokenState) *MemoryTokenStore {
	s := &MemoryTokenStore{}
	if state != nil {
		s.Set(state)
	}

	return s
}

// FileTokenStore keeps the token state in a yaml file so a session survives
// restarts of the host process.
type FileTokenStore struct {
	mutex sync.Mutex
	path  string
}

func (s *FileTokenStore) Get() (*eventmodels.TokenState, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("FileTokenStore.Get: failed to read %s: %w", s.path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var state eventmodels.TokenState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("FileTokenStore.Get: failed to decode %s: %w", s.path, err)
	}

	return &state, nil
}

func (s *FileTokenStore) Set(state *eventmodels.TokenState) error {
	if state == nil {
		return fmt.Errorf("FileTokenStore.Set: nil state: %w", eventmodels.ErrInvalidArgument)
	}

	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("FileTokenStore.Set: failed to encode token state: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("FileTokenStore.Set: failed to create directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("FileTokenStore.Set: failed to write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("FileTokenStore.Set: failed to replace %s: %w", s.path, err)
	}

	return nil
}

func (s *FileTokenStore) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("FileTokenStore.Clear: failed to remove %s: %w", s.path, err)
	}

	return nil
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}
