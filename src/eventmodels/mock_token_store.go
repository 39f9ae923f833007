package eventmodels

import "sync"

type MockTokenStore struct {
	mu     sync.Mutex
	state  *TokenState
	clears int
}

func (s *MockTokenStore) Get() (*TokenState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return nil, nil
	}

	copy := *s.state
	return &copy, nil
}

func (s *MockTokenStore) Set(state *TokenState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *state
	s.state = &copy
	return nil
}

func (s *MockTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = nil
	s.clears += 1
	return nil
}

func (s *MockTokenStore) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

func NewMockTokenStore(state *TokenState) *MockTokenStore {
	return &MockTokenStore{state: state}
}
