package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// tokenFileName is the fixed name the credential is stored under.
const tokenFileName = "access_token"

// TokenStore persists a bearer credential between processes.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Session holds the bearer credential for one logged-in user. It is created
// on successful login, destroyed on logout, and only ever read by in-flight
// calls: a credential cleared mid-flight affects the next call, not the
// current one.
type Session struct {
	mu    sync.RWMutex
	token string
	store TokenStore
}

// NewSession returns an empty in-memory session.
func NewSession() *Session {
	return &Session{}
}

// NewStoredSession returns a session backed by store, pre-loaded with any
// previously persisted credential. A missing credential is not an error.
func NewStoredSession(store TokenStore) (*Session, error) {
	s := &Session{store: store}
	tok, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	s.token = tok
	return s, nil
}

// Token returns a snapshot of the current credential, empty when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a credential is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// SetToken installs a new credential, persisting it when the session is
// store-backed.
func (s *Session) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if s.store != nil {
		if err := s.store.Save(token); err != nil {
			return fmt.Errorf("persist credential: %w", err)
		}
	}
	return nil
}

// Clear removes the credential (logout).
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	if s.store != nil {
		if err := s.store.Clear(); err != nil {
			return fmt.Errorf("clear credential: %w", err)
		}
	}
	return nil
}

// FileTokenStore keeps the credential in a file named "access_token" inside
// dir, created with 0700/0600 permissions.
type FileTokenStore struct {
	dir string
}

// NewFileTokenStore returns a store rooted at dir.
func NewFileTokenStore(dir string) *FileTokenStore {
	return &FileTokenStore{dir: dir}
}

func (f *FileTokenStore) path() string {
	return filepath.Join(f.dir, tokenFileName)
}

// Load reads the stored credential. A missing file yields an empty token.
func (f *FileTokenStore) Load() (string, error) {
	data, err := os.ReadFile(f.path())
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the credential, creating dir if needed.
func (f *FileTokenStore) Save(token string) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.path(), []byte(token), 0o600)
}

// Clear removes the credential file. A missing file is not an error.
func (f *FileTokenStore) Clear() error {
	err := os.Remove(f.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
