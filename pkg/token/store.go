// Package token persists the bearer credential between invocations.
// A single file keyed by the fixed name "authToken" is the only durable
// client state.
package token

import (
	"os"
	"path/filepath"
	"strings"
)

const fileName = "authToken"

type Store struct {
	dir string
}

// NewStore keeps the token under dir. When dir is empty the user config
// directory is used.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "pfacil")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path() string {
	return filepath.Join(s.dir, fileName)
}

// Token implements api.TokenSource. A missing or unreadable file reads
// as no credential.
func (s *Store) Token() string {
	data, err := os.ReadFile(s.path())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Store) Save(token string) error {
	return os.WriteFile(s.path(), []byte(token), 0600)
}

func (s *Store) Clear() error {
	err := os.Remove(s.path())
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
