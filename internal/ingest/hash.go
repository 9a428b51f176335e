package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Seen remembers the content hash last handed on for each path, so repeated watcher
// events for an unchanged file are dropped.
type Seen struct {
	mu     sync.Mutex
	hashes map[string]string
}

func NewSeen() *Seen {
	return &Seen{hashes: map[string]string{}}
}

// Unchanged hashes path and reports whether it matches the recorded hash. A new or
// changed file is recorded and reported as changed.
func (s *Seen) Unchanged(path string) (bool, error) {
	sum, err := HashFile(path)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashes[path] == sum {
		return true, nil
	}
	s.hashes[path] = sum
	return false, nil
}

// Forget drops the record for path, e.g. after a failed attempt.
func (s *Seen) Forget(path string) {
	s.mu.Lock()
	delete(s.hashes, path)
	s.mu.Unlock()
}
