package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// SeenSet remembers invoice contents by SHA-256 so a file dropped into the
// inbox twice, or rewritten with the same bytes, is processed once.
type SeenSet struct {
	mu     sync.Mutex
	hashes map[string]string // hash -> first path
}

func NewSeenSet() *SeenSet {
	return &SeenSet{hashes: map[string]string{}}
}

// Check hashes the file at path and reports whether identical content was
// seen before, returning the path it was first seen at.
func (s *SeenSet) Check(path string) (hashHex string, firstPath string, dup bool, err error) {
	hashHex, err = HashFile(path)
	if err != nil {
		return "", "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.hashes[hashHex]; ok {
		return hashHex, p, true, nil
	}
	s.hashes[hashHex] = path
	return hashHex, path, false, nil
}

// Forget drops a hash so the content can be processed again.
func (s *SeenSet) Forget(hashHex string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, hashHex)
}

func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
