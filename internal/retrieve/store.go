// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var reUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Store keeps downloaded documents on disk, one file per reference.
type Store struct {
	Dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the file used for ref: a readable stem from the URL plus a
// short hash of the full reference so distinct URLs never collide.
func (s *Store) Path(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	hash := hex.EncodeToString(sum[:])[:12]

	stem := ""
	if u, err := url.Parse(ref); err == nil {
		stem = strings.TrimSuffix(path.Base(u.Path), ".pdf")
	}
	stem = strings.Trim(reUnsafe.ReplaceAllString(stem, "-"), "-.")
	if len(stem) > 48 {
		stem = stem[:48]
	}
	if stem == "" {
		return filepath.Join(s.Dir, hash+".pdf")
	}
	return filepath.Join(s.Dir, stem+"-"+hash+".pdf")
}

// Load returns the stored document for ref, if any.
func (s *Store) Load(ref string) ([]byte, bool) {
	data, err := os.ReadFile(s.Path(ref))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Save writes the document for ref through a temporary file and rename, so
// a partial download is never left under the final name. An existing file
// is kept.
func (s *Store) Save(ref string, data []byte) error {
	dest := s.Path(ref)
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", s.Dir, err)
	}

	tmpFile, err := os.CreateTemp(s.Dir, ".retrieve-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing document: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
