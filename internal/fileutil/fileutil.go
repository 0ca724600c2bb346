// Package fileutil writes files so readers never observe a partial result.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PartialFile is a temporary file beside its destination. Data written to it
// only appears at the destination after Commit.
type PartialFile struct {
	*os.File
	done bool
}

// CreatePartial creates dir if needed and opens a hidden .part file inside it.
func CreatePartial(dir string) (*PartialFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %q: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".dubctl-*.part")
	if err != nil {
		return nil, fmt.Errorf("create partial file: %w", err)
	}
	return &PartialFile{File: f}, nil
}

// Commit flushes, closes, and renames the file to name inside its directory.
// An existing file of that name is replaced.
func (p *PartialFile) Commit(name string) (string, error) {
	if p.done {
		return "", errors.New("partial file already finished")
	}
	p.done = true
	tmp := p.Name()
	dest := filepath.Join(filepath.Dir(tmp), name)

	if err := p.Sync(); err != nil {
		_ = p.File.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := p.File.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("chmod %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move into place: %w", err)
	}
	return dest, nil
}

// Abort discards the file. It is a no-op after Commit.
func (p *PartialFile) Abort() {
	if p.done {
		return
	}
	p.done = true
	_ = p.File.Close()
	_ = os.Remove(p.Name())
}
