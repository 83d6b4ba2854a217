package signing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/tibok/tibok/internal/plugin/manifest"
)

// ErrUnhashable is returned for plugin directories holding entries whose
// content the hash cannot cover: links to directories and special files.
var ErrUnhashable = errors.New("plugin directory entry cannot be hashed")

// ComputeContentHash returns the hex SHA-256 content hash of a plugin
// directory. Every file except the root manifest.json contributes
// "relpath NUL sha256hex LF" in sorted path order, followed by
// "manifest NUL canonical-json". A symlinked file contributes its target's
// bytes under the link's own path. Modes and timestamps are ignored.
func ComputeContentHash(root string, m *manifest.Manifest) (string, error) {
	files, err := collectFiles(root)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, rel := range files {
		sum, err := hashFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s\x00%s\n", rel, sum)
	}

	canonical, err := m.Canonical()
	if err != nil {
		return "", fmt.Errorf("canonical manifest: %w", err)
	}
	h.Write([]byte("manifest\x00"))
	h.Write(canonical)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// collectFiles lists the files under root as sorted slash paths.
func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !d.Type().IsRegular() {
			if d.Type()&fs.ModeSymlink == 0 {
				return fmt.Errorf("%w: %s is not a regular file", ErrUnhashable, rel)
			}
			target, err := os.Stat(p)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", rel, err)
			}
			if !target.Mode().IsRegular() {
				return fmt.Errorf("%w: %s links to a non-regular file", ErrUnhashable, rel)
			}
		}
		if rel == manifest.FileName {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk plugin directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
