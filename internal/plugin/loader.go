package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/tibok/tibok/internal/plugin/manifest"
)

// Candidate is a plugin directory found during discovery.
type Candidate struct {
	// Identifier is the manifest identifier. For a manifest that failed to
	// parse it is salvaged from the raw JSON, or derived from the directory.
	Identifier string
	Name       string
	Dir        string
	Manifest   *manifest.Manifest
	Err        error
}

// Discover scans root for plugin directories. Each immediate subdirectory
// holding a manifest.json is a candidate; others are ignored. A missing root
// yields no candidates. Results are sorted by directory name.
func Discover(root string) ([]*Candidate, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("discover plugins in %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var found []*Candidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, manifest.FileName)); err != nil {
			continue
		}
		found = append(found, Inspect(dir))
	}
	return found, nil
}

// Inspect reads and validates the manifest in dir.
func Inspect(dir string) *Candidate {
	c := &Candidate{Dir: dir}

	m, err := manifest.LoadFromDir(dir)
	if err == nil {
		err = m.Validate()
	}
	if err != nil {
		c.Err = err
		c.Identifier, c.Name = salvageIdentity(dir)
		return c
	}

	c.Manifest = m
	c.Identifier = m.Identifier
	c.Name = m.Name
	return c
}

// salvageIdentity pulls identifier and name out of a manifest that did not
// parse or validate, so its denial is recorded under the right identifier.
func salvageIdentity(dir string) (id, name string) {
	base := filepath.Base(dir)
	data, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
	if err != nil || !gjson.ValidBytes(data) {
		return base, base
	}

	id = gjson.GetBytes(data, "identifier").String()
	if id == "" {
		id = base
	}
	name = gjson.GetBytes(data, "name").String()
	if name == "" {
		name = id
	}
	return id, name
}
