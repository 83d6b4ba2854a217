package signing

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Keyring maps key ids to trusted public keys.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

// NewKeyring creates a keyring holding the given keys.
func NewKeyring(keys ...ed25519.PublicKey) (*Keyring, error) {
	k := &Keyring{keys: make(map[string]ed25519.PublicKey)}
	for _, pub := range keys {
		if _, err := k.Add(pub); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// LoadKeyring reads every *.pub file in dir. A missing directory yields an
// empty keyring.
func LoadKeyring(dir string) (*Keyring, error) {
	k, _ := NewKeyring()
	if dir == "" {
		return k, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.pub"))
	if err != nil {
		return nil, fmt.Errorf("scan keyring: %w", err)
	}
	if len(matches) == 0 {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return k, nil
		}
	}

	var errs []error
	for _, path := range matches {
		pub, err := LoadPublicKey(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := k.Add(pub); err != nil {
			errs = append(errs, err)
		}
	}
	return k, errors.Join(errs...)
}

// Add trusts a public key and returns its id.
func (k *Keyring) Add(pub ed25519.PublicKey) (string, error) {
	id, err := KeyID(pub)
	if err != nil {
		return "", err
	}
	k.mu.Lock()
	k.keys[id] = pub
	k.mu.Unlock()
	return id, nil
}

// Lookup returns the public key for an id.
func (k *Keyring) Lookup(id string) (ed25519.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	pub, ok := k.keys[id]
	return pub, ok
}

// IDs returns the trusted key ids, sorted.
func (k *Keyring) IDs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	ids := make([]string, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of trusted keys.
func (k *Keyring) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}
