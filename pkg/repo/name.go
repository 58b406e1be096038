package repo

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/caskstore/cask/pkg/backend/status"
	"github.com/caskstore/cask/pkg/chunk"
	"github.com/caskstore/cask/pkg/errors"
	"github.com/caskstore/cask/pkg/sgdata"
)

const nameDir = "name"

// ErrNameExists tells that a stored name would be overwritten.
var ErrNameExists = errors.New("name already exists")

// ErrNameNotFound tells that no object is stored under a name.
var ErrNameNotFound = errors.New("name not found")

// NameEntry is the stored record binding a name to an object address.
type NameEntry struct {
	Address chunk.DataAddress `yaml:"address"`
	Written time.Time         `yaml:"written"`
}

func namePath(name string) string {
	return path.Join(nameDir, name)
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if name != path.Clean(name) || path.IsAbs(name) || name[0] == '.' {
		return fmt.Errorf("invalid name %q", name)
	}
	return nil
}

// SaveName binds name to addr. Names are write-once: storing under an
// existing name returns ErrNameExists.
func (r *Repo) SaveName(ctx context.Context, name string, addr chunk.DataAddress) error {
	if err := validateName(name); err != nil {
		return err
	}

	entry := NameEntry{Address: addr, Written: time.Now().UTC()}
	blob, err := yaml.Marshal(entry)
	if err != nil {
		return err
	}

	err = r.store.Write(ctx, namePath(name), sgdata.FromSingle(blob), false)
	if errors.Is(err, status.ErrExists) {
		return ErrNameExists.Wrap(fmt.Errorf("%q", name))
	}
	return err
}

// ReadName resolves a stored name to its entry.
func (r *Repo) ReadName(ctx context.Context, name string) (NameEntry, error) {
	if err := validateName(name); err != nil {
		return NameEntry{}, err
	}

	blob, err := r.store.Read(ctx, namePath(name))
	if errors.Is(err, status.ErrNotFound) {
		return NameEntry{}, ErrNameNotFound.Wrap(fmt.Errorf("%q", name))
	}
	if err != nil {
		return NameEntry{}, err
	}

	var entry NameEntry
	if err := yaml.Unmarshal(blob.Bytes(), &entry); err != nil {
		return NameEntry{}, err
	}
	return entry, nil
}

// RemoveName unbinds a name. The chunks it referenced stay until a
// garbage collection finds them unreachable.
func (r *Repo) RemoveName(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if _, err := r.store.ReadMetadata(ctx, namePath(name)); errors.Is(err, status.ErrNotFound) {
		return ErrNameNotFound.Wrap(fmt.Errorf("%q", name))
	}
	return r.store.Remove(ctx, namePath(name))
}

// ListNames returns all stored names, sorted.
func (r *Repo) ListNames(ctx context.Context) ([]string, error) {
	entries, err := r.store.List(ctx, nameDir)
	if errors.Is(err, status.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, path.Base(entry))
	}
	sort.Strings(names)
	return names, nil
}
