package repo

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"time"

	"github.com/caskstore/cask/pkg/sgdata"
)

// Generation names a storage epoch. Generations are zero-padded
// ordinals so their lexicographic order is their creation order; the
// highest one is current. Chunks physically live under some
// generation's namespace and migrate forward lazily, on read or touch.
type Generation string

// generationMarker is the blob that makes an otherwise empty
// generation visible to List.
const generationMarker = "created"

var generationPattern = regexp.MustCompile(`^[0-9]{10}$`)

func newGeneration(ordinal uint64) Generation {
	return Generation(fmt.Sprintf("%010d", ordinal))
}

func (g Generation) String() string {
	return string(g)
}

func (g Generation) ordinal() (uint64, error) {
	if !generationPattern.MatchString(string(g)) {
		return 0, fmt.Errorf("invalid generation name %q", string(g))
	}
	var ord uint64
	_, err := fmt.Sscanf(string(g), "%d", &ord)
	return ord, err
}

// listGenerations returns the repository's generations in ascending
// order.
func (r *Repo) listGenerations(ctx context.Context) ([]Generation, error) {
	entries, err := r.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	gens := make([]Generation, 0, len(entries))
	for _, entry := range entries {
		name := path.Base(entry)
		if generationPattern.MatchString(name) {
			gens = append(gens, Generation(name))
		}
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens, nil
}

// createGeneration materializes a new generation namespace.
func (r *Repo) createGeneration(ctx context.Context, gen Generation) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	marker := path.Join(gen.String(), generationMarker)
	return r.store.Write(ctx, marker, sgdata.FromSingle([]byte(stamp+"\n")), true)
}

// CurrentGeneration returns the newest generation.
func (r *Repo) CurrentGeneration() Generation {
	return r.generations[len(r.generations)-1]
}

// Generations returns all known generations, oldest first.
func (r *Repo) Generations() []Generation {
	out := make([]Generation, len(r.generations))
	copy(out, r.generations)
	return out
}

// AdvanceGeneration creates a fresh current generation and returns it.
// Existing chunks stay where they are until promotion moves them.
func (r *Repo) AdvanceGeneration(ctx context.Context) (Generation, error) {
	ord, err := r.CurrentGeneration().ordinal()
	if err != nil {
		return "", err
	}
	next := newGeneration(ord + 1)
	if err := r.createGeneration(ctx, next); err != nil {
		return "", err
	}
	r.generations = append(r.generations, next)
	return next, nil
}
