// Package registry holds the in-memory recipe catalog that craft queues resolve against.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rsned/craftqueue/pkg/crafting"
)

var (
	// ErrNotFound is returned when a handle or name does not resolve.
	ErrNotFound = errors.New("recipe not found")
	// ErrRegistration is returned when a definition is malformed.
	ErrRegistration = errors.New("invalid recipe definition")
)

// Registry stores recipe definitions by handle.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	next   crafting.RecipeHandle
	byID   map[crafting.RecipeHandle]crafting.RecipeDefinition
	byName map[string]crafting.RecipeHandle
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byID:   make(map[crafting.RecipeHandle]crafting.RecipeDefinition),
		byName: make(map[string]crafting.RecipeHandle),
	}
}

// Register validates def and stores a copy under a fresh handle.
func (r *Registry) Register(def crafting.RecipeDefinition) (crafting.RecipeHandle, error) {
	if err := Validate(def); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[def.Name]; exists {
		return 0, fmt.Errorf("%w: duplicate name %q", ErrRegistration, def.Name)
	}

	r.next++
	h := r.next
	r.byID[h] = def.Clone()
	r.byName[def.Name] = h
	return h, nil
}

// Lookup returns a copy of the definition stored under h.
func (r *Registry) Lookup(h crafting.RecipeHandle) (crafting.RecipeDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.byID[h]
	if !ok {
		return crafting.RecipeDefinition{}, fmt.Errorf("%w: handle %d", ErrNotFound, h)
	}
	return def.Clone(), nil
}

// LookupByName resolves a recipe by its name.
func (r *Registry) LookupByName(name string) (crafting.RecipeHandle, crafting.RecipeDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.byName[name]
	if !ok {
		return 0, crafting.RecipeDefinition{}, fmt.Errorf("%w: name %q", ErrNotFound, name)
	}
	return h, r.byID[h].Clone(), nil
}

// Replace swaps the whole definition stored under h.
// Tasks referencing h see the new values on their next advancement.
func (r *Registry) Replace(h crafting.RecipeHandle, def crafting.RecipeDefinition) error {
	if err := Validate(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[h]
	if !ok {
		return fmt.Errorf("%w: handle %d", ErrNotFound, h)
	}
	if other, taken := r.byName[def.Name]; taken && other != h {
		return fmt.Errorf("%w: duplicate name %q", ErrRegistration, def.Name)
	}

	delete(r.byName, old.Name)
	r.byID[h] = def.Clone()
	r.byName[def.Name] = h
	return nil
}

// Remove deregisters h. Queued tasks that still reference it become dangling.
func (r *Registry) Remove(h crafting.RecipeHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.byID[h]
	if !ok {
		return fmt.Errorf("%w: handle %d", ErrNotFound, h)
	}
	delete(r.byID, h)
	delete(r.byName, def.Name)
	return nil
}

// Handles returns all live handles in ascending order.
func (r *Registry) Handles() []crafting.RecipeHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]crafting.RecipeHandle, 0, len(r.byID))
	for h := range r.byID {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of registered recipes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Search returns recipes whose name contains term (case-insensitive).
func (r *Registry) Search(term string, limit int) []crafting.RecipeSearchHit {
	term = strings.ToLower(term)

	var hits []crafting.RecipeSearchHit
	for _, h := range r.Handles() {
		def, err := r.Lookup(h)
		if err != nil {
			continue
		}
		if !strings.Contains(strings.ToLower(def.Name), term) {
			continue
		}
		hits = append(hits, crafting.RecipeSearchHit{
			Handle:     h,
			Name:       def.Name,
			DurationMs: def.Duration.Milliseconds(),
		})
		if limit > 0 && len(hits) >= limit {
			break
		}
	}
	return hits
}

// Validate checks a definition without registering it.
func Validate(def crafting.RecipeDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrRegistration)
	}
	if def.Duration < 0 {
		return fmt.Errorf("%w: %s: negative duration %s", ErrRegistration, def.Name, def.Duration)
	}
	if err := validateAmounts(def.Name, "input", def.Inputs); err != nil {
		return err
	}
	return validateAmounts(def.Name, "output", def.Outputs)
}

func validateAmounts(name, side string, amounts []crafting.ResourceAmount) error {
	for _, a := range amounts {
		if !a.Kind.IsValid() {
			return fmt.Errorf("%w: %s: unknown %s kind %q", ErrRegistration, name, side, a.Kind)
		}
		if a.Amount < 0 {
			return fmt.Errorf("%w: %s: negative %s amount %d for %s", ErrRegistration, name, side, a.Amount, a.Kind)
		}
	}
	return nil
}
