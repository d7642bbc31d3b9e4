package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/rsned/craftqueue/pkg/crafting"
)

// ErrNoStore is returned by ReloadRecipes when the engine has no recipe store.
var ErrNoStore = errors.New("no recipe store configured")

// ReloadStats summarizes one reload pass.
type ReloadStats struct {
	Added     int `json:"added"`
	Replaced  int `json:"replaced"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// ReloadRecipes syncs the registry with the recipe store.
// Existing names keep their handle so queued tasks pick up new durations
// and amounts on their next advancement. Names gone from the store are
// deregistered and their queued tasks are dropped on the next tick.
func (e *Engine) ReloadRecipes(ctx context.Context) (ReloadStats, error) {
	var stats ReloadStats
	if e.store == nil {
		return stats, ErrNoStore
	}

	stored, err := e.store.GetAllRecipes(ctx)
	if err != nil {
		return stats, fmt.Errorf("loading recipes: %w", err)
	}

	seen := make(map[string]bool, len(stored))
	var errs []error
	for _, r := range stored {
		def := r.Definition()
		seen[def.Name] = true

		h, cur, err := e.recipes.LookupByName(def.Name)
		if err != nil {
			if _, err := e.recipes.Register(def); err != nil {
				errs = append(errs, err)
				continue
			}
			stats.Added++
			continue
		}

		if sameDefinition(cur, def) {
			stats.Unchanged++
			continue
		}
		if err := e.recipes.Replace(h, def); err != nil {
			errs = append(errs, err)
			continue
		}
		stats.Replaced++
	}

	for _, h := range e.recipes.Handles() {
		def, err := e.recipes.Lookup(h)
		if err != nil || seen[def.Name] {
			continue
		}
		if err := e.recipes.Remove(h); err != nil {
			errs = append(errs, err)
			continue
		}
		stats.Removed++
	}

	e.logger.Info("recipes reloaded",
		"added", stats.Added,
		"replaced", stats.Replaced,
		"unchanged", stats.Unchanged,
		"removed", stats.Removed,
	)

	return stats, errors.Join(errs...)
}

func sameDefinition(a, b crafting.RecipeDefinition) bool {
	if a.Name != b.Name || a.Duration != b.Duration {
		return false
	}
	return amountsEqual(a.Inputs, b.Inputs) && amountsEqual(a.Outputs, b.Outputs)
}

func amountsEqual(a, b []crafting.ResourceAmount) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
