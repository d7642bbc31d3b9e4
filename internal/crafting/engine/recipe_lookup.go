package engine

import (
	"context"
	"errors"

	"github.com/rsned/craftqueue/internal/crafting/registry"
	"github.com/rsned/craftqueue/pkg/crafting"
)

// RecipeLookup executes the recipe_lookup tool logic.
func (e *Engine) RecipeLookup(ctx context.Context, req crafting.RecipeLookupRequest) (*crafting.RecipeLookupResponse, error) {
	resp := &crafting.RecipeLookupResponse{}

	// If search term provided, search first
	if req.Search != "" {
		hits := e.recipes.Search(req.Search, 10)
		resp.SearchResults = hits

		// If exactly one result and no recipe name provided, use it
		if len(hits) == 1 && req.RecipeName == "" {
			req.RecipeName = hits[0].Name
		}
	}

	if req.RecipeName == "" {
		return resp, nil
	}

	h, def, err := e.recipes.LookupByName(req.RecipeName)
	if errors.Is(err, registry.ErrNotFound) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	resp.Handle = h
	resp.Recipe = &def

	// Find recipes that consume this recipe's outputs
	seen := make(map[string]bool)
	for _, out := range def.Outputs {
		for _, use := range e.consumersOf(out.Kind) {
			if seen[use.RecipeName] {
				continue
			}
			seen[use.RecipeName] = true
			resp.UsedInRecipes = append(resp.UsedInRecipes, use.RecipeName)
		}
	}

	return resp, nil
}
