package engine

import (
	"context"
	"sort"

	"github.com/rsned/craftqueue/pkg/crafting"
)

// ResourceUses executes the resource_uses tool logic.
func (e *Engine) ResourceUses(ctx context.Context, req crafting.ResourceUsesRequest) (*crafting.ResourceUsesResponse, error) {
	kind, err := crafting.ParseResourceKind(req.Kind)
	if err != nil {
		return nil, err
	}

	return &crafting.ResourceUsesResponse{
		Kind:       kind,
		ConsumedBy: e.consumersOf(kind),
		ProducedBy: e.producersOf(kind),
	}, nil
}

// consumersOf lists recipes that take kind as an input.
func (e *Engine) consumersOf(kind crafting.ResourceKind) []crafting.ResourceUse {
	return e.usesOf(kind, func(d crafting.RecipeDefinition) []crafting.ResourceAmount { return d.Inputs })
}

// producersOf lists recipes that yield kind as an output.
func (e *Engine) producersOf(kind crafting.ResourceKind) []crafting.ResourceUse {
	return e.usesOf(kind, func(d crafting.RecipeDefinition) []crafting.ResourceAmount { return d.Outputs })
}

func (e *Engine) usesOf(kind crafting.ResourceKind, side func(crafting.RecipeDefinition) []crafting.ResourceAmount) []crafting.ResourceUse {
	var uses []crafting.ResourceUse

	for _, h := range e.recipes.Handles() {
		def, err := e.recipes.Lookup(h)
		if err != nil {
			continue
		}

		// A recipe may list the same kind more than once
		var quantity int64
		for _, a := range side(def) {
			if a.Kind == kind {
				quantity += a.Amount
			}
		}
		if quantity == 0 {
			continue
		}

		uses = append(uses, crafting.ResourceUse{
			RecipeName:       def.Name,
			QuantityPerCraft: quantity,
			DurationMs:       def.Duration.Milliseconds(),
		})
	}

	// Fastest recipes first, then by name for determinism
	sort.Slice(uses, func(i, j int) bool {
		if uses[i].DurationMs != uses[j].DurationMs {
			return uses[i].DurationMs < uses[j].DurationMs
		}
		return uses[i].RecipeName < uses[j].RecipeName
	})

	return uses
}
