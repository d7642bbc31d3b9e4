// Package sync imports recipe catalogs from JSON files into the database.
package sync

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/rsned/craftqueue/internal/crafting/db"
	"github.com/rsned/craftqueue/internal/crafting/registry"
	"github.com/rsned/craftqueue/pkg/crafting"
)

//go:embed recipes.schema.json
var recipesSchema string

const recipesSchemaURL = "recipes.schema.json"

// maxDurationMs is the longest duration_ms that fits in a time.Duration.
const maxDurationMs = math.MaxInt64 / int64(time.Millisecond)

// Syncer handles recipe catalog imports.
type Syncer struct {
	db     *db.DB
	schema *jsonschema.Schema
}

// NewSyncer creates a new Syncer.
func NewSyncer(database *db.DB) (*Syncer, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(recipesSchemaURL, bytes.NewReader([]byte(recipesSchema))); err != nil {
		return nil, fmt.Errorf("loading recipe schema: %w", err)
	}
	schema, err := c.Compile(recipesSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling recipe schema: %w", err)
	}
	return &Syncer{db: database, schema: schema}, nil
}

// RecipeImport is the on-disk format of one recipe.
type RecipeImport struct {
	ID          string         `json:"id"`
	Description string         `json:"description,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	Inputs      []AmountImport `json:"inputs,omitempty"`
	Outputs     []AmountImport `json:"outputs"`
}

// AmountImport is the on-disk format of a resource amount.
type AmountImport struct {
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
}

// ImportRecipesFromFile imports recipes from a JSON file.
func (s *Syncer) ImportRecipesFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}
	return s.ImportRecipes(ctx, data)
}

// ImportRecipes validates a JSON recipe catalog and upserts it.
// Nothing is written unless every recipe is valid.
func (s *Syncer) ImportRecipes(ctx context.Context, data []byte) (int, error) {
	recipes, err := s.ParseRecipes(data)
	if err != nil {
		return 0, err
	}

	recipeStore := db.NewRecipeStore(s.db)
	if err := recipeStore.BulkInsertRecipes(ctx, recipes); err != nil {
		return 0, fmt.Errorf("inserting recipes: %w", err)
	}
	if err := s.recordSync(ctx, recipeStore); err != nil {
		return 0, err
	}

	return len(recipes), nil
}

// SyncRecipesFromFile makes the stored catalog match a JSON file exactly:
// recipes in the file are upserted and stored recipes missing from it are
// deleted in the same transaction.
func (s *Syncer) SyncRecipesFromFile(ctx context.Context, path string) (imported, pruned int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("reading file: %w", err)
	}
	recipes, err := s.ParseRecipes(data)
	if err != nil {
		return 0, 0, err
	}

	recipeStore := db.NewRecipeStore(s.db)
	pruned, err = recipeStore.ReplaceAllRecipes(ctx, recipes)
	if err != nil {
		return 0, 0, fmt.Errorf("syncing recipes: %w", err)
	}
	if err := s.recordSync(ctx, recipeStore); err != nil {
		return 0, 0, err
	}

	return len(recipes), pruned, nil
}

// recordSync updates the sync metadata after a catalog write.
func (s *Syncer) recordSync(ctx context.Context, recipeStore *db.RecipeStore) error {
	if err := s.db.SetSyncMetadata(ctx, "recipes_last_sync", time.Now().Format(time.RFC3339)); err != nil {
		return err
	}
	count, err := recipeStore.CountRecipes(ctx)
	if err != nil {
		return err
	}
	return s.db.SetSyncMetadata(ctx, "recipes_count", fmt.Sprintf("%d", count))
}

// ParseRecipes validates data against the catalog schema and converts it.
func (s *Syncer) ParseRecipes(data []byte) ([]db.StoredRecipe, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validating recipes: %w", err)
	}

	var imports []RecipeImport
	if err := json.Unmarshal(data, &imports); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	seen := make(map[string]bool, len(imports))
	recipes := make([]db.StoredRecipe, 0, len(imports))
	for _, imp := range imports {
		if seen[imp.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", registry.ErrRegistration, imp.ID)
		}
		seen[imp.ID] = true

		if imp.DurationMs > maxDurationMs {
			return nil, fmt.Errorf("%w: %s: duration_ms %d exceeds %d", registry.ErrRegistration, imp.ID, imp.DurationMs, maxDurationMs)
		}

		recipe := transformRecipe(imp)
		if err := registry.Validate(recipe.Definition()); err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}

	return recipes, nil
}

// transformRecipe converts import format to storage format.
func transformRecipe(imp RecipeImport) db.StoredRecipe {
	return db.StoredRecipe{
		ID:          imp.ID,
		Description: imp.Description,
		Duration:    time.Duration(imp.DurationMs) * time.Millisecond,
		Inputs:      transformAmounts(imp.Inputs),
		Outputs:     transformAmounts(imp.Outputs),
	}
}

func transformAmounts(in []AmountImport) []crafting.ResourceAmount {
	if len(in) == 0 {
		return nil
	}
	out := make([]crafting.ResourceAmount, 0, len(in))
	for _, a := range in {
		out = append(out, crafting.ResourceAmount{
			Kind:   crafting.ResourceKind(a.Kind),
			Amount: a.Amount,
		})
	}
	return out
}
