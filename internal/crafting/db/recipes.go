package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rsned/craftqueue/pkg/crafting"
)

// StoredRecipe is a catalog row with its inputs and outputs.
type StoredRecipe struct {
	ID          string
	Description string
	Duration    time.Duration
	Inputs      []crafting.ResourceAmount
	Outputs     []crafting.ResourceAmount
}

// Definition converts the row into a registry definition keyed by ID.
func (r StoredRecipe) Definition() crafting.RecipeDefinition {
	return crafting.RecipeDefinition{
		Name:     r.ID,
		Inputs:   append([]crafting.ResourceAmount(nil), r.Inputs...),
		Outputs:  append([]crafting.ResourceAmount(nil), r.Outputs...),
		Duration: r.Duration,
	}
}

// RecipeStore handles recipe data access.
type RecipeStore struct {
	db *DB
}

// NewRecipeStore creates a new RecipeStore.
func NewRecipeStore(db *DB) *RecipeStore {
	return &RecipeStore{db: db}
}

// GetRecipe retrieves a single recipe by ID with its inputs and outputs.
// Returns nil if the recipe does not exist.
func (s *RecipeStore) GetRecipe(ctx context.Context, id string) (*StoredRecipe, error) {
	recipe := &StoredRecipe{ID: id}

	var durationMs int64
	err := s.db.QueryRowContext(ctx, `
		SELECT description, duration_ms
		FROM recipes WHERE id = ?
	`, id).Scan(&recipe.Description, &durationMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying recipe: %w", err)
	}
	recipe.Duration = time.Duration(durationMs) * time.Millisecond

	if recipe.Inputs, err = s.getAmounts(ctx, "recipe_inputs", id); err != nil {
		return nil, err
	}
	if recipe.Outputs, err = s.getAmounts(ctx, "recipe_outputs", id); err != nil {
		return nil, err
	}

	return recipe, nil
}

// getAmounts reads the ordered inputs or outputs of a recipe.
func (s *RecipeStore) getAmounts(ctx context.Context, table, recipeID string) ([]crafting.ResourceAmount, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT kind, amount
		FROM %s
		WHERE recipe_id = ?
		ORDER BY position
	`, table), recipeID)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var amounts []crafting.ResourceAmount
	for rows.Next() {
		var a crafting.ResourceAmount
		var kind string
		if err := rows.Scan(&kind, &a.Amount); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		a.Kind = crafting.ResourceKind(kind)
		amounts = append(amounts, a)
	}

	return amounts, rows.Err()
}

// GetAllRecipeIDs returns all recipe IDs in ascending order.
func (s *RecipeStore) GetAllRecipeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM recipes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing all recipes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning recipe id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetAllRecipes retrieves every recipe, ordered by ID.
func (s *RecipeStore) GetAllRecipes(ctx context.Context) ([]StoredRecipe, error) {
	ids, err := s.GetAllRecipeIDs(ctx)
	if err != nil {
		return nil, err
	}

	recipes := make([]StoredRecipe, 0, len(ids))
	for _, id := range ids {
		r, err := s.GetRecipe(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading recipe %s: %w", id, err)
		}
		if r == nil {
			continue
		}
		recipes = append(recipes, *r)
	}

	return recipes, nil
}

// CountRecipes returns the total number of recipes.
func (s *RecipeStore) CountRecipes(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting recipes: %w", err)
	}
	return count, nil
}

// BulkInsertRecipes inserts or replaces multiple recipes in a transaction.
func (s *RecipeStore) BulkInsertRecipes(ctx context.Context, recipes []StoredRecipe) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		return upsertRecipes(ctx, tx, recipes)
	})
}

// ReplaceAllRecipes makes the catalog exactly recipes: they are upserted and
// every other stored recipe is deleted, all in one transaction.
// It returns the number of recipes deleted.
func (s *RecipeStore) ReplaceAllRecipes(ctx context.Context, recipes []StoredRecipe) (int, error) {
	pruned := 0
	err := s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		if err := upsertRecipes(ctx, tx, recipes); err != nil {
			return err
		}

		keep := make(map[string]bool, len(recipes))
		for _, r := range recipes {
			keep[r.ID] = true
		}

		rows, err := tx.QueryContext(ctx, `SELECT id FROM recipes ORDER BY id`)
		if err != nil {
			return fmt.Errorf("listing recipes: %w", err)
		}
		var stale []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scanning recipe id: %w", err)
			}
			if !keep[id] {
				stale = append(stale, id)
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range stale {
			if _, err := tx.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id); err != nil {
				return fmt.Errorf("deleting recipe %s: %w", id, err)
			}
		}
		pruned = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}

func upsertRecipes(ctx context.Context, tx *sql.Tx, recipes []StoredRecipe) error {
	recipeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recipes (id, description, duration_ms)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			duration_ms = excluded.duration_ms
	`)
	if err != nil {
		return fmt.Errorf("preparing recipe statement: %w", err)
	}
	defer func() { _ = recipeStmt.Close() }()

	inStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recipe_inputs (recipe_id, position, kind, amount)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing input statement: %w", err)
	}
	defer func() { _ = inStmt.Close() }()

	outStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recipe_outputs (recipe_id, position, kind, amount)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing output statement: %w", err)
	}
	defer func() { _ = outStmt.Close() }()

	for _, r := range recipes {
		if _, err := recipeStmt.ExecContext(ctx, r.ID, r.Description, r.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("inserting recipe %s: %w", r.ID, err)
		}

		// Replace the amount lists wholesale so re-imports don't leave stale rows.
		if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_inputs WHERE recipe_id = ?`, r.ID); err != nil {
			return fmt.Errorf("clearing inputs for %s: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_outputs WHERE recipe_id = ?`, r.ID); err != nil {
			return fmt.Errorf("clearing outputs for %s: %w", r.ID, err)
		}

		for i, a := range r.Inputs {
			if _, err := inStmt.ExecContext(ctx, r.ID, i, string(a.Kind), a.Amount); err != nil {
				return fmt.Errorf("inserting input for %s: %w", r.ID, err)
			}
		}
		for i, a := range r.Outputs {
			if _, err := outStmt.ExecContext(ctx, r.ID, i, string(a.Kind), a.Amount); err != nil {
				return fmt.Errorf("inserting output for %s: %w", r.ID, err)
			}
		}
	}

	return nil
}
