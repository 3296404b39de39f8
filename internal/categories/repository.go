// Package categories holds the fixed video categories: the seed list, the
// repository and the categories.getMany query.
package categories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newtube/backend/internal/models"
)

// Names is the fixed category list inserted by the seed command.
var Names = []string{
	"Music",
	"Gaming",
	"News",
	"Sports",
	"Entertainment",
	"Education",
	"Science & Technology",
	"Travel & Events",
	"Comedy",
	"Lifestyle",
	"Film & Animation",
	"DIY & Crafts",
	"Autos & Vehicles",
	"Health & Fitness",
	"People & Blogs",
}

// Seed is one category to insert.
type Seed struct {
	Name        string
	Description string
}

// Seeds returns the seed rows for Names.
func Seeds() []Seed {
	out := make([]Seed, 0, len(Names))
	for _, name := range Names {
		out = append(out, Seed{Name: name, Description: "Videos related to " + strings.ToLower(name)})
	}
	return out
}

// Repository handles category persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a categories repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert adds seeds in one batch. Existing names are skipped; returns the number inserted.
func (r *Repository) Insert(ctx context.Context, seeds []Seed) (int, error) {
	const q = `INSERT INTO categories (name, description) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`
	batch := &pgx.Batch{}
	for _, s := range seeds {
		batch.Queue(q, s.Name, s.Description)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for _, s := range seeds {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert category %q: %w", s.Name, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// List returns all categories ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Category, error) {
	const q = `SELECT id, name, description, created_at, updated_at FROM categories ORDER BY name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
