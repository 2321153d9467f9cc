// Copyright 2026 The Keyhaven Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/keyhaven/keyhaven/internal/brand"
)

// BrandRepository implements brand.Repository
type BrandRepository struct {
	db *DB
}

// NewBrandRepository creates a new brand repository
func NewBrandRepository(db *DB) *BrandRepository {
	return &BrandRepository{db: db}
}

// Create creates a new brand
func (r *BrandRepository) Create(ctx context.Context, b *brand.Brand) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO brands (id, name, slug, api_key, api_secret_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID, b.Name, b.Slug, b.APIKey, b.APISecretHash, b.Status, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert brand: %w", err)
	}
	return nil
}

// GetByID retrieves a brand by ID
func (r *BrandRepository) GetByID(ctx context.Context, id string) (*brand.Brand, error) {
	return r.get(ctx, "id = $1", id)
}

// GetBySlug retrieves a brand by slug
func (r *BrandRepository) GetBySlug(ctx context.Context, slug string) (*brand.Brand, error) {
	return r.get(ctx, "slug = $1", slug)
}

// GetByAPIKey retrieves a brand by its API key
func (r *BrandRepository) GetByAPIKey(ctx context.Context, apiKey string) (*brand.Brand, error) {
	return r.get(ctx, "api_key = $1", apiKey)
}

func (r *BrandRepository) get(ctx context.Context, where string, arg any) (*brand.Brand, error) {
	var b brand.Brand
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, slug, api_key, api_secret_hash, status, created_at, updated_at
		FROM brands
		WHERE `+where,
		arg,
	).Scan(&b.ID, &b.Name, &b.Slug, &b.APIKey, &b.APISecretHash, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, brand.ErrBrandNotFound
		}
		return nil, fmt.Errorf("failed to get brand: %w", err)
	}
	return &b, nil
}

// Update updates a brand
func (r *BrandRepository) Update(ctx context.Context, b *brand.Brand) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE brands SET
			name = $2,
			api_key = $3,
			api_secret_hash = $4,
			status = $5,
			updated_at = $6
		WHERE id = $1
	`, b.ID, b.Name, b.APIKey, b.APISecretHash, b.Status, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update brand: %w", err)
	}
	if result.RowsAffected() == 0 {
		return brand.ErrBrandNotFound
	}
	return nil
}

// List lists brands with pagination
func (r *BrandRepository) List(ctx context.Context, limit, offset int) ([]*brand.Brand, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, slug, api_key, api_secret_hash, status, created_at, updated_at
		FROM brands
		ORDER BY created_at
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	defer rows.Close()

	var brands []*brand.Brand
	for rows.Next() {
		var b brand.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.Slug, &b.APIKey, &b.APISecretHash, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		brands = append(brands, &b)
	}
	return brands, rows.Err()
}
