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

// ProductRepository implements brand.ProductRepository
type ProductRepository struct {
	db *DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create creates a new product
func (r *ProductRepository) Create(ctx context.Context, p *brand.Product) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO products (id, brand_id, name, slug, description, default_seat_limit, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.BrandID, p.Name, p.Slug, p.Description, p.DefaultSeatLimit, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*brand.Product, error) {
	var p brand.Product
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, brand_id, name, slug, description, default_seat_limit, status, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.BrandID, &p.Name, &p.Slug, &p.Description, &p.DefaultSeatLimit, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, brand.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// GetBySlug retrieves a product by slug within a brand
func (r *ProductRepository) GetBySlug(ctx context.Context, brandID, slug string) (*brand.Product, error) {
	var p brand.Product
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, brand_id, name, slug, description, default_seat_limit, status, created_at, updated_at
		FROM products
		WHERE brand_id = $1 AND slug = $2
	`, brandID, slug).Scan(&p.ID, &p.BrandID, &p.Name, &p.Slug, &p.Description, &p.DefaultSeatLimit, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, brand.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// ListByBrand lists all products of a brand
func (r *ProductRepository) ListByBrand(ctx context.Context, brandID string) ([]*brand.Product, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, brand_id, name, slug, description, default_seat_limit, status, created_at, updated_at
		FROM products
		WHERE brand_id = $1
		ORDER BY name
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*brand.Product
	for rows.Next() {
		var p brand.Product
		if err := rows.Scan(&p.ID, &p.BrandID, &p.Name, &p.Slug, &p.Description, &p.DefaultSeatLimit, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

// Update updates a product
func (r *ProductRepository) Update(ctx context.Context, p *brand.Product) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE products SET
			name = $2,
			description = $3,
			default_seat_limit = $4,
			status = $5,
			updated_at = $6
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.DefaultSeatLimit, p.Status, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.RowsAffected() == 0 {
		return brand.ErrProductNotFound
	}
	return nil
}
