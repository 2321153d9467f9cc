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
	"github.com/keyhaven/keyhaven/internal/license"
)

// LicenseKeyRepository implements license.KeyRepository
type LicenseKeyRepository struct {
	db *DB
}

// NewLicenseKeyRepository creates a new license key repository
func NewLicenseKeyRepository(db *DB) *LicenseKeyRepository {
	return &LicenseKeyRepository{db: db}
}

const licenseKeyColumns = `id, key, brand_id, customer_email, customer_name, status, created_at, updated_at`

func scanLicenseKey(row pgx.Row) (*license.LicenseKey, error) {
	var k license.LicenseKey
	err := row.Scan(&k.ID, &k.Key, &k.BrandID, &k.CustomerEmail, &k.CustomerName, &k.Status, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, license.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to scan license key: %w", err)
	}
	return &k, nil
}

// Create creates a new license key
func (r *LicenseKeyRepository) Create(ctx context.Context, k *license.LicenseKey) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO license_keys (id, key, brand_id, customer_email, customer_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, k.ID, k.Key, k.BrandID, k.CustomerEmail, k.CustomerName, k.Status, k.CreatedAt, k.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert license key: %w", err)
	}
	return nil
}

// GetByID retrieves a license key by ID
func (r *LicenseKeyRepository) GetByID(ctx context.Context, id string) (*license.LicenseKey, error) {
	row := r.db.pool.QueryRow(ctx,
		`SELECT `+licenseKeyColumns+` FROM license_keys WHERE id = $1`, id)
	return scanLicenseKey(row)
}

// GetByKey retrieves a license key by its key string
func (r *LicenseKeyRepository) GetByKey(ctx context.Context, key string) (*license.LicenseKey, error) {
	row := r.db.pool.QueryRow(ctx,
		`SELECT `+licenseKeyColumns+` FROM license_keys WHERE key = $1`, key)
	return scanLicenseKey(row)
}

// ListByBrand lists all license keys of a brand
func (r *LicenseKeyRepository) ListByBrand(ctx context.Context, brandID string) ([]*license.LicenseKey, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+licenseKeyColumns+` FROM license_keys WHERE brand_id = $1 ORDER BY created_at DESC`, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list license keys: %w", err)
	}
	defer rows.Close()
	return collectLicenseKeys(rows)
}

// ListByEmail lists license keys by customer email across all brands,
// ordered by creation time.
func (r *LicenseKeyRepository) ListByEmail(ctx context.Context, email string) ([]*license.LicenseKey, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+licenseKeyColumns+` FROM license_keys WHERE customer_email = $1 ORDER BY created_at`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list license keys: %w", err)
	}
	defer rows.Close()
	return collectLicenseKeys(rows)
}

func collectLicenseKeys(rows pgx.Rows) ([]*license.LicenseKey, error) {
	var keys []*license.LicenseKey
	for rows.Next() {
		var k license.LicenseKey
		if err := rows.Scan(&k.ID, &k.Key, &k.BrandID, &k.CustomerEmail, &k.CustomerName, &k.Status, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan license key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// Update updates a license key
func (r *LicenseKeyRepository) Update(ctx context.Context, k *license.LicenseKey) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE license_keys SET
			customer_email = $2,
			customer_name = $3,
			status = $4,
			updated_at = $5
		WHERE id = $1
	`, k.ID, k.CustomerEmail, k.CustomerName, k.Status, k.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update license key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return license.ErrKeyNotFound
	}
	return nil
}
