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

// LicenseRepository implements license.Repository
type LicenseRepository struct {
	db *DB
}

// NewLicenseRepository creates a new license repository
func NewLicenseRepository(db *DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

const licenseColumns = `id, license_key_id, product_id, state, expires_at, seat_limit, created_at, updated_at`

func scanLicense(row pgx.Row) (*license.License, error) {
	var lic license.License
	err := row.Scan(&lic.ID, &lic.LicenseKeyID, &lic.ProductID, &lic.State, &lic.ExpiresAt, &lic.SeatLimit, &lic.CreatedAt, &lic.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, license.ErrLicenseNotFound
		}
		return nil, fmt.Errorf("failed to scan license: %w", err)
	}
	return &lic, nil
}

// Create creates a new license
func (r *LicenseRepository) Create(ctx context.Context, lic *license.License) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO licenses (id, license_key_id, product_id, state, expires_at, seat_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, lic.ID, lic.LicenseKeyID, lic.ProductID, lic.State, lic.ExpiresAt, lic.SeatLimit, lic.CreatedAt, lic.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert license: %w", err)
	}
	return nil
}

// GetByID retrieves a license by ID
func (r *LicenseRepository) GetByID(ctx context.Context, id string) (*license.License, error) {
	row := r.db.pool.QueryRow(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE id = $1`, id)
	return scanLicense(row)
}

// GetByKeyAndProduct retrieves the license for a (key, product) pair
func (r *LicenseRepository) GetByKeyAndProduct(ctx context.Context, keyID, productID string) (*license.License, error) {
	row := r.db.pool.QueryRow(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE license_key_id = $1 AND product_id = $2`, keyID, productID)
	return scanLicense(row)
}

// ListByKey lists all licenses attached to a license key
func (r *LicenseRepository) ListByKey(ctx context.Context, keyID string) ([]*license.License, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE license_key_id = $1 ORDER BY created_at`, keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []*license.License
	for rows.Next() {
		var lic license.License
		if err := rows.Scan(&lic.ID, &lic.LicenseKeyID, &lic.ProductID, &lic.State, &lic.ExpiresAt, &lic.SeatLimit, &lic.CreatedAt, &lic.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan license: %w", err)
		}
		licenses = append(licenses, &lic)
	}
	return licenses, rows.Err()
}

// Update updates a license
func (r *LicenseRepository) Update(ctx context.Context, lic *license.License) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE licenses SET
			state = $2,
			expires_at = $3,
			seat_limit = $4,
			updated_at = $5
		WHERE id = $1
	`, lic.ID, lic.State, lic.ExpiresAt, lic.SeatLimit, lic.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update license: %w", err)
	}
	if result.RowsAffected() == 0 {
		return license.ErrLicenseNotFound
	}
	return nil
}
