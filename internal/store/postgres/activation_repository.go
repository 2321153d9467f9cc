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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/keyhaven/keyhaven/internal/license"
)

// ActivationRepository implements license.ActivationRepository
type ActivationRepository struct {
	db *DB
}

// NewActivationRepository creates a new activation repository
func NewActivationRepository(db *DB) *ActivationRepository {
	return &ActivationRepository{db: db}
}

const activationColumns = `id, license_id, instance_id, instance_name, metadata, active, activated_at, deactivated_at, last_check_at`

func scanActivation(row pgx.Row) (*license.Activation, error) {
	var a license.Activation
	var metadata []byte
	err := row.Scan(&a.ID, &a.LicenseID, &a.InstanceID, &a.InstanceName, &metadata, &a.Active, &a.ActivatedAt, &a.DeactivatedAt, &a.LastCheckAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, license.ErrActivationNotFound
		}
		return nil, fmt.Errorf("failed to scan activation: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activation metadata: %w", err)
		}
	}
	return &a, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activation metadata: %w", err)
	}
	return data, nil
}

// Create creates a new activation
func (r *ActivationRepository) Create(ctx context.Context, a *license.Activation) error {
	metadata, err := marshalMetadata(a.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO activations (id, license_id, instance_id, instance_name, metadata, active, activated_at, deactivated_at, last_check_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.LicenseID, a.InstanceID, a.InstanceName, metadata, a.Active, a.ActivatedAt, a.DeactivatedAt, a.LastCheckAt)
	if err != nil {
		return fmt.Errorf("failed to insert activation: %w", err)
	}
	return nil
}

// GetByInstance retrieves the activation row for a (license, instance)
// pair, whether active or not
func (r *ActivationRepository) GetByInstance(ctx context.Context, licenseID, instanceID string) (*license.Activation, error) {
	row := r.db.pool.QueryRow(ctx,
		`SELECT `+activationColumns+` FROM activations WHERE license_id = $1 AND instance_id = $2`, licenseID, instanceID)
	return scanActivation(row)
}

// ListActiveByLicense lists the active activations of a license
func (r *ActivationRepository) ListActiveByLicense(ctx context.Context, licenseID string) ([]*license.Activation, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+activationColumns+` FROM activations WHERE license_id = $1 AND active ORDER BY activated_at`, licenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activations: %w", err)
	}
	defer rows.Close()

	var activations []*license.Activation
	for rows.Next() {
		var a license.Activation
		var metadata []byte
		if err := rows.Scan(&a.ID, &a.LicenseID, &a.InstanceID, &a.InstanceName, &metadata, &a.Active, &a.ActivatedAt, &a.DeactivatedAt, &a.LastCheckAt); err != nil {
			return nil, fmt.Errorf("failed to scan activation: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activation metadata: %w", err)
			}
		}
		activations = append(activations, &a)
	}
	return activations, rows.Err()
}

// CountActive counts the active activations of a license
func (r *ActivationRepository) CountActive(ctx context.Context, licenseID string) (int, error) {
	var count int
	err := r.db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM activations WHERE license_id = $1 AND active`, licenseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count activations: %w", err)
	}
	return count, nil
}

// Update updates an activation
func (r *ActivationRepository) Update(ctx context.Context, a *license.Activation) error {
	metadata, err := marshalMetadata(a.Metadata)
	if err != nil {
		return err
	}
	result, err := r.db.pool.Exec(ctx, `
		UPDATE activations SET
			instance_name = $2,
			metadata = $3,
			active = $4,
			activated_at = $5,
			deactivated_at = $6,
			last_check_at = $7
		WHERE id = $1
	`, a.ID, a.InstanceName, metadata, a.Active, a.ActivatedAt, a.DeactivatedAt, a.LastCheckAt)
	if err != nil {
		return fmt.Errorf("failed to update activation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return license.ErrActivationNotFound
	}
	return nil
}

// TouchCheck records a license check from an instance
func (r *ActivationRepository) TouchCheck(ctx context.Context, licenseID, instanceID string, at time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE activations SET last_check_at = $3
		WHERE license_id = $1 AND instance_id = $2
	`, licenseID, instanceID, at)
	if err != nil {
		return fmt.Errorf("failed to record license check: %w", err)
	}
	if result.RowsAffected() == 0 {
		return license.ErrActivationNotFound
	}
	return nil
}
