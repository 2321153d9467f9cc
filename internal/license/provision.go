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

package license

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/keyhaven/keyhaven/internal/audit"
	"github.com/keyhaven/keyhaven/internal/brand"
	"github.com/keyhaven/keyhaven/internal/id"
)

const keyTokenBytes = 32

// Service provisions license keys and product licenses and applies
// lifecycle transitions to them. Transitions for one license are
// serialized against each other; the seat ledger keeps its own lock.
type Service struct {
	keys        KeyRepository
	licenses    Repository
	activations ActivationRepository
	products    brand.ProductRepository
	auditLogger audit.Logger
	now         func() time.Time
	locks       *keyedMutex
}

// NewService creates a new provisioning and lifecycle service
func NewService(keys KeyRepository, licenses Repository, activations ActivationRepository, products brand.ProductRepository, auditLogger audit.Logger) *Service {
	return &Service{
		keys:        keys,
		licenses:    licenses,
		activations: activations,
		products:    products,
		auditLogger: auditLogger,
		now:         time.Now,
		locks:       newKeyedMutex(),
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateLicenseKey issues a new key for a customer. Keys are generated
// server-side and are not guessable; a customer may hold any number of
// keys within a brand.
func (s *Service) CreateLicenseKey(ctx context.Context, brandID, customerEmail, customerName string) (*LicenseKey, error) {
	if customerEmail == "" {
		return nil, fmt.Errorf("customer email is required")
	}

	token, err := id.NewToken(keyTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate license key: %w", err)
	}

	now := s.now()
	k := &LicenseKey{
		ID:            id.NewUUIDv7(),
		Key:           token,
		BrandID:       brandID,
		CustomerEmail: strings.ToLower(customerEmail),
		CustomerName:  customerName,
		Status:        KeyStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.keys.Create(ctx, k); err != nil {
		return nil, fmt.Errorf("failed to create license key: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeKeyCreated,
		BrandID:  brandID,
		Resource: k.Prefix(),
		Metadata: map[string]any{"customer_email": k.CustomerEmail},
	})

	return k, nil
}

// AttachLicense attaches a product license to an existing key. The
// product must belong to the same brand as the key; at most one license
// per product may exist on a key. A zero seatLimit falls back to the
// product's default, and a nil expiresAt means the license never
// expires.
func (s *Service) AttachLicense(ctx context.Context, keyID, productID string, seatLimit *int, expiresAt *time.Time) (*License, error) {
	k, err := s.keys.GetByID(ctx, keyID)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, ErrProductNotFound
	}

	if p.BrandID != k.BrandID {
		return nil, ErrTenantMismatch
	}

	if _, err := s.licenses.GetByKeyAndProduct(ctx, k.ID, p.ID); err == nil {
		return nil, ErrLicenseExists
	}

	limit := p.DefaultSeatLimit
	if seatLimit != nil {
		if *seatLimit < 0 {
			return nil, fmt.Errorf("seat limit must not be negative")
		}
		limit = *seatLimit
	}

	now := s.now()
	lic := &License{
		ID:           id.NewUUIDv7(),
		LicenseKeyID: k.ID,
		ProductID:    p.ID,
		State:        StateValid,
		ExpiresAt:    expiresAt,
		SeatLimit:    limit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.licenses.Create(ctx, lic); err != nil {
		return nil, fmt.Errorf("failed to create license: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLicenseAttached,
		BrandID:  k.BrandID,
		Resource: lic.ID,
		Metadata: map[string]any{"product_slug": p.Slug},
	})

	return lic, nil
}

// GetKey retrieves a key by its customer-facing token, scoped to a brand
func (s *Service) GetKey(ctx context.Context, brandID, key string) (*LicenseKey, error) {
	k, err := s.keys.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if k.BrandID != brandID {
		return nil, ErrKeyNotFound
	}
	return k, nil
}

// ListKeys lists all license keys of a brand
func (s *Service) ListKeys(ctx context.Context, brandID string) ([]*LicenseKey, error) {
	return s.keys.ListByBrand(ctx, brandID)
}

// GetLicense retrieves a license by ID, scoped to a brand
func (s *Service) GetLicense(ctx context.Context, brandID, licenseID string) (*License, error) {
	lic, err := s.licenses.GetByID(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	k, err := s.keys.GetByID(ctx, lic.LicenseKeyID)
	if err != nil {
		return nil, err
	}
	if k.BrandID != brandID {
		return nil, ErrLicenseNotFound
	}
	return lic, nil
}

// ListLicenses lists all licenses attached to a key
func (s *Service) ListLicenses(ctx context.Context, keyID string) ([]*License, error) {
	return s.licenses.ListByKey(ctx, keyID)
}

// DescribeKey returns a key's licenses with their effective status and
// current active activations. Unlike the product surface, this works on
// revoked keys too; brands need to inspect what they revoked.
func (s *Service) DescribeKey(ctx context.Context, brandID, key string) (*StatusReport, error) {
	k, err := s.GetKey(ctx, brandID, key)
	if err != nil {
		return nil, err
	}

	licenses, err := s.licenses.ListByKey(ctx, k.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	reports := []LicenseReport{}
	activations := []*Activation{}
	for _, lic := range licenses {
		p, err := s.products.GetByID(ctx, lic.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve product %s: %w", lic.ProductID, err)
		}
		used, err := s.activations.CountActive(ctx, lic.ID)
		if err != nil {
			return nil, err
		}
		reports = append(reports, LicenseReport{
			License:   lic,
			Product:   p,
			Status:    Resolve(lic, now),
			SeatsUsed: used,
			SeatLimit: lic.SeatLimit,
		})

		active, err := s.activations.ListActiveByLicense(ctx, lic.ID)
		if err != nil {
			return nil, err
		}
		activations = append(activations, active...)
	}

	return &StatusReport{
		Key:         k,
		Licenses:    reports,
		Activations: activations,
	}, nil
}

// RevokeKey marks a key revoked. Revoked keys stop resolving on the
// product surface; the licenses underneath keep their stored state.
func (s *Service) RevokeKey(ctx context.Context, brandID, key string) (*LicenseKey, error) {
	k, err := s.GetKey(ctx, brandID, key)
	if err != nil {
		return nil, err
	}

	if k.Status == KeyStatusRevoked {
		return k, nil
	}

	k.Status = KeyStatusRevoked
	k.UpdatedAt = s.now()
	if err := s.keys.Update(ctx, k); err != nil {
		return nil, fmt.Errorf("failed to revoke key: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeKeyRevoked,
		BrandID:  brandID,
		Resource: k.Prefix(),
	})

	return k, nil
}
