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

	"github.com/keyhaven/keyhaven/internal/brand"
)

// Lookup aggregates a customer's license keys across ALL brands. The
// cross-brand scan is deliberate: support staff need the full picture of
// what a customer holds in the ecosystem. It is read-only and kept as a
// separate type so every brand-scoped query path elsewhere stays
// auditable for its scoping.
type Lookup struct {
	keys        KeyRepository
	licenses    Repository
	activations ActivationRepository
	products    brand.ProductRepository
	brands      brand.Repository
	now         func() time.Time
}

// NewLookup creates a new cross-brand customer lookup
func NewLookup(keys KeyRepository, licenses Repository, activations ActivationRepository, products brand.ProductRepository, brands brand.Repository) *Lookup {
	return &Lookup{
		keys:        keys,
		licenses:    licenses,
		activations: activations,
		products:    products,
		brands:      brands,
		now:         time.Now,
	}
}

// WithClock overrides the lookup clock. Intended for tests.
func (l *Lookup) WithClock(now func() time.Time) *Lookup {
	l.now = now
	return l
}

// FindByEmail returns every license key held by a customer email,
// across all brands, ordered by key creation time. An unknown email
// yields an empty result, not an error.
func (l *Lookup) FindByEmail(ctx context.Context, email string) ([]CustomerHolding, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	keys, err := l.keys.ListByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	now := l.now()
	holdings := make([]CustomerHolding, 0, len(keys))
	for _, k := range keys {
		b, err := l.brands.GetByID(ctx, k.BrandID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve brand %s: %w", k.BrandID, err)
		}

		licenses, err := l.licenses.ListByKey(ctx, k.ID)
		if err != nil {
			return nil, err
		}

		reports := make([]LicenseReport, 0, len(licenses))
		for _, lic := range licenses {
			p, err := l.products.GetByID(ctx, lic.ProductID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve product %s: %w", lic.ProductID, err)
			}
			used, err := l.activations.CountActive(ctx, lic.ID)
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
		}

		holdings = append(holdings, CustomerHolding{
			Brand:    b,
			Key:      k,
			Licenses: reports,
		})
	}

	return holdings, nil
}
