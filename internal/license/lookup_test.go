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
	"testing"
	"time"

	"github.com/keyhaven/keyhaven/internal/audit"
	"github.com/keyhaven/keyhaven/internal/brand"
	"github.com/keyhaven/keyhaven/internal/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates the cross-brand customer lookup: one email surfaces
// keys from every brand, in key creation order, with per-license status.
// Scope: Unit Test
// Security: The one deliberately unscoped read path; everything it returns
// must still be accurate
// Expected: Holdings from both brands in creation order; unknown emails yield
// an empty result; lookup is case-insensitive.
// Test Case ID: LKP-01
func TestLicense_Lookup_FindByEmail(t *testing.T) {
	w := newTestWorld(t)
	ctx := context.Background()

	// Second brand with its own product.
	now := time.Now()
	other := &brand.Brand{
		ID:        id.NewUUIDv7(),
		Name:      "Borealis Soft",
		Slug:      "borealis",
		Status:    brand.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, w.brands.Create(ctx, other))
	otherProduct := &brand.Product{
		ID:               id.NewUUIDv7(),
		BrandID:          other.ID,
		Name:             "Borealis Render",
		Slug:             "render",
		DefaultSeatLimit: 1,
		Status:           brand.StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, w.products.Create(ctx, otherProduct))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	s := NewService(w.keys, w.licenses, w.activations, w.products, audit.NewSlogLogger()).
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		})

	k1, err := s.CreateLicenseKey(ctx, w.brand.ID, "ada@example.com", "")
	require.NoError(t, err)
	_, err = s.AttachLicense(ctx, k1.ID, w.product.ID, nil, nil)
	require.NoError(t, err)

	k2, err := s.CreateLicenseKey(ctx, other.ID, "ada@example.com", "")
	require.NoError(t, err)
	_, err = s.AttachLicense(ctx, k2.ID, otherProduct.ID, nil, nil)
	require.NoError(t, err)

	// Noise: a different customer.
	_, err = s.CreateLicenseKey(ctx, w.brand.ID, "grace@example.com", "")
	require.NoError(t, err)

	lookup := NewLookup(w.keys, w.licenses, w.activations, w.products, w.brands)

	holdings, err := lookup.FindByEmail(ctx, "Ada@Example.com")
	require.NoError(t, err)
	require.Len(t, holdings, 2, "keys from every brand must surface")

	// Creation order is stable.
	assert.Equal(t, k1.ID, holdings[0].Key.ID)
	assert.Equal(t, k2.ID, holdings[1].Key.ID)
	assert.Equal(t, "Acme Tools", holdings[0].Brand.Name)
	assert.Equal(t, "Borealis Soft", holdings[1].Brand.Name)

	require.Len(t, holdings[0].Licenses, 1)
	assert.Equal(t, StatusValid, holdings[0].Licenses[0].Status)
	assert.Equal(t, "acme-cad", holdings[0].Licenses[0].Product.Slug)

	// Unknown email is an empty answer, not an error.
	empty, err := lookup.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = lookup.FindByEmail(ctx, "")
	assert.Error(t, err)
}

// TestPurpose: Validates that lookup reports live seat usage and effective
// status, not stored snapshots.
// Scope: Unit Test
// Security: Support staff decisions depend on current truth
// Expected: Seat usage reflects the ledger and expiry shows as expired.
// Test Case ID: LKP-02
func TestLicense_Lookup_LiveStatus(t *testing.T) {
	w := newTestWorld(t)
	s := newProvisionService(w)
	ledger := newTestLedger(w)
	ctx := context.Background()

	k, err := s.CreateLicenseKey(ctx, w.brand.ID, "ada@example.com", "")
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	_, err = s.AttachLicense(ctx, k.ID, w.product.ID, nil, &past)
	require.NoError(t, err)

	cam := w.addProduct("Acme CAM", "acme-cam", 2)
	_, err = s.AttachLicense(ctx, k.ID, cam.ID, nil, nil)
	require.NoError(t, err)
	_, err = ledger.Activate(ctx, k.Key, "acme-cam", "host-1", "", nil)
	require.NoError(t, err)

	lookup := NewLookup(w.keys, w.licenses, w.activations, w.products, w.brands)
	holdings, err := lookup.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	require.Len(t, holdings[0].Licenses, 2)

	byslug := map[string]LicenseReport{}
	for _, r := range holdings[0].Licenses {
		byslug[r.Product.Slug] = r
	}
	assert.Equal(t, StatusExpired, byslug["acme-cad"].Status)
	assert.Equal(t, StatusValid, byslug["acme-cam"].Status)
	assert.Equal(t, 1, byslug["acme-cam"].SeatsUsed)
}
