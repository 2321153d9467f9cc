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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/keyhaven/keyhaven/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(w *testWorld) *Ledger {
	return NewLedger(w.keys, w.licenses, w.activations, w.products, w.brands, audit.NewSlogLogger(), nil)
}

// TestPurpose: Validates seat activation: consuming a seat, idempotent
// re-activation for the same instance, and seat accounting.
// Scope: Unit Test
// Security: Seat counting is the billable unit; it must not drift
// Expected: First activation consumes a seat, repeating it does not, and the
// reported usage matches the ledger.
// Test Case ID: LED-01
func TestLicense_Ledger_Activate_Idempotent(t *testing.T) {
	w := newTestWorld(t)
	s := newProvisionService(w)
	ledger := newTestLedger(w)
	ctx := context.Background()

	k, _ := seedLicense(t, w, s)

	first, err := ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "Workstation", map[string]any{"os": "linux"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.SeatsUsed)
	assert.True(t, first.Activation.Active)

	// Same instance again: same row, same seat.
	second, err := ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, first.Activation.ID, second.Activation.ID)
	assert.Equal(t, 1, second.SeatsUsed)

	// A different instance takes another seat.
	third, err := ledger.Activate(ctx, k.Key, w.product.Slug, "host-2", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, third.SeatsUsed)

	_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "", "", nil)
	assert.Error(t, err, "missing instance id must be rejected")
}

// TestPurpose: Validates seat limit enforcement at the boundary and the
// release/reuse cycle of activation rows.
// Scope: Unit Test
// Security: A brand's seat limit is a hard entitlement boundary
// Expected: Activation past the limit fails with seat_limit_exceeded; after a
// release the freed seat is claimable; a returning instance reuses its row.
// Test Case ID: LED-02
func TestLicense_Ledger_SeatLimit(t *testing.T) {
	w := newTestWorld(t)
	s := newProvisionService(w)
	ledger := newTestLedger(w)
	ctx := context.Background()

	k, err := s.CreateLicenseKey(ctx, w.brand.ID, "ada@example.com", "")
	require.NoError(t, err)
	limit := 2
	_, err = s.AttachLicense(ctx, k.ID, w.product.ID, &limit, nil)
	require.NoError(t, err)

	first, err := ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "", nil)
	require.NoError(t, err)
	_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "host-2", "", nil)
	require.NoError(t, err)

	_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "host-3", "", nil)
	require.Error(t, err)
	assert.Equal(t, CodeSeatLimitExceeded, CodeOf(err))

	// An instance already holding a seat is unaffected by the full ledger.
	again, err := ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, again.SeatsUsed)

	// Releasing frees the seat for the waiting instance.
	require.NoError(t, ledger.Deactivate(ctx, k.Key, w.product.Slug, "host-2"))
	res, err := ledger.Activate(ctx, k.Key, w.product.Slug, "host-3", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SeatsUsed)

	// A returning instance reuses its released row instead of a new one.
	require.NoError(t, ledger.Deactivate(ctx, k.Key, w.product.Slug, "host-1"))
	back, err := ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, first.Activation.ID, back.Activation.ID)
	assert.True(t, back.Activation.Active)
	assert.Nil(t, back.Activation.DeactivatedAt)
}

// TestPurpose: Validates that a seat limit of zero means unlimited.
// Scope: Unit Test
// Security: Entitlement interpretation of the zero value
// Expected: Many instances activate without hitting any limit.
// Test Case ID: LED-03
func TestLicense_Ledger_UnlimitedSeats(t *testing.T) {
	w := newTestWorld(t)
	s := newProvisionService(w)
	ledger := newTestLedger(w)
	ctx := context.Background()

	k, err := s.CreateLicenseKey(ctx, w.brand.ID, "ada@example.com", "")
	require.NoError(t, err)
	unlimited := 0
	_, err = s.AttachLicense(ctx, k.ID, w.product.ID, &unlimited, nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := ledger.Activate(ctx, k.Key, w.product.Slug, fmt.Sprintf("host-%d", i), "", nil)
		require.NoError(t, err)
	}
}

// TestPurpose: Validates that releasing a seat is not idempotent and that
// unknown instances are rejected.
// Scope: Unit Test
// Security: Callers must learn when a release did nothing
// Expected: Second deactivate and deactivate of an unknown instance both fail
// with activation_not_found.
// Test Case ID: LED-04
func TestLicense_Ledger_Deactivate_NotIdempotent(t *testing.T) {
	w := newTestWorld(t)
	s := newProvisionService(w)
	ledger := newTestLedger(w)
	ctx := context.Background()

	k, _ := seedLicense(t, w, s)
	_, err := ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "", nil)
	require.NoError(t, err)

	require.NoError(t, ledger.Deactivate(ctx, k.Key, w.product.Slug, "host-1"))

	err = ledger.Deactivate(ctx, k.Key, w.product.Slug, "host-1")
	assert.True(t, errors.Is(err, ErrActivationNotFound))

	err = ledger.Deactivate(ctx, k.Key, w.product.Slug, "never-activated")
	assert.True(t, errors.Is(err, ErrActivationNotFound))
}

// TestPurpose: Validates that only effectively valid licenses accept
// activations: suspended, cancelled and expired all refuse with the effective
// status in the message.
// Scope: Unit Test
// Security: Enforcement levers must bite on the product surface
// Expected: license_invalid carrying the effective status; revoked keys and
// unknown slugs are not found.
// Test Case ID: LED-05
func TestLicense_Ledger_Activate_InvalidStates(t *testing.T) {
	ctx := context.Background()

	t.Run("suspended", func(t *testing.T) {
		w := newTestWorld(t)
		s := newProvisionService(w)
		ledger := newTestLedger(w)
		k, lic := seedLicense(t, w, s)
		_, err := s.Suspend(ctx, w.brand.ID, lic.ID)
		require.NoError(t, err)

		_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "", nil)
		require.Error(t, err)
		assert.Equal(t, CodeLicenseInvalid, CodeOf(err))
		assert.Contains(t, err.Error(), "suspended")
	})

	t.Run("cancelled", func(t *testing.T) {
		w := newTestWorld(t)
		s := newProvisionService(w)
		ledger := newTestLedger(w)
		k, lic := seedLicense(t, w, s)
		_, err := s.Cancel(ctx, w.brand.ID, lic.ID)
		require.NoError(t, err)

		_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "", nil)
		require.Error(t, err)
		assert.Equal(t, CodeLicenseInvalid, CodeOf(err))
		assert.Contains(t, err.Error(), "cancelled")
	})

	t.Run("expired", func(t *testing.T) {
		w := newTestWorld(t)
		s := newProvisionService(w)
		ledger := newTestLedger(w)
		k, err := s.CreateLicenseKey(ctx, w.brand.ID, "ada@example.com", "")
		require.NoError(t, err)
		past := time.Now().Add(-time.Hour)
		_, err = s.AttachLicense(ctx, k.ID, w.product.ID, nil, &past)
		require.NoError(t, err)

		_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "", nil)
		require.Error(t, err)
		assert.Equal(t, CodeLicenseInvalid, CodeOf(err))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("revoked key", func(t *testing.T) {
		w := newTestWorld(t)
		s := newProvisionService(w)
		ledger := newTestLedger(w)
		k, _ := seedLicense(t, w, s)
		_, err := s.RevokeKey(ctx, w.brand.ID, k.Key)
		require.NoError(t, err)

		_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "", nil)
		assert.True(t, errors.Is(err, ErrKeyNotFound),
			"revoked keys must be indistinguishable from unknown ones")
	})

	t.Run("unknown product slug", func(t *testing.T) {
		w := newTestWorld(t)
		s := newProvisionService(w)
		ledger := newTestLedger(w)
		k, _ := seedLicense(t, w, s)

		_, err := ledger.Activate(ctx, k.Key, "no-such-product", "host-1", "", nil)
		require.Error(t, err)
		assert.Equal(t, CodeLicenseNotFound, CodeOf(err))
	})

	t.Run("disabled product does not resolve", func(t *testing.T) {
		w := newTestWorld(t)
		s := newProvisionService(w)
		ledger := newTestLedger(w)
		k, _ := seedLicense(t, w, s)

		p, err := w.products.GetByID(ctx, w.product.ID)
		require.NoError(t, err)
		p.Status = "inactive"
		require.NoError(t, w.products.Update(ctx, p))

		_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "", nil)
		require.Error(t, err)
		assert.Equal(t, CodeLicenseNotFound, CodeOf(err))
	})
}

// TestPurpose: Validates that the seat check and the activation write run as
// one atomic step: concurrent activations near the boundary cannot both pass
// the count.
// Scope: Unit Test (concurrency)
// Security: Seat limits must hold under race
// Expected: With one seat and many racing instances, exactly one wins.
// Test Case ID: LED-06
func TestLicense_Ledger_Activate_Concurrent(t *testing.T) {
	w := newTestWorld(t)
	s := newProvisionService(w)
	ledger := newTestLedger(w)
	ctx := context.Background()

	k, err := s.CreateLicenseKey(ctx, w.brand.ID, "ada@example.com", "")
	require.NoError(t, err)
	limit := 1
	_, err = s.AttachLicense(ctx, k.ID, w.product.ID, &limit, nil)
	require.NoError(t, err)

	const racers = 16
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Activate(ctx, k.Key, w.product.Slug, fmt.Sprintf("host-%d", i), "", nil)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.Equal(t, CodeSeatLimitExceeded, CodeOf(err))
		}
	}
	assert.Equal(t, 1, wins, "exactly one racer may take the last seat")

	used, err := w.activations.CountActive(ctx, mustLicenseID(t, w, k))
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func mustLicenseID(t *testing.T, w *testWorld, k *LicenseKey) string {
	t.Helper()
	licenses, err := w.licenses.ListByKey(context.Background(), k.ID)
	require.NoError(t, err)
	require.Len(t, licenses, 1)
	return licenses[0].ID
}

// TestPurpose: Validates the read-only validate call: per-license effective
// status, the aggregate valid flag, product narrowing and per-instance
// validity.
// Scope: Unit Test
// Security: Validation must never consume a seat
// Expected: Reports match the ledger, seat usage is unchanged by validation,
// and valid_for_instance reflects actual seat holding.
// Test Case ID: LED-07
func TestLicense_Ledger_Validate(t *testing.T) {
	w := newTestWorld(t)
	s := newProvisionService(w)
	ledger := newTestLedger(w)
	ctx := context.Background()

	k, _ := seedLicense(t, w, s)
	cam := w.addProduct("Acme CAM", "acme-cam", 1)
	camLic, err := s.AttachLicense(ctx, k.ID, cam.ID, nil, nil)
	require.NoError(t, err)
	_, err = s.Suspend(ctx, w.brand.ID, camLic.ID)
	require.NoError(t, err)

	_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "", nil)
	require.NoError(t, err)

	report, err := ledger.Validate(ctx, k.Key, "", "")
	require.NoError(t, err)
	assert.True(t, report.Valid, "one valid license makes the key valid")
	require.Len(t, report.Licenses, 2)

	byuse := map[string]LicenseReport{}
	for _, r := range report.Licenses {
		byuse[r.Product.Slug] = r
	}
	assert.Equal(t, StatusValid, byuse["acme-cad"].Status)
	assert.Equal(t, 1, byuse["acme-cad"].SeatsUsed)
	assert.Equal(t, StatusSuspended, byuse["acme-cam"].Status)

	// Narrowed to the suspended product only, the key is not valid.
	narrowed, err := ledger.Validate(ctx, k.Key, "acme-cam", "")
	require.NoError(t, err)
	assert.False(t, narrowed.Valid)
	require.Len(t, narrowed.Licenses, 1)

	// Per-instance validity requires actually holding a seat.
	held, err := ledger.Validate(ctx, k.Key, "acme-cad", "host-1")
	require.NoError(t, err)
	require.NotNil(t, held.Licenses[0].ValidForInstance)
	assert.True(t, *held.Licenses[0].ValidForInstance)

	notHeld, err := ledger.Validate(ctx, k.Key, "acme-cad", "host-2")
	require.NoError(t, err)
	require.NotNil(t, notHeld.Licenses[0].ValidForInstance)
	assert.False(t, *notHeld.Licenses[0].ValidForInstance)

	// Validation never consumes a seat.
	used, err := w.activations.CountActive(ctx, byuse["acme-cad"].License.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, used)

	// Unknown keys are not found.
	_, err = ledger.Validate(ctx, "no-such-key", "", "")
	assert.True(t, errors.Is(err, ErrKeyNotFound))
}

// TestPurpose: Validates the full status report: every license plus all
// currently active activations.
// Scope: Unit Test
// Security: Brand support surface must see exact seat holdings
// Expected: Activations listed for active seats only.
// Test Case ID: LED-08
func TestLicense_Ledger_Status(t *testing.T) {
	w := newTestWorld(t)
	s := newProvisionService(w)
	ledger := newTestLedger(w)
	ctx := context.Background()

	k, _ := seedLicense(t, w, s)
	_, err := ledger.Activate(ctx, k.Key, w.product.Slug, "host-1", "", nil)
	require.NoError(t, err)
	_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "host-2", "", nil)
	require.NoError(t, err)
	require.NoError(t, ledger.Deactivate(ctx, k.Key, w.product.Slug, "host-1"))

	report, err := ledger.Status(ctx, k.Key)
	require.NoError(t, err)
	require.Len(t, report.Licenses, 1)
	assert.Equal(t, 1, report.Licenses[0].SeatsUsed)
	require.Len(t, report.Activations, 1)
	assert.Equal(t, "host-2", report.Activations[0].InstanceID)
}

// TestPurpose: Validates the complete seat lifecycle end to end: issue,
// attach, activate to the limit, release, reactivate, suspend, cancel.
// Scope: Integration-style unit test
// Security: The full entitlement story must hold together
// Expected: Each step observes the state left by the previous one.
// Test Case ID: LED-09
func TestLicense_Ledger_FullLifecycle(t *testing.T) {
	w := newTestWorld(t)
	s := newProvisionService(w)
	ledger := newTestLedger(w)
	ctx := context.Background()

	k, err := s.CreateLicenseKey(ctx, w.brand.ID, "ada@example.com", "Ada Lovelace")
	require.NoError(t, err)
	limit := 2
	lic, err := s.AttachLicense(ctx, k.ID, w.product.ID, &limit, nil)
	require.NoError(t, err)

	// Fill both seats.
	_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "laptop", "", nil)
	require.NoError(t, err)
	_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "desktop", "", nil)
	require.NoError(t, err)

	// Third device is refused until a seat frees up.
	_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "tablet", "", nil)
	assert.Equal(t, CodeSeatLimitExceeded, CodeOf(err))
	require.NoError(t, ledger.Deactivate(ctx, k.Key, w.product.Slug, "laptop"))
	_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "tablet", "", nil)
	require.NoError(t, err)

	// Suspension blocks new seats but keeps the report honest.
	_, err = s.Suspend(ctx, w.brand.ID, lic.ID)
	require.NoError(t, err)
	_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "laptop", "", nil)
	assert.Equal(t, CodeLicenseInvalid, CodeOf(err))
	report, err := ledger.Validate(ctx, k.Key, "", "")
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, 2, report.Licenses[0].SeatsUsed)

	// Resume restores activations, cancel ends them for good.
	_, err = s.Resume(ctx, w.brand.ID, lic.ID)
	require.NoError(t, err)
	_, err = s.Cancel(ctx, w.brand.ID, lic.ID)
	require.NoError(t, err)
	_, err = ledger.Activate(ctx, k.Key, w.product.Slug, "laptop", "", nil)
	assert.Equal(t, CodeLicenseInvalid, CodeOf(err))
}

// TestPurpose: Validates that a key holding no licenses is inspectable, not
// an error: validate and status report empty holdings.
// Scope: Unit Test
// Security: Freshly issued keys must be safe to probe before fulfillment
// Expected: Validate succeeds with no licenses and Valid false, including
// when narrowed to a slug the key holds nothing for; Status reports empty.
// Test Case ID: LED-10
func TestLicense_Ledger_KeyWithoutLicenses(t *testing.T) {
	w := newTestWorld(t)
	s := newProvisionService(w)
	ledger := newTestLedger(w)
	ctx := context.Background()

	k, err := s.CreateLicenseKey(ctx, w.brand.ID, "ada@example.com", "")
	require.NoError(t, err)

	report, err := ledger.Validate(ctx, k.Key, "", "")
	require.NoError(t, err)
	assert.False(t, report.Valid, "a key with no licenses is not valid")
	assert.Empty(t, report.Licenses)

	// Narrowing to a slug the key holds nothing for reports empty too.
	narrowed, err := ledger.Validate(ctx, k.Key, w.product.Slug, "")
	require.NoError(t, err)
	assert.False(t, narrowed.Valid)
	assert.Empty(t, narrowed.Licenses)

	status, err := ledger.Status(ctx, k.Key)
	require.NoError(t, err)
	assert.Empty(t, status.Licenses)
	assert.Empty(t, status.Activations)
}
