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
	"log/slog"
	"time"

	"github.com/keyhaven/keyhaven/internal/audit"
	"github.com/keyhaven/keyhaven/internal/brand"
	"github.com/keyhaven/keyhaven/internal/id"
	"github.com/keyhaven/keyhaven/internal/observability/logger"
)

// Ledger tracks seat consumption on licenses. It is the only writer of
// activation rows and the only component allowed to run the seat
// count-then-act sequence; that sequence is serialized per license.
type Ledger struct {
	keys        KeyRepository
	licenses    Repository
	activations ActivationRepository
	products    brand.ProductRepository
	brands      brand.Repository
	auditLogger audit.Logger
	signer      *ReceiptSigner
	now         func() time.Time
	locks       *keyedMutex
}

// NewLedger creates a new seat ledger. signer may be nil, in which case
// validation responses carry no receipt.
func NewLedger(
	keys KeyRepository,
	licenses Repository,
	activations ActivationRepository,
	products brand.ProductRepository,
	brands brand.Repository,
	auditLogger audit.Logger,
	signer *ReceiptSigner,
) *Ledger {
	return &Ledger{
		keys:        keys,
		licenses:    licenses,
		activations: activations,
		products:    products,
		brands:      brands,
		auditLogger: auditLogger,
		signer:      signer,
		now:         time.Now,
		locks:       newKeyedMutex(),
	}
}

// WithClock overrides the ledger clock. Intended for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Activate consumes a seat on the license matching (key, productSlug)
// for the given instance. Re-activating an instance that already holds
// a seat is an idempotent success; re-activating a released instance
// reuses its row. The seat check and the mutation run under the
// per-license lock, so two concurrent calls near the seat boundary
// cannot both pass the count.
func (l *Ledger) Activate(ctx context.Context, key, productSlug, instanceID, instanceName string, metadata map[string]any) (*ActivationResult, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("instance id is required")
	}

	k, lic, p, err := l.resolve(ctx, key, productSlug)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(lic.ID)
	defer unlock()

	now := l.now()
	status := Resolve(lic, now)
	if status != StatusValid {
		return nil, NewError(CodeLicenseInvalid, fmt.Sprintf("license is %s", status))
	}

	existing, err := l.activations.GetByInstance(ctx, lic.ID, instanceID)
	if err != nil && !errors.Is(err, ErrActivationNotFound) {
		return nil, err
	}

	if existing != nil && existing.Active {
		// Already holds a seat; record the check and report current usage.
		if err := l.activations.TouchCheck(ctx, lic.ID, instanceID, now); err != nil {
			slog.WarnContext(ctx, "failed to record license check",
				logger.LicenseID(lic.ID),
				logger.InstanceID(instanceID),
				logger.Error(err),
			)
		}
		used, err := l.activations.CountActive(ctx, lic.ID)
		if err != nil {
			return nil, err
		}
		return &ActivationResult{
			Activation: existing,
			License:    lic,
			Product:    p,
			Status:     status,
			SeatsUsed:  used,
			SeatLimit:  lic.SeatLimit,
		}, nil
	}

	used, err := l.activations.CountActive(ctx, lic.ID)
	if err != nil {
		return nil, err
	}
	if lic.SeatLimit > 0 && used >= lic.SeatLimit {
		return nil, NewError(CodeSeatLimitExceeded,
			fmt.Sprintf("seat limit exceeded: %d/%d seats used", used, lic.SeatLimit))
	}

	var act *Activation
	if existing != nil {
		// Reuse the released row instead of inserting a duplicate.
		existing.Active = true
		existing.ActivatedAt = now
		existing.DeactivatedAt = nil
		existing.LastCheckAt = &now
		if instanceName != "" {
			existing.InstanceName = instanceName
		}
		if metadata != nil {
			existing.Metadata = metadata
		}
		if err := l.activations.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to reactivate instance: %w", err)
		}
		act = existing
	} else {
		act = &Activation{
			ID:           id.NewUUIDv7(),
			LicenseID:    lic.ID,
			InstanceID:   instanceID,
			InstanceName: instanceName,
			Metadata:     metadata,
			Active:       true,
			ActivatedAt:  now,
			LastCheckAt:  &now,
		}
		if err := l.activations.Create(ctx, act); err != nil {
			return nil, fmt.Errorf("failed to create activation: %w", err)
		}
	}

	l.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLicenseActivated,
		BrandID:  k.BrandID,
		Resource: lic.ID,
		Metadata: map[string]any{"instance_id": instanceID, "product_slug": p.Slug},
	})

	return &ActivationResult{
		Activation: act,
		License:    lic,
		Product:    p,
		Status:     status,
		SeatsUsed:  used + 1,
		SeatLimit:  lic.SeatLimit,
	}, nil
}

// Deactivate releases the seat held by an instance. Deactivating an
// unknown or already-released instance is an error, not a silent no-op:
// callers must learn that nothing happened.
func (l *Ledger) Deactivate(ctx context.Context, key, productSlug, instanceID string) error {
	k, lic, p, err := l.resolve(ctx, key, productSlug)
	if err != nil {
		return err
	}

	unlock := l.locks.Lock(lic.ID)
	defer unlock()

	act, err := l.activations.GetByInstance(ctx, lic.ID, instanceID)
	if err != nil {
		return err
	}
	if !act.Active {
		return ErrActivationNotFound
	}

	now := l.now()
	act.Active = false
	act.DeactivatedAt = &now
	if err := l.activations.Update(ctx, act); err != nil {
		return fmt.Errorf("failed to deactivate instance: %w", err)
	}

	l.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLicenseDeactivated,
		BrandID:  k.BrandID,
		Resource: lic.ID,
		Metadata: map[string]any{"instance_id": instanceID, "product_slug": p.Slug},
	})

	return nil
}

// Validate reports the effective status of every license on a key,
// optionally narrowed to one product slug. A key with no matching
// licenses yields an empty report, not an error. When instanceID is
// given, each license additionally reports whether that instance holds
// an active seat, and its last-check time is refreshed.
func (l *Ledger) Validate(ctx context.Context, key, productSlug, instanceID string) (*ValidationReport, error) {
	k, err := l.lookupKey(ctx, key)
	if err != nil {
		return nil, err
	}

	reports, err := l.report(ctx, k, productSlug, instanceID)
	if err != nil {
		return nil, err
	}

	result := &ValidationReport{
		Key:      k,
		Licenses: reports,
	}
	for _, r := range reports {
		if r.Status == StatusValid {
			result.Valid = true
		}
	}

	if l.signer != nil {
		receipt, err := l.signer.Sign(k, reports)
		if err != nil {
			return nil, fmt.Errorf("failed to sign validation receipt: %w", err)
		}
		result.Receipt = receipt
	}

	return result, nil
}

// Status returns the full status of a key: every license plus all
// currently active activations.
func (l *Ledger) Status(ctx context.Context, key string) (*StatusReport, error) {
	k, err := l.lookupKey(ctx, key)
	if err != nil {
		return nil, err
	}

	reports, err := l.report(ctx, k, "", "")
	if err != nil {
		return nil, err
	}

	activations := []*Activation{}
	for _, r := range reports {
		active, err := l.activations.ListActiveByLicense(ctx, r.License.ID)
		if err != nil {
			return nil, err
		}
		activations = append(activations, active...)
	}

	result := &StatusReport{
		Key:         k,
		Licenses:    reports,
		Activations: activations,
	}

	if l.signer != nil {
		receipt, err := l.signer.Sign(k, reports)
		if err != nil {
			return nil, fmt.Errorf("failed to sign validation receipt: %w", err)
		}
		result.Receipt = receipt
	}

	return result, nil
}

// lookupKey resolves a customer-facing key token. Revoked keys are
// indistinguishable from unknown ones.
func (l *Ledger) lookupKey(ctx context.Context, key string) (*LicenseKey, error) {
	k, err := l.keys.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if k.Status != KeyStatusActive {
		return nil, ErrKeyNotFound
	}
	return k, nil
}

// resolve finds the license on key matching productSlug, for the
// activation paths. Disabled products do not resolve.
func (l *Ledger) resolve(ctx context.Context, key, productSlug string) (*LicenseKey, *License, *brand.Product, error) {
	k, err := l.lookupKey(ctx, key)
	if err != nil {
		return nil, nil, nil, err
	}

	licenses, err := l.licenses.ListByKey(ctx, k.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	for _, lic := range licenses {
		p, err := l.products.GetByID(ctx, lic.ProductID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to resolve product %s: %w", lic.ProductID, err)
		}
		if p.Slug == productSlug && p.Status == brand.StatusActive {
			return k, lic, p, nil
		}
	}

	return nil, nil, nil, NewError(CodeLicenseNotFound,
		fmt.Sprintf("no license found for product %q", productSlug))
}

// report builds per-license reports for validate/status.
func (l *Ledger) report(ctx context.Context, k *LicenseKey, productSlug, instanceID string) ([]LicenseReport, error) {
	licenses, err := l.licenses.ListByKey(ctx, k.ID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	reports := []LicenseReport{}
	for _, lic := range licenses {
		p, err := l.products.GetByID(ctx, lic.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve product %s: %w", lic.ProductID, err)
		}
		if productSlug != "" && p.Slug != productSlug {
			continue
		}

		used, err := l.activations.CountActive(ctx, lic.ID)
		if err != nil {
			return nil, err
		}

		r := LicenseReport{
			License:   lic,
			Product:   p,
			Status:    Resolve(lic, now),
			SeatsUsed: used,
			SeatLimit: lic.SeatLimit,
		}

		if instanceID != "" {
			held := false
			if act, err := l.activations.GetByInstance(ctx, lic.ID, instanceID); err == nil && act.Active {
				held = true
				if err := l.activations.TouchCheck(ctx, lic.ID, instanceID, now); err != nil {
					slog.WarnContext(ctx, "failed to record license check",
						logger.LicenseID(lic.ID),
						logger.InstanceID(instanceID),
						logger.Error(err),
					)
				}
			}
			valid := r.Status == StatusValid && held
			r.ValidForInstance = &valid
		}

		reports = append(reports, r)
	}

	return reports, nil
}
