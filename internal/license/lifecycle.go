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
	"time"

	"github.com/keyhaven/keyhaven/internal/audit"
)

// Renew extends a license's coverage. The extension is added to
// whichever is later, now or the current expiry: renewing early never
// shortens coverage, and renewing an expired license starts from now
// rather than stacking onto the lapsed date. Fails on cancelled
// licenses and on licenses that never expire, since giving a perpetual
// license a finite expiry would shorten its coverage. The stored state
// is left untouched; a suspended license stays suspended after renewal.
func (s *Service) Renew(ctx context.Context, brandID, licenseID string, extension time.Duration) (*License, error) {
	if extension <= 0 {
		return nil, fmt.Errorf("extension must be positive")
	}

	return s.transition(ctx, brandID, licenseID, audit.TypeLicenseRenewed, func(lic *License, now time.Time) error {
		if lic.State == StateCancelled {
			return ErrLicenseCancelled
		}
		if lic.ExpiresAt == nil {
			return NewError(CodeInvalidTransition, "license never expires")
		}

		from := now
		if lic.ExpiresAt.After(now) {
			from = *lic.ExpiresAt
		}
		next := from.Add(extension)
		lic.ExpiresAt = &next
		return nil
	})
}

// Suspend puts a license on hold. Suspending an already-suspended
// license is a no-op success; suspending a cancelled one fails.
func (s *Service) Suspend(ctx context.Context, brandID, licenseID string) (*License, error) {
	return s.transition(ctx, brandID, licenseID, audit.TypeLicenseSuspended, func(lic *License, now time.Time) error {
		switch lic.State {
		case StateCancelled:
			return ErrLicenseCancelled
		case StateSuspended:
			return nil
		}
		lic.State = StateSuspended
		return nil
	})
}

// Resume lifts a suspension. Resuming a license that is not suspended
// is an error rather than a no-op: it signals caller confusion about
// the license's state.
func (s *Service) Resume(ctx context.Context, brandID, licenseID string) (*License, error) {
	return s.transition(ctx, brandID, licenseID, audit.TypeLicenseResumed, func(lic *License, now time.Time) error {
		switch lic.State {
		case StateCancelled:
			return ErrLicenseCancelled
		case StateValid:
			return NewError(CodeInvalidTransition, "license is not suspended")
		}
		lic.State = StateValid
		return nil
	})
}

// Cancel terminates a license from any state. Cancellation is terminal:
// every later lifecycle call on the license fails with
// license_cancelled. Cancelling twice is a no-op success.
func (s *Service) Cancel(ctx context.Context, brandID, licenseID string) (*License, error) {
	return s.transition(ctx, brandID, licenseID, audit.TypeLicenseCancelled, func(lic *License, now time.Time) error {
		lic.State = StateCancelled
		return nil
	})
}

// transition runs a lifecycle mutation as a single read-modify-write,
// serialized per license so concurrent brand calls cannot lose updates.
func (s *Service) transition(ctx context.Context, brandID, licenseID, auditType string, apply func(lic *License, now time.Time) error) (*License, error) {
	unlock := s.locks.Lock(licenseID)
	defer unlock()

	lic, err := s.GetLicense(ctx, brandID, licenseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	before := lic.State

	if err := apply(lic, now); err != nil {
		return nil, err
	}

	lic.UpdatedAt = now
	if err := s.licenses.Update(ctx, lic); err != nil {
		return nil, fmt.Errorf("failed to update license: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     auditType,
		BrandID:  brandID,
		Resource: lic.ID,
		Metadata: map[string]any{"from_state": string(before), "to_state": string(lic.State)},
	})

	return lic, nil
}
