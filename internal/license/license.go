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

// Package license implements the license lifecycle and seat allocation
// engine: license keys, their attached product licenses, and the
// activations that consume seats on them.
package license

import (
	"time"

	"github.com/keyhaven/keyhaven/internal/brand"
)

// State is the stored lifecycle state of a license. Transitions are
// monotonic toward the terminal cancelled state, except suspend/resume.
type State string

const (
	StateValid     State = "valid"
	StateSuspended State = "suspended"
	StateCancelled State = "cancelled"
)

// Status is the effective status of a license, computed at read time
// from the stored state plus the current clock. Never persisted.
type Status string

const (
	StatusValid     Status = "valid"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Key status constants
const (
	KeyStatusActive  = "active"
	KeyStatusRevoked = "revoked"
)

// LicenseKey is the customer-facing credential. One key belongs to
// exactly one brand and can unlock multiple product licenses.
type LicenseKey struct {
	ID            string    `json:"id"`
	Key           string    `json:"key"`
	BrandID       string    `json:"brand_id"`
	CustomerEmail string    `json:"customer_email"`
	CustomerName  string    `json:"customer_name,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Prefix returns a short, log-safe form of the key
func (k *LicenseKey) Prefix() string {
	if len(k.Key) <= 8 {
		return k.Key
	}
	return k.Key[:8] + "..."
}

// License grants access to one product under one license key.
// SeatLimit 0 means unlimited seats; a nil ExpiresAt never expires.
type License struct {
	ID           string     `json:"id"`
	LicenseKeyID string     `json:"license_key_id"`
	ProductID    string     `json:"product_id"`
	State        State      `json:"state"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	SeatLimit    int        `json:"seat_limit"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Activation binds a license to one caller-identified instance. At most
// one row exists per (license, instance); reactivation flips the
// existing row instead of inserting another.
type Activation struct {
	ID            string         `json:"id"`
	LicenseID     string         `json:"license_id"`
	InstanceID    string         `json:"instance_id"`
	InstanceName  string         `json:"instance_name,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Active        bool           `json:"active"`
	ActivatedAt   time.Time      `json:"activated_at"`
	DeactivatedAt *time.Time     `json:"deactivated_at,omitempty"`
	LastCheckAt   *time.Time     `json:"last_check_at,omitempty"`
}

// ActivationResult is returned by the seat ledger on a successful
// activation.
type ActivationResult struct {
	Activation *Activation    `json:"activation"`
	License    *License       `json:"license"`
	Product    *brand.Product `json:"product"`
	Status     Status         `json:"status"`
	SeatsUsed  int            `json:"seats_used"`
	SeatLimit  int            `json:"seat_limit"`
}

// LicenseReport describes one license within a validation or status
// response.
type LicenseReport struct {
	License          *License       `json:"license"`
	Product          *brand.Product `json:"product"`
	Status           Status         `json:"status"`
	SeatsUsed        int            `json:"seats_used"`
	SeatLimit        int            `json:"seat_limit"`
	ValidForInstance *bool          `json:"valid_for_instance,omitempty"`
}

// ValidationReport is the read-only answer to a validate call. Valid is
// true when at least one reported license is effectively valid.
type ValidationReport struct {
	Key      *LicenseKey     `json:"key"`
	Valid    bool            `json:"valid"`
	Licenses []LicenseReport `json:"licenses"`
	Receipt  string          `json:"receipt,omitempty"`
}

// StatusReport is the full status of a license key: every license plus
// the currently active activations.
type StatusReport struct {
	Key         *LicenseKey     `json:"key"`
	Licenses    []LicenseReport `json:"licenses"`
	Activations []*Activation   `json:"activations"`
	Receipt     string          `json:"receipt,omitempty"`
}

// CustomerHolding is one license key and its licenses in a cross-brand
// customer lookup.
type CustomerHolding struct {
	Brand    *brand.Brand    `json:"brand"`
	Key      *LicenseKey     `json:"key"`
	Licenses []LicenseReport `json:"licenses"`
}
