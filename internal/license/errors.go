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
	"errors"
	"fmt"
)

// Error is a domain error carrying a stable machine-readable code that
// the transport layer maps to a structured response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is makes two domain errors with the same code comparable via
// errors.Is, regardless of message detail.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Domain error codes
const (
	CodeKeyNotFound        = "license_key_not_found"
	CodeLicenseNotFound    = "license_not_found"
	CodeProductNotFound    = "product_not_found"
	CodeActivationNotFound = "activation_not_found"
	CodeInvalidTransition  = "invalid_transition"
	CodeLicenseCancelled   = "license_cancelled"
	CodeLicenseInvalid     = "license_invalid"
	CodeSeatLimitExceeded  = "seat_limit_exceeded"
	CodeTenantMismatch     = "product_tenant_mismatch"
	CodeLicenseExists      = "license_already_exists"
)

// Lookup failures are shared sentinels; errors carrying dynamic detail
// are constructed with NewError at the failure site.
var (
	ErrKeyNotFound        = NewError(CodeKeyNotFound, "license key not found")
	ErrLicenseNotFound    = NewError(CodeLicenseNotFound, "license not found")
	ErrProductNotFound    = NewError(CodeProductNotFound, "product not found")
	ErrActivationNotFound = NewError(CodeActivationNotFound, "no active activation found for instance")
	ErrLicenseCancelled   = NewError(CodeLicenseCancelled, "license is cancelled")
	ErrLicenseExists      = NewError(CodeLicenseExists, "license key already holds a license for this product")
	ErrTenantMismatch     = NewError(CodeTenantMismatch, "product belongs to a different brand than the license key")
)

// NewError creates a new domain error
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the domain code from an error chain, or "" when the
// error is not a domain error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
