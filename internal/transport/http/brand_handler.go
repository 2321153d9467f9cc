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

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/keyhaven/keyhaven/internal/brand"
	"github.com/keyhaven/keyhaven/internal/observability/logger"
)

// CreateLicenseKeyRequest represents license key creation data
type CreateLicenseKeyRequest struct {
	CustomerEmail string `json:"customer_email" binding:"required" example:"customer@example.com"`
	CustomerName  string `json:"customer_name" example:"Ada Lovelace"`
}

// CreateLicenseKey issues a new license key for a customer
// @Summary Create License Key
// @Description Issue a new license key for a customer of the authenticated brand
// @Tags LicenseKeys
// @Accept json
// @Produce json
// @Security BrandAPIKey
// @Param request body CreateLicenseKeyRequest true "Key Data"
// @Success 201 {object} map[string]any
// @Failure 400 {object} errorBody
// @Router /brand/license-keys [post]
func (h *Handler) CreateLicenseKey(w http.ResponseWriter, r *http.Request) {
	var req CreateLicenseKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.CustomerEmail == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "customer_email is required")
		return
	}

	brandID := GetBrandID(r.Context())
	k, err := h.licenseService.CreateLicenseKey(r.Context(), brandID, req.CustomerEmail, req.CustomerName)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create license key",
			logger.Error(err),
			logger.BrandID(brandID),
		)
		respondDomainError(w, r, err)
		return
	}

	respondData(w, http.StatusCreated, k)
}

// ListLicenseKeys lists the brand's license keys
// @Summary List License Keys
// @Tags LicenseKeys
// @Produce json
// @Security BrandAPIKey
// @Success 200 {object} map[string]any
// @Router /brand/license-keys [get]
func (h *Handler) ListLicenseKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.licenseService.ListKeys(r.Context(), GetBrandID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, keys)
}

// GetLicenseKey returns a key's licenses and active activations
// @Summary Get License Key
// @Description Key detail including licenses, effective statuses and active activations
// @Tags LicenseKeys
// @Produce json
// @Security BrandAPIKey
// @Param key path string true "License Key"
// @Success 200 {object} map[string]any
// @Failure 404 {object} errorBody
// @Router /brand/license-keys/{key} [get]
func (h *Handler) GetLicenseKey(w http.ResponseWriter, r *http.Request) {
	report, err := h.licenseService.DescribeKey(r.Context(), GetBrandID(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, report)
}

// RevokeLicenseKey revokes a license key
// @Summary Revoke License Key
// @Description Revoke a key; it stops resolving on the product surface. Idempotent.
// @Tags LicenseKeys
// @Produce json
// @Security BrandAPIKey
// @Param key path string true "License Key"
// @Success 200 {object} map[string]any
// @Failure 404 {object} errorBody
// @Router /brand/license-keys/{key}/revoke [post]
func (h *Handler) RevokeLicenseKey(w http.ResponseWriter, r *http.Request) {
	k, err := h.licenseService.RevokeKey(r.Context(), GetBrandID(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, k)
}

// AttachLicenseRequest represents license attachment data
type AttachLicenseRequest struct {
	ProductID string     `json:"product_id" binding:"required"`
	SeatLimit *int       `json:"seat_limit,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AttachLicense attaches a product license to a key
// @Summary Attach License
// @Description Attach a product license to an existing key. The product must belong to the same brand.
// @Tags Licenses
// @Accept json
// @Produce json
// @Security BrandAPIKey
// @Param key path string true "License Key"
// @Param request body AttachLicenseRequest true "License Data"
// @Success 201 {object} map[string]any
// @Failure 404 {object} errorBody
// @Failure 409 {object} errorBody
// @Router /brand/license-keys/{key}/licenses [post]
func (h *Handler) AttachLicense(w http.ResponseWriter, r *http.Request) {
	var req AttachLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.ProductID == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "product_id is required")
		return
	}
	if req.SeatLimit != nil && *req.SeatLimit < 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "seat_limit must not be negative")
		return
	}

	brandID := GetBrandID(r.Context())
	k, err := h.licenseService.GetKey(r.Context(), brandID, chi.URLParam(r, "key"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	lic, err := h.licenseService.AttachLicense(r.Context(), k.ID, req.ProductID, req.SeatLimit, req.ExpiresAt)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondData(w, http.StatusCreated, lic)
}

// GetLicense returns a single license
// @Summary Get License
// @Tags Licenses
// @Produce json
// @Security BrandAPIKey
// @Param licenseID path string true "License ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} errorBody
// @Router /brand/licenses/{licenseID} [get]
func (h *Handler) GetLicense(w http.ResponseWriter, r *http.Request) {
	lic, err := h.licenseService.GetLicense(r.Context(), GetBrandID(r.Context()), chi.URLParam(r, "licenseID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, lic)
}

// RenewLicenseRequest represents renewal data
type RenewLicenseRequest struct {
	ExtensionDays int `json:"extension_days" binding:"required" example:"365"`
}

// RenewLicense extends a license's coverage
// @Summary Renew License
// @Description Extend coverage from now or the current expiry, whichever is later
// @Tags Licenses
// @Accept json
// @Produce json
// @Security BrandAPIKey
// @Param licenseID path string true "License ID"
// @Param request body RenewLicenseRequest true "Renewal Data"
// @Success 200 {object} map[string]any
// @Failure 409 {object} errorBody
// @Router /brand/licenses/{licenseID}/renew [post]
func (h *Handler) RenewLicense(w http.ResponseWriter, r *http.Request) {
	var req RenewLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.ExtensionDays <= 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "extension_days must be positive")
		return
	}

	extension := time.Duration(req.ExtensionDays) * 24 * time.Hour
	lic, err := h.licenseService.Renew(r.Context(), GetBrandID(r.Context()), chi.URLParam(r, "licenseID"), extension)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, lic)
}

// SuspendLicense puts a license on hold
// @Summary Suspend License
// @Tags Licenses
// @Produce json
// @Security BrandAPIKey
// @Param licenseID path string true "License ID"
// @Success 200 {object} map[string]any
// @Failure 409 {object} errorBody
// @Router /brand/licenses/{licenseID}/suspend [post]
func (h *Handler) SuspendLicense(w http.ResponseWriter, r *http.Request) {
	lic, err := h.licenseService.Suspend(r.Context(), GetBrandID(r.Context()), chi.URLParam(r, "licenseID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, lic)
}

// ResumeLicense lifts a suspension
// @Summary Resume License
// @Tags Licenses
// @Produce json
// @Security BrandAPIKey
// @Param licenseID path string true "License ID"
// @Success 200 {object} map[string]any
// @Failure 409 {object} errorBody
// @Router /brand/licenses/{licenseID}/resume [post]
func (h *Handler) ResumeLicense(w http.ResponseWriter, r *http.Request) {
	lic, err := h.licenseService.Resume(r.Context(), GetBrandID(r.Context()), chi.URLParam(r, "licenseID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, lic)
}

// CancelLicense terminates a license
// @Summary Cancel License
// @Description Cancel a license. Cancellation is terminal; cancelling twice is a no-op.
// @Tags Licenses
// @Produce json
// @Security BrandAPIKey
// @Param licenseID path string true "License ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} errorBody
// @Router /brand/licenses/{licenseID}/cancel [post]
func (h *Handler) CancelLicense(w http.ResponseWriter, r *http.Request) {
	lic, err := h.licenseService.Cancel(r.Context(), GetBrandID(r.Context()), chi.URLParam(r, "licenseID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, lic)
}

// LookupCustomer looks up a customer's keys across all brands
// @Summary Lookup Customer
// @Description Cross-brand view of every license key held by a customer email
// @Tags Customers
// @Produce json
// @Security BrandAPIKey
// @Param email query string true "Customer Email"
// @Success 200 {object} map[string]any
// @Failure 400 {object} errorBody
// @Router /brand/customers [get]
func (h *Handler) LookupCustomer(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "email query parameter is required")
		return
	}

	holdings, err := h.lookup.FindByEmail(r.Context(), email)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, holdings)
}

// ListProducts lists the brand's active products
// @Summary List Products
// @Tags Products
// @Produce json
// @Security BrandAPIKey
// @Success 200 {object} map[string]any
// @Router /brand/products [get]
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.brandService.ListProducts(r.Context(), GetBrandID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, products)
}

// RotateCredentials rotates the brand's API credential pair
// @Summary Rotate Credentials
// @Description Replace the API key and secret. The cleartext secret is returned exactly once.
// @Tags Brand
// @Produce json
// @Security BrandAPIKey
// @Success 200 {object} map[string]any
// @Router /brand/credentials/rotate [post]
func (h *Handler) RotateCredentials(w http.ResponseWriter, r *http.Request) {
	brandID := GetBrandID(r.Context())
	creds, err := h.brandService.RotateCredentials(r.Context(), brandID)
	if err != nil {
		if errors.Is(err, brand.ErrBrandNotFound) {
			respondError(w, r, http.StatusNotFound, "brand_not_found", "brand not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to rotate credentials",
			logger.Error(err),
			logger.BrandID(brandID),
		)
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, creds)
}
