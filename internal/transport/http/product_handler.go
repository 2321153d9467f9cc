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
	"net/http"
)

// ActivateRequest represents seat activation data
type ActivateRequest struct {
	LicenseKey   string         `json:"license_key" binding:"required"`
	ProductSlug  string         `json:"product_slug" binding:"required"`
	InstanceID   string         `json:"instance_id" binding:"required"`
	InstanceName string         `json:"instance_name,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Activate consumes a seat on a license for an instance
// @Summary Activate
// @Description Consume a seat on the license matching the key and product. Idempotent per instance.
// @Tags Product
// @Accept json
// @Produce json
// @Param request body ActivateRequest true "Activation Data"
// @Success 200 {object} map[string]any
// @Failure 403 {object} errorBody
// @Failure 404 {object} errorBody
// @Failure 409 {object} errorBody
// @Router /product/activate [post]
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.LicenseKey == "" || req.ProductSlug == "" || req.InstanceID == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "license_key, product_slug and instance_id are required")
		return
	}

	result, err := h.ledger.Activate(r.Context(), req.LicenseKey, req.ProductSlug, req.InstanceID, req.InstanceName, req.Metadata)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, result)
}

// DeactivateRequest represents seat release data
type DeactivateRequest struct {
	LicenseKey  string `json:"license_key" binding:"required"`
	ProductSlug string `json:"product_slug" binding:"required"`
	InstanceID  string `json:"instance_id" binding:"required"`
}

// Deactivate releases the seat held by an instance
// @Summary Deactivate
// @Description Release a seat. Fails if the instance holds no active seat.
// @Tags Product
// @Accept json
// @Produce json
// @Param request body DeactivateRequest true "Deactivation Data"
// @Success 200 {object} map[string]string
// @Failure 404 {object} errorBody
// @Router /product/deactivate [post]
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	var req DeactivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.LicenseKey == "" || req.ProductSlug == "" || req.InstanceID == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "license_key, product_slug and instance_id are required")
		return
	}

	if err := h.ledger.Deactivate(r.Context(), req.LicenseKey, req.ProductSlug, req.InstanceID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "deactivated"})
}

// ValidateRequest represents validation data
type ValidateRequest struct {
	LicenseKey  string `json:"license_key" binding:"required"`
	ProductSlug string `json:"product_slug,omitempty"`
	InstanceID  string `json:"instance_id,omitempty"`
}

// Validate reports the effective status of a key's licenses
// @Summary Validate
// @Description Read-only status of every license on a key, optionally narrowed to one product. Never consumes a seat.
// @Tags Product
// @Accept json
// @Produce json
// @Param request body ValidateRequest true "Validation Data"
// @Success 200 {object} map[string]any
// @Failure 404 {object} errorBody
// @Router /product/validate [post]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.LicenseKey == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "license_key is required")
		return
	}

	report, err := h.ledger.Validate(r.Context(), req.LicenseKey, req.ProductSlug, req.InstanceID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, report)
}

// Status returns the full status of a license key
// @Summary Status
// @Description Every license on the key plus all currently active activations
// @Tags Product
// @Produce json
// @Param license_key query string true "License Key"
// @Success 200 {object} map[string]any
// @Failure 404 {object} errorBody
// @Router /product/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("license_key")
	if key == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "license_key query parameter is required")
		return
	}

	report, err := h.ledger.Status(r.Context(), key)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, report)
}
