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
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/keyhaven/keyhaven/internal/license"
)

// errorBody is the wire form of an error response. Every error carries a
// stable machine-readable code plus the request ID for support
// correlation.
type errorBody struct {
	Error errorDetail `json:"error"`
	Meta  errorMeta   `json:"meta"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMeta struct {
	RequestID string `json:"request_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondData wraps a successful payload in the data envelope
func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, map[string]any{"data": data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, status, errorBody{
		Error: errorDetail{Code: code, Message: message},
		Meta:  errorMeta{RequestID: middleware.GetReqID(r.Context())},
	})
}

// statusForCode maps domain error codes to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case license.CodeKeyNotFound, license.CodeLicenseNotFound,
		license.CodeProductNotFound, license.CodeActivationNotFound:
		return http.StatusNotFound
	case license.CodeInvalidTransition, license.CodeLicenseCancelled,
		license.CodeSeatLimitExceeded, license.CodeLicenseExists,
		license.CodeTenantMismatch:
		return http.StatusConflict
	case license.CodeLicenseInvalid:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError translates a service error into the wire envelope.
// Unknown errors become an opaque 500; their detail stays in the logs.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *license.Error
	if errors.As(err, &domainErr) {
		respondError(w, r, statusForCode(domainErr.Code), domainErr.Code, domainErr.Message)
		return
	}
	respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
}
