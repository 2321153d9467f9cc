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
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/keyhaven/keyhaven/internal/observability/logger"
)

// Brand scoping principles:
// 1. Brand context is derived EXCLUSIVELY from verified API credentials
// 2. No header or body field may name a brand on authenticated routes
// 3. The product surface carries no brand context at all; the license
//    key is the only credential there

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Log request start
			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// BrandAuthMiddleware authenticates a brand from its API credential
// pair and injects the brand ID into the request context. All failures
// are uniform 401s so callers cannot probe for valid API keys.
func (h *Handler) BrandAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		apiSecret := r.Header.Get("X-API-Secret")
		if apiKey == "" || apiSecret == "" {
			respondError(w, r, http.StatusUnauthorized, "invalid_credentials", "missing API credentials")
			return
		}

		b, err := h.brandService.Authenticate(r.Context(), apiKey, apiSecret)
		if err != nil {
			slog.WarnContext(r.Context(), "brand authentication failed",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.RemoteAddr(r.RemoteAddr),
			)
			respondError(w, r, http.StatusUnauthorized, "invalid_credentials", "invalid API credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(withBrandID(r.Context(), b.ID)))
	})
}
