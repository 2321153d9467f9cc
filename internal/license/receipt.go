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
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ReceiptSigner issues short-lived signed receipts for validation
// responses. A product that validated recently can cache the receipt
// and re-verify it locally instead of calling home on every start.
type ReceiptSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewReceiptSigner creates a signer with the given HMAC secret and
// receipt lifetime.
func NewReceiptSigner(secret []byte, ttl time.Duration) *ReceiptSigner {
	return &ReceiptSigner{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the signer clock. Intended for tests.
func (s *ReceiptSigner) WithClock(now func() time.Time) *ReceiptSigner {
	s.now = now
	return s
}

// Sign produces an HS256 receipt summarizing the effective status of
// each reported license by product slug. Only the log-safe key prefix
// goes into the token, never the key itself.
func (s *ReceiptSigner) Sign(k *LicenseKey, reports []LicenseReport) (string, error) {
	now := s.now()

	statuses := make(map[string]string, len(reports))
	for _, r := range reports {
		statuses[r.Product.Slug] = string(r.Status)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":      "keyhaven",
		"sub":      k.Prefix(),
		"licenses": statuses,
		"iat":      now.Unix(),
		"exp":      now.Add(s.ttl).Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign receipt: %w", err)
	}
	return signed, nil
}

// Verify parses a receipt and returns its per-product statuses. It is
// used by tests and by products embedding this module; the server
// itself only issues receipts.
func (s *ReceiptSigner) Verify(receipt string) (map[string]string, error) {
	token, err := jwt.Parse(receipt, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, fmt.Errorf("invalid receipt: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid receipt claims")
	}

	raw, ok := claims["licenses"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid receipt claims: missing licenses")
	}

	statuses := make(map[string]string, len(raw))
	for slug, status := range raw {
		st, ok := status.(string)
		if !ok {
			return nil, fmt.Errorf("invalid receipt claims: bad status for %s", slug)
		}
		statuses[slug] = st
	}
	return statuses, nil
}
