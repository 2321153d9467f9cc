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

// Package id generates identifiers and opaque credentials.
package id

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewUUIDv7 returns a time-ordered UUID string for entity identifiers.
// UUIDv7 keeps primary keys roughly insertion-ordered, which the
// cross-brand lookup relies on for stable creation-time ordering.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewToken returns a URL-safe random token built from n random bytes.
// Used for customer-facing license keys; 32 bytes yields a 43-character
// token that is not guessable or enumerable.
func NewToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewHexSecret returns a hex-encoded random secret of n bytes.
// Used for brand API credentials.
func NewHexSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
