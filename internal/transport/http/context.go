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

import "context"

type contextKey string

const brandIDKey contextKey = "brand_id"

// GetBrandID retrieves the authenticated brand ID from context. It is
// set exclusively by BrandAuthMiddleware; handlers must never accept a
// brand identifier from headers or request bodies.
func GetBrandID(ctx context.Context) string {
	if val, ok := ctx.Value(brandIDKey).(string); ok {
		return val
	}
	return ""
}

func withBrandID(ctx context.Context, brandID string) context.Context {
	return context.WithValue(ctx, brandIDKey, brandID)
}
