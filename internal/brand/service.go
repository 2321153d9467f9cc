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

package brand

import (
	"context"
	"fmt"
	"time"

	"github.com/keyhaven/keyhaven/internal/audit"
	"github.com/keyhaven/keyhaven/internal/id"
)

const (
	apiKeyBytes    = 32
	apiSecretBytes = 64
)

// Service provides brand and product management business logic
type Service struct {
	repo        Repository
	products    ProductRepository
	hasher      *SecretHasher
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new brand service
func NewService(repo Repository, products ProductRepository, hasher *SecretHasher, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		products:    products,
		hasher:      hasher,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateBrand creates a new brand with a fresh credential pair. The
// cleartext secret is returned exactly once; only its hash is stored.
func (s *Service) CreateBrand(ctx context.Context, name, slug string) (*Brand, *Credentials, error) {
	if name == "" {
		return nil, nil, fmt.Errorf("brand name is required")
	}
	if slug == "" {
		return nil, nil, fmt.Errorf("brand slug is required")
	}

	if _, err := s.repo.GetBySlug(ctx, slug); err == nil {
		return nil, nil, ErrSlugAlreadyExists
	}

	creds, hash, err := s.generateCredentials()
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	b := &Brand{
		ID:            id.NewUUIDv7(),
		Name:          name,
		Slug:          slug,
		APIKey:        creds.APIKey,
		APISecretHash: hash,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return nil, nil, fmt.Errorf("failed to create brand: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeBrandCreated,
		BrandID:  b.ID,
		Resource: "brand",
		Metadata: map[string]any{"slug": slug},
	})

	return b, creds, nil
}

// GetBrand retrieves a brand by ID
func (s *Service) GetBrand(ctx context.Context, brandID string) (*Brand, error) {
	return s.repo.GetByID(ctx, brandID)
}

// Authenticate resolves a brand from its API credential pair. It fails
// with ErrInvalidCredentials uniformly, so callers cannot distinguish an
// unknown key from a wrong secret.
func (s *Service) Authenticate(ctx context.Context, apiKey, apiSecret string) (*Brand, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, ErrInvalidCredentials
	}

	b, err := s.repo.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if b.Status != StatusActive {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(apiSecret, b.APISecretHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify api secret: %w", err)
	}
	if !ok {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAuthFailed,
			BrandID:  b.ID,
			Resource: "credentials",
		})
		return nil, ErrInvalidCredentials
	}

	return b, nil
}

// RotateCredentials replaces a brand's credential pair. The previous
// pair stops working immediately.
func (s *Service) RotateCredentials(ctx context.Context, brandID string) (*Credentials, error) {
	b, err := s.repo.GetByID(ctx, brandID)
	if err != nil {
		return nil, err
	}

	creds, hash, err := s.generateCredentials()
	if err != nil {
		return nil, err
	}

	b.APIKey = creds.APIKey
	b.APISecretHash = hash
	b.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to rotate credentials: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCredentialsRotated,
		BrandID:  b.ID,
		Resource: "credentials",
	})

	return creds, nil
}

// CreateProduct creates a new product within a brand
func (s *Service) CreateProduct(ctx context.Context, brandID, name, slug, description string, defaultSeatLimit int) (*Product, error) {
	if name == "" {
		return nil, fmt.Errorf("product name is required")
	}
	if slug == "" {
		return nil, fmt.Errorf("product slug is required")
	}
	if defaultSeatLimit < 0 {
		return nil, fmt.Errorf("default seat limit must not be negative")
	}

	if _, err := s.repo.GetByID(ctx, brandID); err != nil {
		return nil, err
	}

	if _, err := s.products.GetBySlug(ctx, brandID, slug); err == nil {
		return nil, ErrSlugAlreadyExists
	}

	now := s.now()
	p := &Product{
		ID:               id.NewUUIDv7(),
		BrandID:          brandID,
		Name:             name,
		Slug:             slug,
		Description:      description,
		DefaultSeatLimit: defaultSeatLimit,
		Status:           StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeProductCreated,
		BrandID:  brandID,
		Resource: "product",
		Metadata: map[string]any{"slug": slug},
	})

	return p, nil
}

// GetProduct retrieves a product by ID
func (s *Service) GetProduct(ctx context.Context, productID string) (*Product, error) {
	return s.products.GetByID(ctx, productID)
}

// ListProducts lists a brand's active products
func (s *Service) ListProducts(ctx context.Context, brandID string) ([]*Product, error) {
	products, err := s.products.ListByBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}

	active := make([]*Product, 0, len(products))
	for _, p := range products {
		if p.Status == StatusActive {
			active = append(active, p)
		}
	}
	return active, nil
}

// DisableProduct soft-deletes a product. Existing licenses keep
// referencing it; no new activations resolve against a disabled product.
func (s *Service) DisableProduct(ctx context.Context, brandID, productID string) error {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if p.BrandID != brandID {
		return ErrProductNotFound
	}

	p.Status = StatusInactive
	p.UpdatedAt = s.now()

	if err := s.products.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to disable product: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeProductDisabled,
		BrandID:  brandID,
		Resource: "product",
		Metadata: map[string]any{"product_id": productID},
	})

	return nil
}

func (s *Service) generateCredentials() (*Credentials, string, error) {
	apiKey, err := id.NewHexSecret(apiKeyBytes)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate api key: %w", err)
	}
	apiSecret, err := id.NewHexSecret(apiSecretBytes)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate api secret: %w", err)
	}

	hash, err := s.hasher.Hash(apiSecret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash api secret: %w", err)
	}

	return &Credentials{APIKey: apiKey, APISecret: apiSecret}, hash, nil
}
