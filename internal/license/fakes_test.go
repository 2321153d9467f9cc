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
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/keyhaven/keyhaven/internal/brand"
	"github.com/keyhaven/keyhaven/internal/id"
)

// Stateful in-memory repositories. The seat ledger tests depend on
// real count-then-act behavior, so these fakes keep actual state and
// are safe for concurrent use.

type fakeKeyRepo struct {
	mu   sync.Mutex
	keys map[string]*LicenseKey
}

func newFakeKeyRepo() *fakeKeyRepo {
	return &fakeKeyRepo{keys: make(map[string]*LicenseKey)}
}

func (r *fakeKeyRepo) Create(ctx context.Context, k *LicenseKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *k
	r.keys[k.ID] = &cp
	return nil
}

func (r *fakeKeyRepo) GetByID(ctx context.Context, id string) (*LicenseKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *k
	return &cp, nil
}

func (r *fakeKeyRepo) GetByKey(ctx context.Context, key string) (*LicenseKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.Key == key {
			cp := *k
			return &cp, nil
		}
	}
	return nil, ErrKeyNotFound
}

func (r *fakeKeyRepo) ListByBrand(ctx context.Context, brandID string) ([]*LicenseKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*LicenseKey
	for _, k := range r.keys {
		if k.BrandID == brandID {
			cp := *k
			out = append(out, &cp)
		}
	}
	sortKeysByCreation(out)
	return out, nil
}

func (r *fakeKeyRepo) ListByEmail(ctx context.Context, email string) ([]*LicenseKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*LicenseKey
	for _, k := range r.keys {
		if k.CustomerEmail == email {
			cp := *k
			out = append(out, &cp)
		}
	}
	sortKeysByCreation(out)
	return out, nil
}

func (r *fakeKeyRepo) Update(ctx context.Context, k *LicenseKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[k.ID]; !ok {
		return ErrKeyNotFound
	}
	cp := *k
	r.keys[k.ID] = &cp
	return nil
}

func sortKeysByCreation(keys []*LicenseKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].ID < keys[j].ID
		}
		return keys[i].CreatedAt.Before(keys[j].CreatedAt)
	})
}

type fakeLicenseRepo struct {
	mu       sync.Mutex
	licenses map[string]*License
}

func newFakeLicenseRepo() *fakeLicenseRepo {
	return &fakeLicenseRepo{licenses: make(map[string]*License)}
}

func (r *fakeLicenseRepo) Create(ctx context.Context, lic *License) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *lic
	r.licenses[lic.ID] = &cp
	return nil
}

func (r *fakeLicenseRepo) GetByID(ctx context.Context, id string) (*License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lic, ok := r.licenses[id]
	if !ok {
		return nil, ErrLicenseNotFound
	}
	cp := *lic
	return &cp, nil
}

func (r *fakeLicenseRepo) GetByKeyAndProduct(ctx context.Context, keyID, productID string) (*License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lic := range r.licenses {
		if lic.LicenseKeyID == keyID && lic.ProductID == productID {
			cp := *lic
			return &cp, nil
		}
	}
	return nil, ErrLicenseNotFound
}

func (r *fakeLicenseRepo) ListByKey(ctx context.Context, keyID string) ([]*License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*License
	for _, lic := range r.licenses {
		if lic.LicenseKeyID == keyID {
			cp := *lic
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fakeLicenseRepo) Update(ctx context.Context, lic *License) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.licenses[lic.ID]; !ok {
		return ErrLicenseNotFound
	}
	cp := *lic
	r.licenses[lic.ID] = &cp
	return nil
}

type fakeActivationRepo struct {
	mu          sync.Mutex
	activations map[string]*Activation
}

func newFakeActivationRepo() *fakeActivationRepo {
	return &fakeActivationRepo{activations: make(map[string]*Activation)}
}

func (r *fakeActivationRepo) Create(ctx context.Context, a *Activation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.activations[a.ID] = &cp
	return nil
}

func (r *fakeActivationRepo) GetByInstance(ctx context.Context, licenseID, instanceID string) (*Activation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.activations {
		if a.LicenseID == licenseID && a.InstanceID == instanceID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrActivationNotFound
}

func (r *fakeActivationRepo) ListActiveByLicense(ctx context.Context, licenseID string) ([]*Activation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Activation
	for _, a := range r.activations {
		if a.LicenseID == licenseID && a.Active {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ActivatedAt.Before(out[j].ActivatedAt)
	})
	return out, nil
}

func (r *fakeActivationRepo) CountActive(ctx context.Context, licenseID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.activations {
		if a.LicenseID == licenseID && a.Active {
			count++
		}
	}
	return count, nil
}

func (r *fakeActivationRepo) Update(ctx context.Context, a *Activation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.activations[a.ID]; !ok {
		return ErrActivationNotFound
	}
	cp := *a
	r.activations[a.ID] = &cp
	return nil
}

func (r *fakeActivationRepo) TouchCheck(ctx context.Context, licenseID, instanceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.activations {
		if a.LicenseID == licenseID && a.InstanceID == instanceID {
			a.LastCheckAt = &at
			return nil
		}
	}
	return ErrActivationNotFound
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]*brand.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[string]*brand.Product)}
}

func (r *fakeProductRepo) Create(ctx context.Context, p *brand.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id string) (*brand.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, brand.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProductRepo) GetBySlug(ctx context.Context, brandID, slug string) (*brand.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.BrandID == brandID && p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, brand.ErrProductNotFound
}

func (r *fakeProductRepo) ListByBrand(ctx context.Context, brandID string) ([]*brand.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*brand.Product
	for _, p := range r.products {
		if p.BrandID == brandID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) Update(ctx context.Context, p *brand.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		return brand.ErrProductNotFound
	}
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

type fakeBrandRepo struct {
	mu     sync.Mutex
	brands map[string]*brand.Brand
}

func newFakeBrandRepo() *fakeBrandRepo {
	return &fakeBrandRepo{brands: make(map[string]*brand.Brand)}
}

func (r *fakeBrandRepo) Create(ctx context.Context, b *brand.Brand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.brands[b.ID] = &cp
	return nil
}

func (r *fakeBrandRepo) GetByID(ctx context.Context, id string) (*brand.Brand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.brands[id]
	if !ok {
		return nil, brand.ErrBrandNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBrandRepo) GetBySlug(ctx context.Context, slug string) (*brand.Brand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.brands {
		if b.Slug == slug {
			cp := *b
			return &cp, nil
		}
	}
	return nil, brand.ErrBrandNotFound
}

func (r *fakeBrandRepo) GetByAPIKey(ctx context.Context, apiKey string) (*brand.Brand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.brands {
		if b.APIKey == apiKey {
			cp := *b
			return &cp, nil
		}
	}
	return nil, brand.ErrBrandNotFound
}

func (r *fakeBrandRepo) Update(ctx context.Context, b *brand.Brand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.brands[b.ID]; !ok {
		return brand.ErrBrandNotFound
	}
	cp := *b
	r.brands[b.ID] = &cp
	return nil
}

func (r *fakeBrandRepo) List(ctx context.Context, limit, offset int) ([]*brand.Brand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*brand.Brand
	for _, b := range r.brands {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

// testWorld wires a full in-memory license stack around one brand and
// one product.
type testWorld struct {
	keys        *fakeKeyRepo
	licenses    *fakeLicenseRepo
	activations *fakeActivationRepo
	products    *fakeProductRepo
	brands      *fakeBrandRepo

	brand   *brand.Brand
	product *brand.Product
}

func newTestWorld(t *testing.T) *testWorld {
	t.Helper()
	w := &testWorld{
		keys:        newFakeKeyRepo(),
		licenses:    newFakeLicenseRepo(),
		activations: newFakeActivationRepo(),
		products:    newFakeProductRepo(),
		brands:      newFakeBrandRepo(),
	}

	now := time.Now()
	w.brand = &brand.Brand{
		ID:        id.NewUUIDv7(),
		Name:      "Acme Tools",
		Slug:      "acme",
		Status:    brand.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.brands.Create(context.Background(), w.brand); err != nil {
		t.Fatalf("failed to seed brand: %v", err)
	}

	w.product = w.addProduct("Acme CAD", "acme-cad", 5)
	return w
}

func (w *testWorld) addProduct(name, slug string, defaultSeats int) *brand.Product {
	now := time.Now()
	p := &brand.Product{
		ID:               id.NewUUIDv7(),
		BrandID:          w.brand.ID,
		Name:             name,
		Slug:             slug,
		DefaultSeatLimit: defaultSeats,
		Status:           brand.StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	w.products.Create(context.Background(), p)
	return p
}
