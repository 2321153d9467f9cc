package license

import (
	"context"
	"time"
)

// KeyRepository defines the interface for license key storage
type KeyRepository interface {
	Create(ctx context.Context, k *LicenseKey) error
	GetByID(ctx context.Context, id string) (*LicenseKey, error)
	GetByKey(ctx context.Context, key string) (*LicenseKey, error)
	ListByBrand(ctx context.Context, brandID string) ([]*LicenseKey, error)
	// ListByEmail deliberately scans across all brands; results are
	// ordered by creation time. See Lookup.
	ListByEmail(ctx context.Context, email string) ([]*LicenseKey, error)
	Update(ctx context.Context, k *LicenseKey) error
}

// Repository defines the interface for license storage
type Repository interface {
	Create(ctx context.Context, lic *License) error
	GetByID(ctx context.Context, id string) (*License, error)
	GetByKeyAndProduct(ctx context.Context, keyID, productID string) (*License, error)
	ListByKey(ctx context.Context, keyID string) ([]*License, error)
	Update(ctx context.Context, lic *License) error
}

// ActivationRepository defines the interface for activation storage
type ActivationRepository interface {
	Create(ctx context.Context, a *Activation) error
	// GetByInstance returns the single row for (license, instance),
	// active or not.
	GetByInstance(ctx context.Context, licenseID, instanceID string) (*Activation, error)
	ListActiveByLicense(ctx context.Context, licenseID string) ([]*Activation, error)
	CountActive(ctx context.Context, licenseID string) (int, error)
	Update(ctx context.Context, a *Activation) error
	// TouchCheck records a license check from an instance without
	// changing seat state.
	TouchCheck(ctx context.Context, licenseID, instanceID string, at time.Time) error
}
