package brand

import (
	"context"
	"errors"
)

var (
	ErrBrandNotFound      = errors.New("brand not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrSlugAlreadyExists  = errors.New("slug already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository defines the interface for brand storage
type Repository interface {
	Create(ctx context.Context, b *Brand) error
	GetByID(ctx context.Context, id string) (*Brand, error)
	GetBySlug(ctx context.Context, slug string) (*Brand, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*Brand, error)
	Update(ctx context.Context, b *Brand) error
	List(ctx context.Context, limit, offset int) ([]*Brand, error)
}

// ProductRepository defines the interface for product storage
type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, brandID, slug string) (*Product, error)
	ListByBrand(ctx context.Context, brandID string) ([]*Product, error)
	Update(ctx context.Context, p *Product) error
}
