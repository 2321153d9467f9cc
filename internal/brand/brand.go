package brand

import (
	"time"
)

// Brand represents an isolated customer-facing organization. Each brand
// owns its own products and license keys and authenticates to the brand
// API with its own credential pair.
type Brand struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	APIKey        string    `json:"-"`
	APISecretHash string    `json:"-"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Product represents a sellable product within a brand. Licenses are
// issued against specific products.
type Product struct {
	ID               string    `json:"id"`
	BrandID          string    `json:"brand_id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	Description      string    `json:"description,omitempty"`
	DefaultSeatLimit int       `json:"default_seat_limit"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Credentials is the cleartext credential pair for a brand. It is
// returned exactly once, on creation or rotation; only the secret's
// Argon2id hash is stored.
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}
