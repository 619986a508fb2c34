package quote

import (
	"context"

	"github.com/Simplici0/leasequote/internal/catalog"
)

// Client is request metadata kept with a persisted quote. It never feeds the
// calculation.
type Client struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Employer string `json:"employer,omitempty"`
}

// Record is what the store persists for a quote.
type Record struct {
	Quote  Quote
	Client Client
}

// Store persists quotes. AttachImage records a scene image for a quote that
// was already saved.
type Store interface {
	SaveQuote(ctx context.Context, rec Record) error
	AttachImage(ctx context.Context, ref, url string) error
}

// ImageRequester returns a reference to a scene image for a vehicle.
type ImageRequester interface {
	Image(ctx context.Context, vehicleMake, model, class string) (string, error)
}

// Catalog resolves vehicle attributes by make, model and year.
type Catalog interface {
	Lookup(mk, model string, year int) (catalog.Vehicle, bool)
}
