package marketdata

import (
	"context"
	"fmt"

	"github.com/bitvavo/go-bitvavo-api"
	"github.com/rs/zerolog"

	"github.com/demxyuanli/selfa-indicators/internal/indicator"
)

// BitvavoProvider is a scaffold for sourcing bar history from Bitvavo.
type BitvavoProvider struct {
	client *bitvavo.Bitvavo
	logger zerolog.Logger
}

// NewBitvavo creates a new Bitvavo provider instance
func NewBitvavo(apiKey, secret string, logger zerolog.Logger) *BitvavoProvider {
	// Create a simple client - Bitvavo API might need different initialization
	client := &bitvavo.Bitvavo{} // Placeholder

	return &BitvavoProvider{
		client: client,
		logger: logger.With().Str("provider", "bitvavo").Logger(),
	}
}

// Name returns the provider name.
func (p *BitvavoProvider) Name() string {
	return "bitvavo"
}

// GetBars is not yet implemented for Bitvavo.
func (p *BitvavoProvider) GetBars(ctx context.Context, symbol, interval string, limit int) ([]indicator.Bar, error) {
	return nil, fmt.Errorf("bar history not yet implemented for Bitvavo")
}
