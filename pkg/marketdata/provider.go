package marketdata

import (
	"context"

	"github.com/demxyuanli/selfa-indicators/internal/indicator"
)

// Provider supplies OHLCV bar history from an external data service.
// Implementations must return bars ascending by date with unique
// dates, ready for indicator evaluation.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// GetBars fetches up to limit bars for the symbol at the given
	// interval.
	GetBars(ctx context.Context, symbol, interval string, limit int) ([]indicator.Bar, error)
}
