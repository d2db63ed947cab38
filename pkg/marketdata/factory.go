package marketdata

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/demxyuanli/selfa-indicators/pkg/config"
)

// Factory creates bar providers by name
type Factory struct {
	logger zerolog.Logger
}

// NewFactory creates a new provider factory
func NewFactory(logger zerolog.Logger) *Factory {
	return &Factory{
		logger: logger.With().Str("component", "marketdata_factory").Logger(),
	}
}

// CreateProvider creates a provider instance based on the exchange name
func (f *Factory) CreateProvider(name string, cfg *config.Config) (Provider, error) {
	f.logger.Info().
		Str("provider", name).
		Msg("Creating market data provider")

	switch name {
	case "bybit":
		return NewBybit(cfg.BybitAPIKey, cfg.BybitSecret, cfg.BybitTestnet, f.logger), nil
	case "bitvavo":
		return NewBitvavo(cfg.BitvavoAPIKey, cfg.BitvavoSecret, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// SupportedProviders returns a list of supported provider names
func (f *Factory) SupportedProviders() []string {
	return []string{"bybit", "bitvavo"}
}
