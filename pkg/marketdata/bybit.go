package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/rs/zerolog"

	"github.com/demxyuanli/selfa-indicators/internal/indicator"
)

// BybitProvider fetches bar history from the Bybit V5 spot market API.
type BybitProvider struct {
	client  *bybit.Client
	logger  zerolog.Logger
	testnet bool
}

// NewBybit creates a new Bybit provider. Kline history is public data,
// so empty credentials are accepted.
func NewBybit(apiKey, secret string, testnet bool, logger zerolog.Logger) *BybitProvider {
	client := bybit.NewClient()
	if apiKey != "" {
		client = client.WithAuth(apiKey, secret)
	}

	return &BybitProvider{
		client:  client,
		logger:  logger.With().Str("provider", "bybit").Logger(),
		testnet: testnet,
	}
}

// Name returns the provider name.
func (p *BybitProvider) Name() string {
	return "bybit"
}

// GetBars fetches kline history and converts it to an ascending bar
// sequence.
func (p *BybitProvider) GetBars(ctx context.Context, symbol, interval string, limit int) ([]indicator.Bar, error) {
	bybitInterval := mapIntervalToV5(interval)
	if bybitInterval == "" {
		return nil, fmt.Errorf("unsupported interval: %s", interval)
	}

	param := bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(symbol),
		Interval: bybit.Interval(bybitInterval),
		Limit:    &limit,
	}

	resp, err := p.client.V5().Market().GetKline(param)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", err)
	}

	p.logger.Info().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("result_count", len(resp.Result.List)).
		Msg("Received klines from Bybit API")

	bars := make([]indicator.Bar, 0, len(resp.Result.List))
	for _, item := range resp.Result.List {
		open, _ := strconv.ParseFloat(item.Open, 64)
		high, _ := strconv.ParseFloat(item.High, 64)
		low, _ := strconv.ParseFloat(item.Low, 64)
		closePrice, _ := strconv.ParseFloat(item.Close, 64)
		volume, _ := strconv.ParseFloat(item.Volume, 64)
		startTime, _ := strconv.ParseInt(item.StartTime, 10, 64)

		bars = append(bars, indicator.Bar{
			Date:   time.Unix(startTime/1000, 0),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	// Bybit returns newest first; indicator evaluation needs ascending
	// dates.
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	return bars, nil
}

func mapIntervalToV5(interval string) string {
	switch interval {
	case "1m":
		return "1"
	case "5m":
		return "5"
	case "15m":
		return "15"
	case "30m":
		return "30"
	case "1h":
		return "60"
	case "4h":
		return "240"
	case "1d":
		return "D"
	case "1w":
		return "W"
	default:
		return ""
	}
}
