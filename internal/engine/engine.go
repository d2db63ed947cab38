package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/rs/zerolog"

	"github.com/demxyuanli/selfa-indicators/internal/indicator"
	"github.com/demxyuanli/selfa-indicators/pkg/config"
	"github.com/demxyuanli/selfa-indicators/pkg/database"
)

// Messages for engine actor communication
type (
	SetBarsMsg struct {
		Symbol   string
		Interval string
		Bars     []indicator.Bar
	}
	AddIndicatorMsg struct {
		Name      string
		Formula   string
		Color     string
		LineWidth int
	}
	UpdateIndicatorMsg struct {
		ID        string
		Name      string
		Formula   string
		Color     string
		LineWidth int
	}
	RemoveIndicatorMsg struct{ ID string }
	ListIndicatorsMsg  struct{}
	GetSeriesMsg       struct{ ID string }
	GetAnalysisMsg     struct{ ID string }
	StatusMsg          struct{}
	SetNotifyPIDMsg    struct{ PID *actor.PID }

	// Response messages
	IndicatorResponse struct {
		Definition indicator.Definition
		Err        error
	}
	ListResponse struct{ Definitions []indicator.Definition }
	SeriesResponse struct {
		Bars   []indicator.Bar
		Series indicator.Series
		Err    error
	}
	AnalysisResponse struct {
		Analysis   *indicator.Analysis
		Diagnostic *indicator.Diagnostic
		Err        error
	}
	AckResponse struct{ Err error }

	// IndicatorChangedMsg is sent to the notify PID after any mutation
	// so interested parties (the WebSocket layer) can announce a
	// recompute.
	IndicatorChangedMsg struct {
		Event string // "added", "updated", "removed", "bars_replaced"
		ID    string
	}
)

// EngineActor owns the indicator registry and the current bar
// sequence. All mutation and every read goes through its mailbox, so
// the registry itself never needs locking.
type EngineActor struct {
	config *config.Config
	db     *database.DB
	logger zerolog.Logger

	registry  *indicator.Registry
	symbol    string
	interval  string
	notifyPID *actor.PID
}

// New creates a new engine actor
func New(cfg *config.Config, db *database.DB, logger zerolog.Logger) *EngineActor {
	return &EngineActor{
		config:   cfg,
		db:       db,
		logger:   logger,
		registry: indicator.NewRegistry(logger),
		symbol:   cfg.Market.Symbol,
		interval: cfg.Market.Interval,
	}
}

// Receive handles incoming messages
func (e *EngineActor) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		e.onStarted(ctx)
	case actor.Stopped:
		e.onStopped(ctx)
	case SetBarsMsg:
		e.onSetBars(ctx, msg)
	case AddIndicatorMsg:
		e.onAddIndicator(ctx, msg)
	case UpdateIndicatorMsg:
		e.onUpdateIndicator(ctx, msg)
	case RemoveIndicatorMsg:
		e.onRemoveIndicator(ctx, msg)
	case ListIndicatorsMsg:
		ctx.Respond(ListResponse{Definitions: e.registry.List()})
	case GetSeriesMsg:
		e.onGetSeries(ctx, msg)
	case GetAnalysisMsg:
		e.onGetAnalysis(ctx, msg)
	case StatusMsg:
		e.onStatus(ctx)
	case SetNotifyPIDMsg:
		e.notifyPID = msg.PID
	default:
		e.logger.Debug().
			Str("message_type", fmt.Sprintf("%T", msg)).
			Msg("Received message")
	}
}

func (e *EngineActor) onStarted(ctx *actor.Context) {
	e.logger.Info().Msg("Engine actor started")

	// Restore persisted indicator definitions
	if defs, err := e.db.ListIndicators(); err != nil {
		e.logger.Error().Err(err).Msg("Failed to load persisted indicators")
	} else if len(defs) > 0 {
		e.registry.Seed(defs)
	}

	// Restore cached bar history
	if bars, err := e.db.LoadBars(e.symbol, e.interval); err != nil {
		e.logger.Error().Err(err).Msg("Failed to load cached bars")
	} else if len(bars) > 0 {
		e.registry.SetBars(bars)
		e.logger.Info().
			Str("symbol", e.symbol).
			Str("interval", e.interval).
			Int("bars", len(bars)).
			Msg("Bar history restored from database")
	}
}

func (e *EngineActor) onStopped(ctx *actor.Context) {
	e.logger.Info().Msg("Engine actor stopped")
}

func (e *EngineActor) onSetBars(ctx *actor.Context, msg SetBarsMsg) {
	if err := validateBars(msg.Bars); err != nil {
		ctx.Respond(AckResponse{Err: err})
		return
	}

	symbol, interval := msg.Symbol, msg.Interval
	if symbol == "" {
		symbol = e.symbol
	}
	if interval == "" {
		interval = e.interval
	}

	e.registry.SetBars(msg.Bars)
	e.symbol, e.interval = symbol, interval

	if err := e.db.SaveBars(symbol, interval, msg.Bars); err != nil {
		e.logger.Error().Err(err).Msg("Failed to persist bars")
	}

	e.notify(ctx, IndicatorChangedMsg{Event: "bars_replaced"})
	ctx.Respond(AckResponse{})
}

func (e *EngineActor) onAddIndicator(ctx *actor.Context, msg AddIndicatorMsg) {
	def, err := e.registry.Add(msg.Name, msg.Formula, msg.Color, msg.LineWidth)
	if err != nil {
		ctx.Respond(IndicatorResponse{Err: err})
		return
	}

	e.persistAll()
	e.notify(ctx, IndicatorChangedMsg{Event: "added", ID: def.ID})
	ctx.Respond(IndicatorResponse{Definition: def})
}

func (e *EngineActor) onUpdateIndicator(ctx *actor.Context, msg UpdateIndicatorMsg) {
	def, err := e.registry.Update(msg.ID, msg.Name, msg.Formula, msg.Color, msg.LineWidth)
	if err != nil {
		ctx.Respond(IndicatorResponse{Err: err})
		return
	}

	e.persistAll()
	e.notify(ctx, IndicatorChangedMsg{Event: "updated", ID: def.ID})
	ctx.Respond(IndicatorResponse{Definition: def})
}

func (e *EngineActor) onRemoveIndicator(ctx *actor.Context, msg RemoveIndicatorMsg) {
	if err := e.registry.Remove(msg.ID); err != nil {
		ctx.Respond(AckResponse{Err: err})
		return
	}

	if err := e.db.DeleteIndicator(msg.ID); err != nil {
		e.logger.Error().Err(err).Str("id", msg.ID).Msg("Failed to delete persisted indicator")
	}

	e.notify(ctx, IndicatorChangedMsg{Event: "removed", ID: msg.ID})
	ctx.Respond(AckResponse{})
}

func (e *EngineActor) onGetSeries(ctx *actor.Context, msg GetSeriesMsg) {
	series, err := e.registry.Series(msg.ID)
	if err != nil {
		ctx.Respond(SeriesResponse{Err: err})
		return
	}
	ctx.Respond(SeriesResponse{Bars: e.registry.Bars(), Series: series})
}

func (e *EngineActor) onGetAnalysis(ctx *actor.Context, msg GetAnalysisMsg) {
	analysis, diagnostic, err := e.registry.Analysis(msg.ID)
	if err != nil {
		ctx.Respond(AnalysisResponse{Err: err})
		return
	}
	ctx.Respond(AnalysisResponse{Analysis: analysis, Diagnostic: diagnostic})
}

func (e *EngineActor) onStatus(ctx *actor.Context) {
	status := map[string]interface{}{
		"symbol":     e.symbol,
		"interval":   e.interval,
		"bars":       len(e.registry.Bars()),
		"indicators": len(e.registry.List()),
		"timestamp":  time.Now(),
	}

	ctx.Respond(status)
}

// persistAll saves every definition with its current position so
// insertion order survives restart.
func (e *EngineActor) persistAll() {
	for i, def := range e.registry.List() {
		if err := e.db.SaveIndicator(def, i); err != nil {
			e.logger.Error().Err(err).Str("id", def.ID).Msg("Failed to persist indicator")
		}
	}
}

func (e *EngineActor) notify(ctx *actor.Context, msg IndicatorChangedMsg) {
	if e.notifyPID != nil {
		ctx.Send(e.notifyPID, msg)
	}
}

// validateBars enforces the contract on incoming bar sequences:
// ascending, unique dates.
func validateBars(bars []indicator.Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return errors.New("bars must be strictly ascending by date")
		}
	}
	return nil
}
