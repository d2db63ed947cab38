package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/demxyuanli/selfa-indicators/internal/api"
	"github.com/demxyuanli/selfa-indicators/internal/engine"
	"github.com/demxyuanli/selfa-indicators/pkg/config"
	"github.com/demxyuanli/selfa-indicators/pkg/database"
	"github.com/demxyuanli/selfa-indicators/pkg/marketdata"
)

// Messages for supervisor actor communication
type (
	StartMessage  struct{}
	StopMessage   struct{}
	StatusMessage struct{}
	ErrorMessage  struct{ Error error }
)

// Supervisor manages all other actors in the system
type Supervisor struct {
	config      *config.Config
	logger      zerolog.Logger
	engineActor *actor.PID
	apiActor    *actor.PID
	db          *database.DB
}

// New creates a new supervisor actor
func New() *Supervisor {
	return &Supervisor{
		logger: log.With().Str("actor", "supervisor").Logger(),
	}
}

// Start initializes and starts the supervisor actor system
func (s *Supervisor) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting supervisor actor system")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	s.config = cfg

	// Initialize database
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	// Create actor engine
	engineConfig := actor.NewEngineConfig()
	actorEngine, err := actor.NewEngine(engineConfig)
	if err != nil {
		return fmt.Errorf("failed to create actor engine: %w", err)
	}

	// Spawn supervisor actor
	supervisorPID := actorEngine.Spawn(func() actor.Receiver {
		return s
	}, "supervisor")

	// Send start message to supervisor
	actorEngine.Send(supervisorPID, StartMessage{})

	s.logger.Info().Msg("Supervisor actor system started successfully")
	return nil
}

// Receive handles incoming messages
func (s *Supervisor) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		s.logger.Info().Msg("Supervisor actor started")
	case actor.Stopped:
		s.onStopped(ctx)
	case actor.Initialized:
		s.logger.Debug().Msg("Supervisor actor initialized")
	case StartMessage:
		s.onStart(ctx)
	case StopMessage:
		s.onStop(ctx)
	case StatusMessage:
		s.onStatus(ctx)
	case ErrorMessage:
		s.logger.Error().Err(msg.Error).Msg("Received error from child actor")
	case engine.AckResponse:
		if msg.Err != nil {
			s.logger.Error().Err(msg.Err).Msg("Engine rejected bar sequence")
		}
	default:
		s.logger.Warn().
			Str("message_type", fmt.Sprintf("%T", msg)).
			Msg("Received unknown message")
	}
}

func (s *Supervisor) onStopped(ctx *actor.Context) {
	s.logger.Info().Msg("Supervisor actor stopped")
	if s.db != nil {
		s.db.Close()
	}
}

func (s *Supervisor) onStart(ctx *actor.Context) {
	s.logger.Info().Msg("Starting child actors")

	// Start engine actor
	s.engineActor = ctx.SpawnChild(func() actor.Receiver {
		return engine.New(s.config, s.db, s.logger.With().Str("actor", "engine").Logger())
	}, "engine")

	// Start API actor
	s.apiActor = ctx.SpawnChild(func() actor.Receiver {
		return api.New(s.config, s.logger.With().Str("actor", "api").Logger())
	}, "api")

	// Wire the actors together
	ctx.Send(s.apiActor, api.SetEnginePIDMsg{EnginePID: s.engineActor})
	ctx.Send(s.engineActor, engine.SetNotifyPIDMsg{PID: s.apiActor})
	ctx.Send(s.apiActor, api.StartServerMsg{})

	// Optionally refresh bar history from the configured provider
	if s.config.Market.Exchange != "" {
		s.fetchBars(ctx)
	}
}

// fetchBars pulls a fresh bar sequence from the configured market data
// provider and hands it to the engine. Failure is not fatal: the
// engine keeps serving whatever history it restored from the database.
func (s *Supervisor) fetchBars(ctx *actor.Context) {
	factory := marketdata.NewFactory(s.logger)
	provider, err := factory.CreateProvider(s.config.Market.Exchange, s.config)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create market data provider")
		return
	}

	fetchCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bars, err := provider.GetBars(fetchCtx, s.config.Market.Symbol, s.config.Market.Interval, s.config.Market.Limit)
	if err != nil {
		s.logger.Error().Err(err).
			Str("provider", provider.Name()).
			Msg("Failed to fetch bar history")
		return
	}

	ctx.Send(s.engineActor, engine.SetBarsMsg{
		Symbol:   s.config.Market.Symbol,
		Interval: s.config.Market.Interval,
		Bars:     bars,
	})

	s.logger.Info().
		Str("provider", provider.Name()).
		Str("symbol", s.config.Market.Symbol).
		Int("bars", len(bars)).
		Msg("Bar history refreshed from provider")
}

func (s *Supervisor) onStop(ctx *actor.Context) {
	s.logger.Info().Msg("Stopping child actors")

	if s.apiActor != nil {
		ctx.Engine().Stop(s.apiActor)
	}
	if s.engineActor != nil {
		ctx.Engine().Stop(s.engineActor)
	}
}

func (s *Supervisor) onStatus(ctx *actor.Context) {
	status := map[string]interface{}{
		"timestamp":          time.Now(),
		"engine_actor_alive": s.engineActor != nil,
		"api_actor_alive":    s.apiActor != nil,
	}

	s.logger.Info().Interface("status", status).Msg("Supervisor status")
	ctx.Respond(status)
}
