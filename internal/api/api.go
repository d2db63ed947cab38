package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/demxyuanli/selfa-indicators/internal/engine"
	"github.com/demxyuanli/selfa-indicators/pkg/config"
)

// Messages for API actor communication
type (
	StartServerMsg  struct{}
	StopServerMsg   struct{}
	StatusMsg       struct{}
	SetEnginePIDMsg struct{ EnginePID *actor.PID }
)

// APIActor provides the REST and WebSocket surface for indicator
// collaborators: the formula editor, the chart overlay, and the
// results panel.
type APIActor struct {
	config     *config.Config
	logger     zerolog.Logger
	server     *http.Server
	router     chi.Router
	wsUpgrader websocket.Upgrader
	enginePID  *actor.PID

	// WebSocket clients; broadcast happens from the actor goroutine
	// while connections are added from HTTP goroutines.
	wsMu      sync.Mutex
	wsClients map[*websocket.Conn]bool
}

// New creates a new API actor
func New(cfg *config.Config, logger zerolog.Logger) *APIActor {
	return &APIActor{
		config:    cfg,
		logger:    logger,
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins for development
				return true
			},
		},
	}
}

// Receive handles incoming messages
func (a *APIActor) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		a.onStarted(ctx)
	case actor.Stopped:
		a.onStopped(ctx)
	case StartServerMsg:
		a.onStartServer(ctx)
	case StopServerMsg:
		a.onStopServer(ctx)
	case SetEnginePIDMsg:
		a.enginePID = msg.EnginePID
	case engine.IndicatorChangedMsg:
		a.broadcastChange(msg)
	case StatusMsg:
		a.onStatus(ctx)
	default:
		a.logger.Debug().
			Str("message_type", fmt.Sprintf("%T", msg)).
			Msg("Received message")
	}
}

func (a *APIActor) onStarted(ctx *actor.Context) {
	a.logger.Info().Msg("API actor started")
}

func (a *APIActor) onStopped(ctx *actor.Context) {
	a.logger.Info().Msg("API actor stopped")

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.server.Shutdown(shutdownCtx)
	}
}

func (a *APIActor) onStartServer(ctx *actor.Context) {
	a.logger.Info().Int("port", a.config.API.Port).Msg("Starting API server")

	a.setupRouter(ctx)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.API.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.API.Timeout,
		WriteTimeout: a.config.API.Timeout,
	}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error().Err(err).Msg("API server error")
		}
	}()

	a.logger.Info().Msg("API server started successfully")
}

func (a *APIActor) onStopServer(ctx *actor.Context) {
	if a.server == nil {
		return
	}

	a.logger.Info().Msg("Stopping API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("Error stopping API server")
	}
}

func (a *APIActor) onStatus(ctx *actor.Context) {
	status := map[string]interface{}{
		"server_running": a.server != nil,
		"port":           a.config.API.Port,
		"timestamp":      time.Now(),
	}

	ctx.Respond(status)
}

func (a *APIActor) setupRouter(ctx *actor.Context) {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(a.config.API.Timeout))

	// CORS for development
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")

			if r.Method == "OPTIONS" {
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Route("/indicators", func(r chi.Router) {
			r.Get("/", a.handleListIndicators(ctx))
			r.Post("/", a.handleCreateIndicator(ctx))
			r.Put("/{id}", a.handleUpdateIndicator(ctx))
			r.Delete("/{id}", a.handleDeleteIndicator(ctx))
			r.Get("/{id}/series", a.handleGetSeries(ctx))
			r.Get("/{id}/analysis", a.handleGetAnalysis(ctx))
		})

		r.Put("/bars", a.handleSetBars(ctx))
	})

	// WebSocket endpoint
	r.HandleFunc("/ws", a.handleWebSocket)

	a.router = r
}

// Router exposes the configured router; used by tests to serve the API
// without binding a port.
func (a *APIActor) Router(ctx *actor.Context) http.Handler {
	if a.router == nil {
		a.setupRouter(ctx)
	}
	return a.router
}

// broadcastChange pushes a recompute event to every connected
// WebSocket client so charts refetch the affected series.
func (a *APIActor) broadcastChange(msg engine.IndicatorChangedMsg) {
	payload, err := json.Marshal(map[string]string{
		"event": msg.Event,
		"id":    msg.ID,
	})
	if err != nil {
		return
	}

	a.wsMu.Lock()
	defer a.wsMu.Unlock()
	for conn := range a.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			a.logger.Debug().Err(err).Msg("WebSocket write error, dropping client")
			conn.Close()
			delete(a.wsClients, conn)
		}
	}
}
