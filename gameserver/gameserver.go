package gameserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/amirrezam75/coinrace/entities"
	"github.com/amirrezam75/coinrace/game"
	"github.com/amirrezam75/coinrace/handlers"
	"github.com/amirrezam75/coinrace/pkg/logx"
	"github.com/amirrezam75/coinrace/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GameServer encapsulates all game server functionality
type GameServer struct {
	config      Config
	router      *chi.Mux
	hub         *entities.Hub
	gameService *services.GameService
	publisher   services.Publisher
}

// NewGameServer creates a new game server with the provided configuration.
// Nothing runs until Run is called; cancelling ctx stops the hub. The caller
// sets up logx first.
func NewGameServer(ctx context.Context, config Config) *GameServer {
	hub := entities.NewHub(ctx, config.Loop.DispatchBufferSize)

	world := game.NewWorld(config.Game, game.NewFactory(time.Now().UnixNano(), nil))

	var publisher services.Publisher = services.NopPublisher{}
	if redis := config.Publisher.Redis; redis.Host != "" {
		publisher = services.NewPublisherService(redis.Host, redis.Port, redis.Password, redis.Channel)
	}

	gameService := services.NewGameService(hub, world, publisher, services.GameServiceOptions{
		TickRate:          config.Loop.TickRate,
		CommandBufferSize: config.Loop.CommandBufferSize,
		EventBufferSize:   config.Loop.EventBufferSize,
		SendBufferSize:    config.Loop.SendBufferSize,
	})

	hub.OnMessageReceived = gameService.OnMessageReceived
	hub.OnPlayerLeft = gameService.OnPlayerLeft

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: config.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	handlers.NewGameHandler(router, gameService, config.Server.AllowedOrigins)

	return &GameServer{
		config:      config,
		router:      router,
		hub:         hub,
		gameService: gameService,
		publisher:   publisher,
	}
}

// Run serves HTTP and runs the hub and the tick loop until ctx is cancelled
// or one of them fails.
func (gs *GameServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              gs.config.Server.Address,
		Handler:           gs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The hub lives on the context given to NewGameServer.
	go gs.hub.Run()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return gs.gameService.Run(ctx)
	})

	eg.Go(func() error {
		logx.Logger.Infow("listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), gs.config.Server.ShutdownTimeout)
		defer cancel()

		// Upgraded connections are hijacked, so Shutdown does not wait for
		// them. Kick closes them explicitly.
		gs.Shutdown()

		return server.Shutdown(shutdownCtx)
	})

	err := eg.Wait()

	if closer, ok := gs.publisher.(io.Closer); ok {
		if closeErr := closer.Close(); closeErr != nil {
			logx.Logger.Warnw(closeErr.Error(), zap.String("desc", "could not close publisher"))
		}
	}

	return err
}

// GetRouter returns the configured router
func (gs *GameServer) GetRouter() *chi.Mux {
	return gs.router
}

// GetHub returns the hub instance
func (gs *GameServer) GetHub() *entities.Hub {
	return gs.hub
}

func (gs *GameServer) GetGameService() *services.GameService {
	return gs.gameService
}

// Shutdown kicks every connected player.
// Note: Hub will also do this when its context is cancelled
func (gs *GameServer) Shutdown() {
	gs.hub.Players.Range(func(playerId string, player *entities.Player) bool {
		player.Kick()
		return true
	})
}
