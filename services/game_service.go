package services

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/amirrezam75/coinrace/entities"
	"github.com/amirrezam75/coinrace/game"
	"github.com/amirrezam75/coinrace/pkg/logx"
	"github.com/amirrezam75/coinrace/schemas"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type GameServiceOptions struct {
	TickRate          time.Duration
	CommandBufferSize int
	EventBufferSize   int
	SendBufferSize    int
}

// GameService runs the authoritative loop. Connection goroutines only queue
// commands; the loop goroutine is the sole owner of the world.
type GameService struct {
	hub        *entities.Hub
	world      *game.World
	publisher  Publisher
	tickRate   time.Duration
	sendBuffer int
	commands   chan any
	events     chan string
	latest     atomic.Pointer[game.Snapshot]
	// unanswered holds joined players whose new-player-response could not be
	// queued yet. Owned by the loop goroutine.
	unanswered []string
}

type joinCommand struct {
	playerId string
}

type leaveCommand struct {
	playerId string
}

type inputCommand struct {
	playerId string
	dx, dy   float64
}

func NewGameService(hub *entities.Hub, world *game.World, publisher Publisher, options GameServiceOptions) *GameService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if options.TickRate <= 0 {
		options.TickRate = time.Second / 60
	}
	if options.CommandBufferSize <= 0 {
		options.CommandBufferSize = 256
	}
	if options.EventBufferSize <= 0 {
		options.EventBufferSize = 64
	}

	return &GameService{
		hub:        hub,
		world:      world,
		publisher:  publisher,
		tickRate:   options.TickRate,
		sendBuffer: options.SendBufferSize,
		commands:   make(chan any, options.CommandBufferSize),
		events:     make(chan string, options.EventBufferSize),
	}
}

// Connect registers a freshly upgraded connection and starts its writer.
// The returned function runs the reader and blocks until the connection
// closes.
func (gameService *GameService) Connect(connection *websocket.Conn) func() {
	player := entities.NewPlayer(bson.NewObjectID().Hex(), connection, gameService.sendBuffer)

	gameService.hub.Subscribe(player)

	logx.Logger.Infow("player connected", zap.String("playerId", player.Id))

	go player.Write()

	return func() {
		player.Read(gameService.hub)
	}
}

// OnMessageReceived validates a client frame and queues it for the loop.
func (gameService *GameService) OnMessageReceived(hub *entities.Hub, player *entities.Player, message []byte) error {
	envelope, err := schemas.DecodeEnvelope(message)
	if err != nil {
		return err
	}

	switch envelope.Type {
	case schemas.NewPlayer:
		logx.Logger.Infow("new-player received", zap.String("playerId", player.Id))
		return gameService.enqueue(joinCommand{playerId: player.Id})
	case schemas.PlayerInput:
		dx, dy, err := schemas.DecodePlayerInput(envelope)
		if err != nil {
			return fmt.Errorf("player-input: %w", err)
		}
		return gameService.enqueue(inputCommand{playerId: player.Id, dx: dx, dy: dy})
	default:
		return fmt.Errorf("%w: %q", schemas.ErrUnknownEvent, envelope.Type)
	}
}

func (gameService *GameService) OnPlayerLeft(hub *entities.Hub, player *entities.Player) error {
	return gameService.enqueue(leaveCommand{playerId: player.Id})
}

func (gameService *GameService) enqueue(command any) error {
	select {
	case gameService.commands <- command:
		return nil
	case <-gameService.hub.Context.Done():
		return gameService.hub.Context.Err()
	}
}

// Run ticks the world at the configured rate and forwards lifecycle events
// to the publisher until ctx is cancelled.
func (gameService *GameService) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return gameService.loop(ctx)
	})
	eg.Go(func() error {
		gameService.publishLoop(ctx)
		return nil
	})

	return eg.Wait()
}

// Snapshot returns the state sent with the latest tick.
func (gameService *GameService) Snapshot() (game.Snapshot, bool) {
	snapshot := gameService.latest.Load()
	if snapshot == nil {
		return game.Snapshot{}, false
	}
	return *snapshot, true
}

func (gameService *GameService) loop(ctx context.Context) error {
	ticker := time.NewTicker(gameService.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case command := <-gameService.commands:
			gameService.apply(command)
		case <-ticker.C:
			gameService.step()
		}
	}
}

func (gameService *GameService) apply(command any) {
	switch c := command.(type) {
	case joinCommand:
		if !gameService.world.EnqueueJoin(c.playerId) {
			logx.Logger.Debugw("ignoring repeated new-player", zap.String("playerId", c.playerId))
			return
		}
		if !gameService.respond(c.playerId) {
			gameService.unanswered = append(gameService.unanswered, c.playerId)
		}
		gameService.publish(schemas.PlayerJoinedEvent(c.playerId))
	case leaveCommand:
		gameService.unanswered = slices.DeleteFunc(gameService.unanswered, func(id string) bool {
			return id == c.playerId
		})
		if gameService.world.EnqueueLeave(c.playerId) {
			gameService.publish(schemas.PlayerLeftEvent(c.playerId))
		}
	case inputCommand:
		gameService.world.SetInput(c.playerId, c.dx, c.dy)
	}
}

// respond queues the new-player-response for playerId and reports whether
// the hub accepted it.
func (gameService *GameService) respond(playerId string) bool {
	bounds := gameService.world.Bounds()

	body, err := schemas.Encode(schemas.NewPlayerResponse, schemas.NewPlayerResponsePayload{
		GameAreaWidth:  bounds.Width,
		GameAreaHeight: bounds.Height,
		PlayerId:       playerId,
	})
	if err != nil {
		logx.Logger.Errorw(
			err.Error(),
			zap.String("desc", "could not encode new-player-response"),
			zap.String("playerId", playerId),
		)
		return true
	}

	if !gameService.hub.SendTo(body, playerId) {
		logx.Logger.Warnw(
			"could not queue new-player-response, retrying next tick",
			zap.String("playerId", playerId),
		)
		return false
	}

	return true
}

// retryResponses runs before each broadcast so a delayed response still
// goes out ahead of that tick's state.
func (gameService *GameService) retryResponses() {
	if len(gameService.unanswered) == 0 {
		return
	}

	pending := gameService.unanswered
	gameService.unanswered = nil
	for _, playerId := range pending {
		if !gameService.respond(playerId) {
			gameService.unanswered = append(gameService.unanswered, playerId)
		}
	}
}

// step runs one tick and broadcasts the result.
func (gameService *GameService) step() {
	gameService.retryResponses()

	pickup := gameService.world.Tick()
	snapshot := gameService.world.Snapshot()
	gameService.latest.Store(&snapshot)

	body, err := schemas.Encode(schemas.GameState, snapshot)
	if err != nil {
		logx.Logger.Errorw(err.Error(), zap.String("desc", "could not encode game-state"))
	} else {
		gameService.hub.Broadcast(body)
	}

	if pickup != nil {
		logx.Logger.Debugw(
			"collectible picked up",
			zap.String("playerId", pickup.PlayerID),
			zap.String("collectibleId", pickup.Collected.ID),
			zap.Int("value", pickup.Collected.Value),
		)
		gameService.publish(schemas.CoinCollectedEvent(
			pickup.PlayerID,
			pickup.Collected.ID,
			pickup.Collected.Value,
			pickup.Score,
		))
	}
}

// publish hands message to the publisher goroutine. The loop never waits
// on the broker; a full queue drops the event.
func (gameService *GameService) publish(message string, err error) {
	if err != nil {
		logx.Logger.Errorw(err.Error(), zap.String("desc", "could not encode publisher event"))
		return
	}

	select {
	case gameService.events <- message:
	default:
		logx.Logger.Warnw("publisher queue is full, dropping event", zap.String("message", message))
	}
}

func (gameService *GameService) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-gameService.events:
			_ = gameService.publisher.Publish(ctx, message)
		}
	}
}
