package entities

import (
	"context"

	"github.com/amirrezam75/coinrace/pkg/logx"
	"github.com/amirrezam75/coinrace/pkg/syncx"
	"github.com/amirrezam75/coinrace/schemas"
	"go.uber.org/zap"
)

type Hub struct {
	Players syncx.Map[string, *Player]

	Context context.Context

	// Dispatch is drained by Run. Senders never block on it: a full queue
	// drops the message.
	Dispatch chan *schemas.DispatcherMessage
	// OnMessageReceived gets every raw frame a player sends. Decoding and
	// validation are up to the handler; a returned error is logged and the
	// connection stays open.
	OnMessageReceived MessageReceivedHandler
	OnPlayerLeft      PlayerLeftHandler
}

type MessageReceivedHandler func(hub *Hub, player *Player, message []byte) error
type PlayerLeftHandler func(hub *Hub, player *Player) error

// NewHub creates a hub that shuts down when ctx is cancelled.
func NewHub(ctx context.Context, dispatchBufferSize int) *Hub {
	// Zero or negative values could cause unbuffered channels or panics
	bufferSize := dispatchBufferSize

	if bufferSize <= 0 {
		bufferSize = 500
	}

	return &Hub{
		Context:  ctx,
		Dispatch: make(chan *schemas.DispatcherMessage, bufferSize),
	}
}

// Run delivers dispatched messages until the hub context is cancelled, then
// kicks every player.
func (hub *Hub) Run() {
	for {
		select {
		case <-hub.Context.Done():
			hub.Players.Range(func(playerId string, player *Player) bool {
				player.Kick()
				return true
			})
			return
		case message := <-hub.Dispatch:
			hub.deliver(message)
		}
	}
}

func (hub *Hub) deliver(message *schemas.DispatcherMessage) {
	if len(message.ReceiverIds) == 0 {
		hub.Players.Range(func(playerId string, player *Player) bool {
			hub.send(player, message.Body)
			return true
		})
		return
	}

	for _, receiverId := range message.ReceiverIds {
		if player, ok := hub.Players.Load(receiverId); ok {
			hub.send(player, message.Body)
		}
	}
}

func (hub *Hub) send(player *Player, body []byte) {
	if !player.Send(body) {
		logx.Logger.Debugw(
			"dropped message for slow or closed player",
			zap.String("playerId", player.Id),
		)
	}
}

// Broadcast queues body for every connected player.
func (hub *Hub) Broadcast(body []byte) bool {
	return hub.enqueue(&schemas.DispatcherMessage{Body: body})
}

// SendTo queues body for the given players only.
func (hub *Hub) SendTo(body []byte, receiverIds ...string) bool {
	if len(receiverIds) == 0 {
		return false
	}
	return hub.enqueue(&schemas.DispatcherMessage{ReceiverIds: receiverIds, Body: body})
}

func (hub *Hub) enqueue(message *schemas.DispatcherMessage) bool {
	select {
	case hub.Dispatch <- message:
		return true
	default:
		logx.Logger.Warnw("hub dispatch queue is full, dropping message")
		return false
	}
}

func (hub *Hub) Subscribe(player *Player) {
	hub.Players.Store(player.Id, player)
}

// Unsubscribe removes the player and fires OnPlayerLeft once, however many
// times it is called.
func (hub *Hub) Unsubscribe(player *Player) {
	if _, ok := hub.Players.LoadAndDelete(player.Id); !ok {
		return
	}

	if hub.OnPlayerLeft == nil {
		return
	}

	if err := hub.OnPlayerLeft(hub, player); err != nil {
		logx.Logger.Errorw(
			err.Error(),
			zap.String("desc", "could not handle player leave"),
			zap.String("playerId", player.Id),
		)
	}
}

func (hub *Hub) FindPlayer(id string) *Player {
	player, exists := hub.Players.Load(id)

	if !exists {
		return nil
	}

	return player
}
