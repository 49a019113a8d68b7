package entities

import (
	"sync"
	"time"

	"github.com/amirrezam75/coinrace/pkg/logx"
	"github.com/gorilla/websocket"

	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
)

// Player is one websocket connection. Its Id doubles as the id of the
// player it controls in the world.
type Player struct {
	Id          string
	IsConnected bool
	// To keep track of closed channel
	IsClosed   bool
	Connection *websocket.Conn
	Message    chan []byte
	mutex      sync.Mutex
}

func NewPlayer(id string, connection *websocket.Conn, bufferSize int) *Player {
	if bufferSize <= 0 {
		bufferSize = 16
	}

	return &Player{
		Id:          id,
		IsConnected: connection != nil,
		Connection:  connection,
		Message:     make(chan []byte, bufferSize),
	}
}

// Kick closes the outgoing queue and the connection. It is safe to call
// more than once and from several goroutines.
func (player *Player) Kick() {
	// https://go101.org/article/channel-closing.html
	player.mutex.Lock()

	defer player.mutex.Unlock()

	if !player.IsClosed {
		close(player.Message)
		player.IsClosed = true
	}

	// Players built in tests have no connection.
	if player.Connection != nil && player.IsConnected {
		err := player.Connection.Close()

		if err != nil {
			logx.Logger.Errorw(
				err.Error(),
				zap.String("desc", "could not close player connection"),
				zap.String("playerId", player.Id),
			)
		}
	}

	player.IsConnected = false
}

// Send queues body without blocking. It reports false when the player is
// gone or too slow to keep up, in which case the frame is dropped.
func (player *Player) Send(body []byte) bool {
	player.mutex.Lock()
	defer player.mutex.Unlock()

	if player.IsClosed {
		return false
	}

	select {
	case player.Message <- body:
		return true
	default:
		return false
	}
}

func (player *Player) Write() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		player.Kick()
	}()

	for {
		select {
		case message, ok := <-player.Message:
			_ = player.Connection.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				logx.Logger.Infow(
					"player channel is closed!",
					zap.String("playerId", player.Id),
				)
				_ = player.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			err := player.Connection.WriteMessage(websocket.TextMessage, message)

			if err != nil {
				logx.Logger.Errorw(
					err.Error(),
					zap.String("desc", "could not write player message"),
					zap.String("playerId", player.Id),
				)
				return
			}
		case <-ticker.C:
			_ = player.Connection.SetWriteDeadline(time.Now().Add(writeWait))

			if err := player.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Read pumps incoming frames into the hub until the connection drops, then
// unsubscribes the player.
func (player *Player) Read(hub *Hub) {
	defer func() {
		player.Kick()
		hub.Unsubscribe(player)
	}()

	player.Connection.SetReadLimit(maxMessageSize)
	_ = player.Connection.SetReadDeadline(time.Now().Add(pongWait))
	player.Connection.SetPongHandler(func(string) error {
		return player.Connection.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := player.Connection.ReadMessage()

		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logx.Logger.Errorw(
					err.Error(),
					zap.String("desc", "could not read player message"),
					zap.String("playerId", player.Id),
				)
			} else {
				logx.Logger.Infow(
					"player disconnected",
					zap.String("playerId", player.Id),
					zap.String("reason", err.Error()),
				)
			}
			break
		}

		react(player, message, hub)
	}
}

func react(player *Player, message []byte, hub *Hub) {
	if hub.OnMessageReceived == nil {
		return
	}

	err := hub.OnMessageReceived(hub, player, message)

	if err != nil {
		logx.Logger.Warnw(
			err.Error(),
			zap.String("desc", "could not handle incoming message"),
			zap.String("playerId", player.Id),
		)
	}
}
