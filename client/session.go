package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirrezam75/coinrace/game"
	"github.com/amirrezam75/coinrace/pkg/logx"
	"github.com/amirrezam75/coinrace/schemas"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrHandshake    = errors.New("invalid new-player-response")
	ErrInvalidState = errors.New("invalid game-state")
)

const (
	stateLogInterval = 2 * time.Second
	unknownRank      = "Rank: ?/?"
)

// Conn is the part of *websocket.Conn a session uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// View is what a client renders after each game-state.
type View struct {
	// Me is nil while the server has not placed us yet.
	Me          *schemas.PlayerState
	Others      []schemas.PlayerState
	Collectible schemas.CollectibleState
	Rank        string
}

type Session struct {
	conn Conn

	// mutex guards everything below plus writes to conn.
	mutex          sync.Mutex
	started        bool
	playerId       string
	gameAreaWidth  float64
	gameAreaHeight float64
	keys           KeyState

	now         func() time.Time
	lastStateAt time.Time
}

func Dial(ctx context.Context, url string) (*Session, error) {
	connection, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return NewSession(connection), nil
}

func NewSession(conn Conn) *Session {
	return &Session{conn: conn, now: time.Now}
}

// Run announces the player and handles frames until ctx is cancelled, the
// connection drops or the server sends something the session cannot use.
// onView is called from the reading goroutine.
func (session *Session) Run(ctx context.Context, onView func(View)) error {
	if err := session.send(schemas.NewPlayer, nil); err != nil {
		return err
	}
	logx.Logger.Infow("new-player sent")

	stop := context.AfterFunc(ctx, func() {
		_ = session.conn.Close()
	})
	defer stop()

	for {
		_, message, err := session.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		view, err := session.Handle(message)
		if err != nil {
			if errors.Is(err, ErrHandshake) || errors.Is(err, ErrInvalidState) {
				return err
			}
			logx.Logger.Warnw(err.Error(), zap.String("desc", "could not handle server message"))
			continue
		}

		if view != nil && onView != nil {
			onView(*view)
		}
	}
}

// Handle applies one server frame. It returns a view for every game-state
// received after the handshake and nil otherwise.
func (session *Session) Handle(message []byte) (*View, error) {
	envelope, err := schemas.DecodeEnvelope(message)
	if err != nil {
		return nil, err
	}

	switch envelope.Type {
	case schemas.NewPlayerResponse:
		return nil, session.handshake(envelope)
	case schemas.GameState:
		return session.state(envelope)
	default:
		logx.Logger.Debugw("ignoring server event", zap.String("type", envelope.Type))
		return nil, nil
	}
}

func (session *Session) handshake(envelope schemas.Envelope) error {
	response, err := schemas.DecodePayload[schemas.NewPlayerResponsePayload](envelope)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	switch {
	case response.GameAreaWidth == 0:
		return fmt.Errorf("%w: missing gameAreaWidth", ErrHandshake)
	case response.GameAreaHeight == 0:
		return fmt.Errorf("%w: missing gameAreaHeight", ErrHandshake)
	case response.PlayerId == "":
		return fmt.Errorf("%w: missing playerId", ErrHandshake)
	}

	logx.Logger.Infow(
		"new-player-response received",
		zap.String("playerId", response.PlayerId),
		zap.Float64("gameAreaWidth", response.GameAreaWidth),
		zap.Float64("gameAreaHeight", response.GameAreaHeight),
	)

	session.mutex.Lock()
	defer session.mutex.Unlock()

	session.playerId = response.PlayerId
	session.gameAreaWidth = response.GameAreaWidth
	session.gameAreaHeight = response.GameAreaHeight
	session.started = true

	// The server only starts listening to us now, so send whatever is held.
	return session.sendKeysLocked()
}

func (session *Session) state(envelope schemas.Envelope) (*View, error) {
	session.mutex.Lock()
	started, playerId := session.started, session.playerId
	session.mutex.Unlock()

	if !started {
		return nil, nil
	}

	state, err := schemas.DecodePayload[schemas.GameStatePayload](envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if state.Players == nil {
		return nil, fmt.Errorf("%w: missing players", ErrInvalidState)
	}
	if state.Collectible == nil {
		return nil, fmt.Errorf("%w: missing collectible", ErrInvalidState)
	}

	if now := session.now(); now.Sub(session.lastStateAt) > stateLogInterval {
		logx.Logger.Infow(
			"game state",
			zap.Int("players", len(state.Players)),
			zap.String("collectibleId", state.Collectible.Id),
			zap.Int("collectibleValue", state.Collectible.Value),
		)
		session.lastStateAt = now
	}

	view := &View{
		Others:      make([]schemas.PlayerState, 0, len(state.Players)),
		Collectible: *state.Collectible,
		Rank:        unknownRank,
	}

	for i := range state.Players {
		if state.Players[i].Id == playerId {
			me := state.Players[i]
			view.Me = &me
			continue
		}
		view.Others = append(view.Others, state.Players[i])
	}

	if view.Me != nil {
		others := make([]game.Standing, len(view.Others))
		for i, p := range view.Others {
			others[i] = game.Standing{ID: p.Id, Score: p.Score}
		}
		view.Rank = game.Rank(game.Standing{ID: view.Me.Id, Score: view.Me.Score}, others)
	}

	return view, nil
}

// Press marks key as held. Input is sent only when this changes the key
// state and the handshake is done; repeats of a held key are dropped.
func (session *Session) Press(key Key) error {
	return session.setKey(key, true)
}

func (session *Session) Release(key Key) error {
	return session.setKey(key, false)
}

func (session *Session) setKey(key Key, down bool) error {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	if !session.keys.set(key, down) || !session.started {
		return nil
	}

	return session.sendKeysLocked()
}

func (session *Session) sendKeysLocked() error {
	dx, dy := session.keys.Direction()
	return session.writeLocked(schemas.PlayerInput, schemas.PlayerInputRequest{Dx: &dx, Dy: &dy})
}

// SendInput sends a raw direction, bypassing the key state.
func (session *Session) SendInput(dx, dy float64) error {
	return session.send(schemas.PlayerInput, schemas.PlayerInputRequest{Dx: &dx, Dy: &dy})
}

func (session *Session) send(eventType string, payload any) error {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	return session.writeLocked(eventType, payload)
}

func (session *Session) writeLocked(eventType string, payload any) error {
	body, err := schemas.Encode(eventType, payload)
	if err != nil {
		return err
	}

	if err := session.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return fmt.Errorf("write %s: %w", eventType, err)
	}

	return nil
}

// PlayerId is empty until the handshake completes.
func (session *Session) PlayerId() string {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	return session.playerId
}

func (session *Session) GameArea() (float64, float64) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	return session.gameAreaWidth, session.gameAreaHeight
}

func (session *Session) Close() error {
	return session.conn.Close()
}
