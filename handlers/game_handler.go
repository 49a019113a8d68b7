package handlers

import (
	"net/http"
	"slices"

	"github.com/amirrezam75/coinrace/game"
	"github.com/amirrezam75/coinrace/pkg/logx"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// GameService is the part of services.GameService the routes need.
type GameService interface {
	Connect(connection *websocket.Conn) func()
	Snapshot() (game.Snapshot, bool)
}

type ErrorResponse struct {
	Message string `json:"message"`
}

type GameHandler struct {
	gameService GameService
	upgrader    websocket.Upgrader
}

func NewGameHandler(router chi.Router, gameService GameService, allowedOrigins []string) {
	gameHandler := GameHandler{
		gameService: gameService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}

	router.Get("/ws", gameHandler.join)
	router.Get("/state", gameHandler.state)
	router.Get("/health", gameHandler.health)
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients), any origin when "*" is listed, and otherwise exact matches.
func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowedOrigins, "*") {
			return true
		}
		return slices.Contains(allowedOrigins, origin)
	}
}

func (gameHandler GameHandler) join(w http.ResponseWriter, r *http.Request) {
	connection, err := gameHandler.upgrader.Upgrade(w, r, nil)

	if err != nil {
		// Upgrade has already written the error response.
		logx.Logger.Errorw(
			err.Error(),
			zap.String("desc", "could not upgrade http request"),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	reader := gameHandler.gameService.Connect(connection)

	reader()
}

func (gameHandler GameHandler) state(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snapshot, ok := gameHandler.gameService.Snapshot()
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		encode(ErrorResponse{Message: "Game has not ticked yet."}, w)
		return
	}

	w.WriteHeader(http.StatusOK)
	encode(snapshot, w)
}

func (gameHandler GameHandler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
