package schemas

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names carried in Envelope.Type.
const (
	// client -> server
	NewPlayer   = "new-player"
	PlayerInput = "player-input"

	// server -> client
	NewPlayerResponse = "new-player-response"
	GameState         = "game-state"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownEvent     = errors.New("unknown event")
)

// Envelope wraps every frame in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type PlayerInputRequest struct {
	Dx *float64 `json:"dx"`
	Dy *float64 `json:"dy"`
}

type NewPlayerResponsePayload struct {
	GameAreaWidth  float64 `json:"gameAreaWidth"`
	GameAreaHeight float64 `json:"gameAreaHeight"`
	PlayerId       string  `json:"playerId"`
}

type PlayerState struct {
	Id    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score int     `json:"score"`
}

type CollectibleState struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value int     `json:"value"`
	Id    string  `json:"id"`
}

// GameStatePayload is the decoding side of a game-state frame. Missing
// fields stay nil so receivers can tell them apart from empty ones.
type GameStatePayload struct {
	Players     []PlayerState     `json:"players"`
	Collectible *CollectibleState `json:"collectible"`
}

func Encode(eventType string, payload any) ([]byte, error) {
	if eventType == "" {
		return nil, fmt.Errorf("trying to encode envelope with empty type")
	}

	e := Envelope{Type: eventType}

	if payload != nil {
		p, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		e.Payload = p
	}

	return json.Marshal(e)
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty frame", ErrMalformedMessage)
	}

	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if e.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	return e, nil
}

// DecodePlayerInput accepts only payloads where both dx and dy are present
// and numeric.
func DecodePlayerInput(e Envelope) (float64, float64, error) {
	if len(e.Payload) == 0 {
		return 0, 0, fmt.Errorf("%w: player-input without payload", ErrMalformedMessage)
	}

	var request PlayerInputRequest
	if err := json.Unmarshal(e.Payload, &request); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if request.Dx == nil || request.Dy == nil {
		return 0, 0, fmt.Errorf("%w: player-input requires numeric dx and dy", ErrMalformedMessage)
	}

	return *request.Dx, *request.Dy, nil
}

func DecodePayload[T any](e Envelope) (T, error) {
	var out T
	if len(e.Payload) == 0 {
		return out, fmt.Errorf("%w: empty payload for type %q", ErrMalformedMessage, e.Type)
	}

	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	return out, nil
}
