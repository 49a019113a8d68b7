package schemas

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEventNames(t *testing.T) {
	names := map[string]string{
		NewPlayer:         "new-player",
		PlayerInput:       "player-input",
		NewPlayerResponse: "new-player-response",
		GameState:         "game-state",
	}
	for got, want := range names {
		if got != want {
			t.Fatalf("event name = %q, want %q", got, want)
		}
	}
}

func TestDecodePlayerInput(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantDx  float64
		wantDy  float64
		wantErr bool
	}{
		{"valid", `{"type":"player-input","payload":{"dx":1,"dy":-0.5}}`, 1, -0.5, false},
		{"out of range still numeric", `{"type":"player-input","payload":{"dx":40,"dy":0}}`, 40, 0, false},
		{"missing dy", `{"type":"player-input","payload":{"dx":1}}`, 0, 0, true},
		{"null dx", `{"type":"player-input","payload":{"dx":null,"dy":0}}`, 0, 0, true},
		{"string dx", `{"type":"player-input","payload":{"dx":"1","dy":0}}`, 0, 0, true},
		{"boolean dy", `{"type":"player-input","payload":{"dx":0,"dy":true}}`, 0, 0, true},
		{"no payload", `{"type":"player-input"}`, 0, 0, true},
		{"payload not an object", `{"type":"player-input","payload":[1,2]}`, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := DecodeEnvelope([]byte(tt.frame))
			if err != nil {
				t.Fatalf("decode envelope: %v", err)
			}

			dx, dy, err := DecodePlayerInput(e)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedMessage) {
					t.Fatalf("expected ErrMalformedMessage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dx != tt.wantDx || dy != tt.wantDy {
				t.Fatalf("got (%v, %v), want (%v, %v)", dx, dy, tt.wantDx, tt.wantDy)
			}
		})
	}
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	for _, frame := range []string{"", "not json", `{"payload":{}}`, `[]`} {
		if _, err := DecodeEnvelope([]byte(frame)); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("DecodeEnvelope(%q) error = %v, want ErrMalformedMessage", frame, err)
		}
	}
}

func TestEncodeWithoutPayload(t *testing.T) {
	b, err := Encode(NewPlayer, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(b) != `{"type":"new-player"}` {
		t.Fatalf("encoded %s", b)
	}
}

func TestNewPlayerResponseRoundTrip(t *testing.T) {
	b, err := Encode(NewPlayerResponse, NewPlayerResponsePayload{
		GameAreaWidth:  600,
		GameAreaHeight: 400,
		PlayerId:       "abc",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	e, err := DecodeEnvelope(b)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if e.Type != NewPlayerResponse {
		t.Fatalf("type = %q", e.Type)
	}

	var raw map[string]any
	if err := json.Unmarshal(e.Payload, &raw); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	for _, key := range []string{"gameAreaWidth", "gameAreaHeight", "playerId"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("payload missing %q: %s", key, e.Payload)
		}
	}
}

func TestGameStatePayloadDistinguishesMissingFields(t *testing.T) {
	e, err := DecodeEnvelope([]byte(`{"type":"game-state","payload":{"players":[]}}`))
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}

	state, err := DecodePayload[GameStatePayload](e)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if state.Players == nil {
		t.Fatalf("empty players array decoded as missing")
	}
	if state.Collectible != nil {
		t.Fatalf("missing collectible decoded as present")
	}
}

func TestCoinCollectedEvent(t *testing.T) {
	message, err := CoinCollectedEvent("p1", "7", 3, 12)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var event PublisherEvent
	if err := json.Unmarshal([]byte(message), &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Type != "CoinCollected" {
		t.Fatalf("type = %q", event.Type)
	}
	if event.Content != `{"playerId":"p1","collectibleId":"7","value":3,"score":12}` {
		t.Fatalf("content = %s", event.Content)
	}
}
