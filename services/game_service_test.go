package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/amirrezam75/coinrace/entities"
	"github.com/amirrezam75/coinrace/game"
	"github.com/amirrezam75/coinrace/schemas"
)

type fakePublisher struct {
	messages chan string
}

func (f *fakePublisher) Publish(_ context.Context, message string) error {
	f.messages <- message
	return nil
}

type fixture struct {
	service   *GameService
	hub       *entities.Hub
	player    *entities.Player
	publisher *fakePublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := entities.NewHub(ctx, 256)
	go hub.Run()

	publisher := &fakePublisher{messages: make(chan string, 16)}
	world := game.NewWorld(game.DefaultConfig(), game.NewFactory(7, nil))
	service := NewGameService(hub, world, publisher, GameServiceOptions{})
	hub.OnMessageReceived = service.OnMessageReceived
	hub.OnPlayerLeft = service.OnPlayerLeft

	player := entities.NewPlayer("p1", nil, 256)
	hub.Subscribe(player)

	return fixture{service: service, hub: hub, player: player, publisher: publisher}
}

// send runs a client frame through the handler and applies the resulting
// command the way the loop would.
func (f fixture) send(t *testing.T, frame string) {
	t.Helper()
	if err := f.service.OnMessageReceived(f.hub, f.player, []byte(frame)); err != nil {
		t.Fatalf("OnMessageReceived(%s): %v", frame, err)
	}
	f.drain()
}

func (f fixture) drain() {
	for {
		select {
		case command := <-f.service.commands:
			f.service.apply(command)
		default:
			return
		}
	}
}

func next(t *testing.T, player *entities.Player, eventType string) schemas.Envelope {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case b := <-player.Message:
			envelope, err := schemas.DecodeEnvelope(b)
			if err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if envelope.Type == eventType {
				return envelope
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func findPlayer(t *testing.T, envelope schemas.Envelope, id string) schemas.PlayerState {
	t.Helper()
	state, err := schemas.DecodePayload[schemas.GameStatePayload](envelope)
	if err != nil {
		t.Fatalf("decode game-state: %v", err)
	}
	for _, p := range state.Players {
		if p.Id == id {
			return p
		}
	}
	t.Fatalf("player %s not in snapshot", id)
	return schemas.PlayerState{}
}

func TestNewPlayerGetsResponseBeforeState(t *testing.T) {
	f := newFixture(t)

	f.send(t, `{"type":"new-player"}`)
	f.service.step()

	b := <-f.player.Message
	envelope, err := schemas.DecodeEnvelope(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Type != schemas.NewPlayerResponse {
		t.Fatalf("first frame = %s, want new-player-response", envelope.Type)
	}

	response, err := schemas.DecodePayload[schemas.NewPlayerResponsePayload](envelope)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.PlayerId != "p1" || response.GameAreaWidth != 600 || response.GameAreaHeight != 400 {
		t.Fatalf("unexpected response %+v", response)
	}

	findPlayer(t, next(t, f.player, schemas.GameState), "p1")
}

func TestInputMovesPlayerBySpeedEachTick(t *testing.T) {
	f := newFixture(t)

	f.send(t, `{"type":"new-player"}`)
	f.service.step()
	spawn := findPlayer(t, next(t, f.player, schemas.GameState), "p1")

	const ticks = 4
	var last schemas.PlayerState
	for i := 0; i < ticks; i++ {
		f.send(t, `{"type":"player-input","payload":{"dx":1,"dy":0}}`)
		f.service.step()
		last = findPlayer(t, next(t, f.player, schemas.GameState), "p1")
	}

	want := spawn.X + 5*ticks
	if limit := 600.0 - 30; want > limit {
		want = limit
	}
	if math.Abs(last.X-want) > 1e-9 || last.Y != spawn.Y {
		t.Fatalf("position after %d ticks = (%v, %v), want (%v, %v)", ticks, last.X, last.Y, want, spawn.Y)
	}
}

func TestMalformedInputIsRejected(t *testing.T) {
	f := newFixture(t)

	frames := []string{
		`{"type":"player-input","payload":{"dx":"left","dy":0}}`,
		`{"type":"player-input","payload":{"dx":1}}`,
		`{"type":"player-input"}`,
		`garbage`,
	}
	for _, frame := range frames {
		err := f.service.OnMessageReceived(f.hub, f.player, []byte(frame))
		if !errors.Is(err, schemas.ErrMalformedMessage) {
			t.Fatalf("frame %s: error = %v, want ErrMalformedMessage", frame, err)
		}
	}

	if len(f.service.commands) != 0 {
		t.Fatalf("malformed frames queued %d commands", len(f.service.commands))
	}
}

func TestUnknownEventIsRejected(t *testing.T) {
	f := newFixture(t)

	err := f.service.OnMessageReceived(f.hub, f.player, []byte(`{"type":"teleport"}`))
	if !errors.Is(err, schemas.ErrUnknownEvent) {
		t.Fatalf("error = %v, want ErrUnknownEvent", err)
	}
}

func TestLeaveRemovesPlayerFromNextSnapshot(t *testing.T) {
	f := newFixture(t)

	f.send(t, `{"type":"new-player"}`)
	f.service.step()

	if err := f.service.OnPlayerLeft(f.hub, f.player); err != nil {
		t.Fatalf("OnPlayerLeft: %v", err)
	}
	f.drain()
	f.service.step()

	snapshot, ok := f.service.Snapshot()
	if !ok {
		t.Fatalf("no snapshot recorded")
	}
	if len(snapshot.Players) != 0 {
		t.Fatalf("players after leave = %+v", snapshot.Players)
	}
}

func TestLifecycleEventsArePublished(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.service.publishLoop(ctx)

	f.send(t, `{"type":"new-player"}`)
	if err := f.service.OnPlayerLeft(f.hub, f.player); err != nil {
		t.Fatalf("OnPlayerLeft: %v", err)
	}
	f.drain()

	for _, want := range []string{`"type":"PlayerJoined"`, `"type":"PlayerLeft"`} {
		select {
		case message := <-f.publisher.messages:
			if !strings.Contains(message, want) || !strings.Contains(message, "p1") {
				t.Fatalf("published %s, want %s for p1", message, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.service.Run(ctx)
	}()

	if err := f.service.OnMessageReceived(f.hub, f.player, []byte(`{"type":"new-player"}`)); err != nil {
		t.Fatalf("OnMessageReceived: %v", err)
	}
	next(t, f.player, schemas.GameState)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop")
	}
}

func TestJoinAndLeaveInOneWindowLeavesNoPlayer(t *testing.T) {
	f := newFixture(t)

	if err := f.service.OnMessageReceived(f.hub, f.player, []byte(`{"type":"new-player"}`)); err != nil {
		t.Fatalf("OnMessageReceived: %v", err)
	}
	if err := f.service.OnPlayerLeft(f.hub, f.player); err != nil {
		t.Fatalf("OnPlayerLeft: %v", err)
	}
	f.drain()

	for i := 0; i < 3; i++ {
		f.service.step()
	}

	snapshot, ok := f.service.Snapshot()
	if !ok {
		t.Fatalf("no snapshot recorded")
	}
	if len(snapshot.Players) != 0 {
		t.Fatalf("players after join and leave in one window = %+v", snapshot.Players)
	}
}

func TestRepeatedNewPlayerIsAnsweredOnce(t *testing.T) {
	f := newFixture(t)

	f.send(t, `{"type":"new-player"}`)
	f.send(t, `{"type":"new-player"}`)
	f.service.step()
	f.send(t, `{"type":"new-player"}`)
	f.service.step()

	responses, states := 0, 0
	timeout := time.After(time.Second)
	for states < 2 {
		select {
		case b := <-f.player.Message:
			envelope, err := schemas.DecodeEnvelope(b)
			if err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			switch envelope.Type {
			case schemas.NewPlayerResponse:
				responses++
			case schemas.GameState:
				states++
			}
		case <-timeout:
			t.Fatalf("timed out after %d game-state frames", states)
		}
	}

	if responses != 1 {
		t.Fatalf("new-player-response sent %d times, want 1", responses)
	}
	if n := len(f.service.events); n != 1 {
		t.Fatalf("published %d events, want a single PlayerJoined", n)
	}
}

func TestResponseRetriedWhenDispatchIsFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// No Run: the dispatch queue is inspected directly.
	hub := entities.NewHub(ctx, 1)
	world := game.NewWorld(game.DefaultConfig(), game.NewFactory(7, nil))
	service := NewGameService(hub, world, nil, GameServiceOptions{})

	hub.Dispatch <- &schemas.DispatcherMessage{Body: []byte("backlog")}

	service.apply(joinCommand{playerId: "p1"})
	if len(service.unanswered) != 1 {
		t.Fatalf("unanswered = %v, want [p1]", service.unanswered)
	}

	<-hub.Dispatch
	service.step()

	message := <-hub.Dispatch
	envelope, err := schemas.DecodeEnvelope(message.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Type != schemas.NewPlayerResponse || len(message.ReceiverIds) != 1 || message.ReceiverIds[0] != "p1" {
		t.Fatalf("first frame after retry = %s to %v, want new-player-response to p1", envelope.Type, message.ReceiverIds)
	}
	if len(service.unanswered) != 0 {
		t.Fatalf("unanswered after retry = %v", service.unanswered)
	}
}

func TestLeaveDropsUnansweredResponse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := entities.NewHub(ctx, 1)
	world := game.NewWorld(game.DefaultConfig(), game.NewFactory(7, nil))
	service := NewGameService(hub, world, nil, GameServiceOptions{})

	hub.Dispatch <- &schemas.DispatcherMessage{Body: []byte("backlog")}

	service.apply(joinCommand{playerId: "p1"})
	service.apply(leaveCommand{playerId: "p1"})

	if len(service.unanswered) != 0 {
		t.Fatalf("unanswered after leave = %v", service.unanswered)
	}
}
