package game

import "slices"

// Config fixes the geometry and pace of a World.
type Config struct {
	Width             float64 `toml:"width"`
	Height            float64 `toml:"height"`
	PlayerWidth       float64 `toml:"player_width"`
	PlayerHeight      float64 `toml:"player_height"`
	CollectibleWidth  float64 `toml:"collectible_width"`
	CollectibleHeight float64 `toml:"collectible_height"`
	// Speed is the distance covered per tick by a unit-length input.
	Speed float64 `toml:"speed"`
}

func DefaultConfig() Config {
	return Config{
		Width:             600,
		Height:            400,
		PlayerWidth:       30,
		PlayerHeight:      30,
		CollectibleWidth:  15,
		CollectibleHeight: 15,
		Speed:             5,
	}
}

func (c Config) Bounds() Bounds {
	return Bounds{Width: c.Width, Height: c.Height}
}

type Player struct {
	ID    string
	X     float64
	Y     float64
	Score int
}

func (p *Player) rect(config Config) Rect {
	return Rect{X: p.X, Y: p.Y, W: config.PlayerWidth, H: config.PlayerHeight}
}

type Collectible struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value int     `json:"value"`
	ID    string  `json:"id"`
}

func (c Collectible) rect(config Config) Rect {
	return Rect{X: c.X, Y: c.Y, W: config.CollectibleWidth, H: config.CollectibleHeight}
}

// Pickup describes the award made during a tick.
type Pickup struct {
	PlayerID    string
	Score       int
	Collected   Collectible
	RespawnedID string // id of the replacement collectible
}

type PlayerState struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score int     `json:"score"`
}

type Snapshot struct {
	Players     []PlayerState `json:"players"`
	Collectible Collectible   `json:"collectible"`
}

// World is the authoritative game state. It is driven by a single goroutine:
// membership changes and inputs are buffered and only Tick mutates players.
type World struct {
	config  Config
	factory *Factory

	// players keeps join order; the collision pass walks it front to back.
	players     []*Player
	inputs      map[string]Input
	joins       []string
	leaves      []string
	collectible Collectible
}

func NewWorld(config Config, factory *Factory) *World {
	return &World{
		config:      config,
		factory:     factory,
		inputs:      make(map[string]Input),
		collectible: factory.NewCollectible(config),
	}
}

func (w *World) Bounds() Bounds {
	return w.config.Bounds()
}

// Len is the number of players currently in the world.
func (w *World) Len() int {
	return len(w.players)
}

// EnqueueJoin queues id to enter the world on the next Tick. It reports
// false for an id that is already pending or already playing and not on its
// way out.
func (w *World) EnqueueJoin(id string) bool {
	if slices.Contains(w.joins, id) {
		return false
	}
	if w.find(id) != nil && !slices.Contains(w.leaves, id) {
		return false
	}

	w.joins = append(w.joins, id)
	return true
}

// EnqueueLeave queues id to be removed on the next Tick. A join for id still
// waiting in the same window is cancelled outright, together with any input
// recorded for it. It reports false when id was neither playing nor pending.
func (w *World) EnqueueLeave(id string) bool {
	if i := slices.Index(w.joins, id); i >= 0 {
		w.joins = slices.Delete(w.joins, i, i+1)
		delete(w.inputs, id)
		return true
	}

	if w.find(id) == nil || slices.Contains(w.leaves, id) {
		return false
	}

	w.leaves = append(w.leaves, id)
	return true
}

// SetInput records the normalized direction for id. Input for an id that is
// neither playing nor about to join is dropped; it usually belongs to a
// player whose leave is already queued.
func (w *World) SetInput(id string, dx, dy float64) {
	if w.find(id) == nil && !slices.Contains(w.joins, id) {
		return
	}

	dx, dy = Normalize(dx, dy)
	w.inputs[id] = Input{DX: dx, DY: dy}
}

// Tick advances the world by one frame and returns the pickup that happened
// during it, if any.
func (w *World) Tick() *Pickup {
	joins, leaves := w.joins, w.leaves
	w.joins, w.leaves = nil, nil

	w.removePlayers(leaves)
	w.addPlayers(joins)
	w.move()

	return w.collect()
}

// Snapshot copies the current state; it never mutates the world.
func (w *World) Snapshot() Snapshot {
	players := make([]PlayerState, 0, len(w.players))
	for _, p := range w.players {
		players = append(players, PlayerState{ID: p.ID, X: p.X, Y: p.Y, Score: p.Score})
	}

	return Snapshot{Players: players, Collectible: w.collectible}
}

func (w *World) removePlayers(ids []string) {
	if len(ids) == 0 {
		return
	}

	kept := w.players[:0]
	for _, p := range w.players {
		if !slices.Contains(ids, p.ID) {
			kept = append(kept, p)
		}
	}
	clear(w.players[len(kept):])
	w.players = kept

	for _, id := range ids {
		delete(w.inputs, id)
	}
}

func (w *World) addPlayers(ids []string) {
	for _, id := range ids {
		if w.find(id) != nil {
			continue
		}

		x, y := w.factory.RandomPosition(w.config.PlayerWidth, w.config.PlayerHeight, w.config.Bounds())
		w.players = append(w.players, &Player{ID: id, X: x, Y: y})
	}
}

func (w *World) move() {
	maxX := w.config.Width - w.config.PlayerWidth
	maxY := w.config.Height - w.config.PlayerHeight

	for _, p := range w.players {
		input, ok := w.inputs[p.ID]
		if !ok {
			continue
		}

		p.X = clamp(p.X+input.DX*w.config.Speed, 0, maxX)
		p.Y = clamp(p.Y+input.DY*w.config.Speed, 0, maxY)
	}
}

// collect awards the collectible to the first overlapping player in join
// order and respawns it. At most one pickup happens per tick.
func (w *World) collect() *Pickup {
	target := w.collectible.rect(w.config)

	for _, p := range w.players {
		if !Overlaps(p.rect(w.config), target) {
			continue
		}

		collected := w.collectible
		p.Score += collected.Value
		w.collectible = w.factory.NewCollectible(w.config)

		return &Pickup{
			PlayerID:    p.ID,
			Score:       p.Score,
			Collected:   collected,
			RespawnedID: w.collectible.ID,
		}
	}

	return nil
}

func (w *World) find(id string) *Player {
	for _, p := range w.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}
