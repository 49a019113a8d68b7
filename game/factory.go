package game

import (
	crand "crypto/rand"
	"io"
	"math/rand"
	"strconv"

	"github.com/amirrezam75/coinrace/pkg/logx"
	"go.uber.org/zap"
)

// valueChoices gives bronze (1) three chances, silver (2) two and gold (3) one.
var valueChoices = [...]int{1, 1, 1, 2, 2, 3}

// Bounds is the playable area. An entity of size w×h is inside it when
// x ∈ [0, Width-w] and y ∈ [0, Height-h].
type Bounds struct {
	Width  float64
	Height float64
}

// Factory produces spawn positions, collectible values and collectible ids.
// It is owned by a single World and is not safe for concurrent use.
type Factory struct {
	positions *rand.Rand
	// Values must not be guessable from a seed, otherwise a client could
	// predict which coin spawns next.
	values io.Reader
	nextID uint64
}

// NewFactory seeds the position source with seed. A nil values reader means
// crypto/rand.
func NewFactory(seed int64, values io.Reader) *Factory {
	if values == nil {
		values = crand.Reader
	}

	return &Factory{
		positions: rand.New(rand.NewSource(seed)),
		values:    values,
		nextID:    1,
	}
}

// RandomPosition returns a uniform top-left corner that keeps an entity of
// the given size inside bounds.
func (f *Factory) RandomPosition(entityWidth, entityHeight float64, bounds Bounds) (float64, float64) {
	x := (bounds.Width - entityWidth) * f.positions.Float64()
	y := (bounds.Height - entityHeight) * f.positions.Float64()
	return x, y
}

// NextValue draws from valueChoices by rejection sampling on the low three
// bits of a byte, which keeps the 3:2:1 weighting free of modulo bias.
func (f *Factory) NextValue() int {
	var b [1]byte
	for {
		if _, err := io.ReadFull(f.values, b[:]); err != nil {
			logx.Logger.Errorw(
				err.Error(),
				zap.String("desc", "could not draw collectible value, falling back to 1"),
			)
			return valueChoices[0]
		}

		if n := int(b[0] & 7); n < len(valueChoices) {
			return valueChoices[n]
		}
	}
}

// NextID returns the next collectible id, counting up from "1".
func (f *Factory) NextID() string {
	id := strconv.FormatUint(f.nextID, 10)
	f.nextID++
	return id
}

// NewCollectible places a fresh collectible with a new value and id.
func (f *Factory) NewCollectible(config Config) Collectible {
	value := f.NextValue()
	x, y := f.RandomPosition(config.CollectibleWidth, config.CollectibleHeight, config.Bounds())

	return Collectible{
		X:     x,
		Y:     y,
		Value: value,
		ID:    f.NextID(),
	}
}
