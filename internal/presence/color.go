package presence

import (
	"hash/fnv"
	"math"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
)

const goldenRatio = 0.618033988749895

// ColorGenerator: hands out well-separated presence colors for one room.
// Each room starts the golden ratio walk at its own hue, so the first user in
// two different rooms does not always get the same color.
type ColorGenerator struct {
	offset  float64
	counter int
	mu      sync.Mutex
}

// NewColorGenerator: sequence seeded by the room id
func NewColorGenerator(roomID string) *ColorGenerator {
	return &ColorGenerator{offset: HueOffset(roomID)}
}

// NextColor: next color in the golden ratio hue sequence
func (cg *ColorGenerator) NextColor() string {
	cg.mu.Lock()
	defer cg.mu.Unlock()

	c := ColorAt(cg.counter, cg.offset)
	cg.counter++
	return c
}

// HueOffset: stable fraction of the hue circle in [0, 1) derived from roomID
func HueOffset(roomID string) float64 {
	if roomID == "" {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return float64(h.Sum32()) / (1 << 32)
}

// ColorAt: i-th color of the sequence starting at offset
func ColorAt(i int, offset float64) string {
	_, hue := math.Modf(offset + float64(i)*goldenRatio)

	return colorful.Hsl(hue*360, 0.85, 0.55).Hex()
}
