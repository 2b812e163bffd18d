package sensor

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Reading is one synthetic sensor sample.
type Reading struct {
	SensorID    string    `json:"sensor_id"`
	Location    string    `json:"location"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
	Timestamp   time.Time `json:"timestamp"`
}

var locations = []string{"warehouse-a", "warehouse-b", "office", "server-room", "rooftop"}

// Generator produces random readings. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewGenerator creates a Generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed)), now: time.Now}
}

func (g *Generator) randRange(min, max float64) float64 {
	return min + g.rnd.Float64()*(max-min)
}

// Next returns a fresh reading.
func (g *Generator) Next() Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Reading{
		SensorID:    uuid.NewString(),
		Location:    locations[g.rnd.Intn(len(locations))],
		Temperature: round2(g.randRange(-10, 45)),
		Humidity:    round2(g.randRange(10, 95)),
		Pressure:    round2(g.randRange(960, 1050)),
		Timestamp:   g.now().UTC(),
	}
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}

	return float64(int64(v*100+0.5)) / 100
}
