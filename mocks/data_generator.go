package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-charts/pkg/chartapi"
	"github.com/shopspring/decimal"
)

// DataGenerator generates realistic tick and candle data for tests and the mock API server.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how market data is generated.
type GeneratorConfig struct {
	// Symbol is the synthetic index symbol (e.g., "R_100", "R_50")
	Symbol string
	// StartTime is the time of the first point
	StartTime time.Time
	// Interval is the duration between points; one second for ticks, the granularity for candles
	Interval time.Duration
	// Count is the number of points to generate
	Count int
	// InitialPrice is the starting quote
	InitialPrice float64
	// Volatility controls price movement (0.001 = 0.1% per point)
	Volatility float64
	// PipSize is the number of decimals quotes are rounded to
	PipSize int
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:       "R_100",
		StartTime:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:     time.Second,
		Count:        1000,
		InitialPrice: 1000.0,
		Volatility:   0.001,
		PipSize:      2,
	}
}

// Candles creates candles following a geometric Brownian motion.
func (g *DataGenerator) Candles(config GeneratorConfig) []chartapi.Candle {
	candles := make([]chartapi.Candle, config.Count)
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := currentPrice
		close := g.step(open, config.Volatility)

		// High and low extend past the open-close range
		highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
		lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		high := math.Max(open, close) + highExtension
		low := math.Min(open, close) - lowExtension
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		candles[i] = chartapi.Candle{
			Epoch: currentTime.Unix(),
			Open:  quote(open, config.PipSize),
			High:  quote(high, config.PipSize),
			Low:   quote(low, config.PipSize),
			Close: quote(close, config.PipSize),
		}

		currentPrice = close
		currentTime = currentTime.Add(config.Interval)
	}

	return candles
}

// History creates a ticks-style history payload.
func (g *DataGenerator) History(config GeneratorConfig) chartapi.History {
	history := chartapi.History{
		Prices: make([]decimal.Decimal, config.Count),
		Times:  make([]int64, config.Count),
	}
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		currentPrice = g.step(currentPrice, config.Volatility)
		history.Prices[i] = quote(currentPrice, config.PipSize)
		history.Times[i] = currentTime.Unix()
		currentTime = currentTime.Add(config.Interval)
	}

	return history
}

// NextTick returns the tick that follows last by one interval.
func (g *DataGenerator) NextTick(config GeneratorConfig, last decimal.Decimal, epoch int64) chartapi.Tick {
	price := g.step(last.InexactFloat64(), config.Volatility)
	spread := config.Volatility * price * 0.1

	return chartapi.Tick{
		ID:      "",
		Symbol:  config.Symbol,
		Epoch:   epoch,
		Quote:   quote(price, config.PipSize),
		Ask:     quote(price+spread, config.PipSize),
		Bid:     quote(price-spread, config.PipSize),
		PipSize: config.PipSize,
	}
}

// step moves price one point along the random walk.
func (g *DataGenerator) step(price float64, volatility float64) float64 {
	// Box-Muller transform for a normal sample
	u1 := g.rng.Float64()
	u2 := g.rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

	next := price * (1 + volatility*z)
	if next <= 0 {
		next = price * 0.99
	}

	return next
}

func quote(val float64, pipSize int) decimal.Decimal {
	return decimal.NewFromFloat(val).Round(int32(pipSize))
}
