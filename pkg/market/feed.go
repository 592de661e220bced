package market

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrUnknownSymbol = errors.New("unknown symbol")

// Tick is one simulated price observation.
type Tick struct {
	Symbol    string `json:"symbol"`
	Price     int64  `json:"price"`     // quote cents
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}

// Feed generates mock prices as a bounded random walk per symbol. Price
// realism is explicitly not a goal; the feed exists so market orders have a
// fill price and the quote surface has something to serve.
type Feed struct {
	mu     sync.RWMutex
	prices map[string]int64

	interval time.Duration
	rng      *rand.Rand
	log      *zap.SugaredLogger

	// OnTick, when set, receives every generated tick. Wired to the
	// websocket hub broadcast.
	OnTick func(Tick)
}

// NewFeed seeds each symbol at an arbitrary starting price.
func NewFeed(symbols []string, interval time.Duration, log *zap.SugaredLogger) *Feed {
	prices := make(map[string]int64, len(symbols))
	for i, sym := range symbols {
		// Spread the seeds out so symbols are distinguishable at a glance.
		prices[sym] = int64(10000 * (i + 1))
	}
	return &Feed{
		prices:   prices,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      log,
	}
}

// Quote returns the current mock price for a symbol.
func (f *Feed) Quote(symbol string) (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[symbol]
	if !ok {
		return 0, ErrUnknownSymbol
	}
	return p, nil
}

// Symbols returns the known symbols.
func (f *Feed) Symbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.prices))
	for sym := range f.prices {
		out = append(out, sym)
	}
	return out
}

// Run ticks every interval until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.log.Infow("feed_started", "symbols", len(f.prices), "interval", f.interval.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.step()
		}
	}
}

// step moves every price by up to ±0.5%, floored at 1 cent.
func (f *Feed) step() {
	now := time.Now().UnixMilli()

	f.mu.Lock()
	ticks := make([]Tick, 0, len(f.prices))
	for sym, p := range f.prices {
		delta := p * int64(f.rng.Intn(101)-50) / 10000
		p += delta
		if p < 1 {
			p = 1
		}
		f.prices[sym] = p
		ticks = append(ticks, Tick{Symbol: sym, Price: p, Timestamp: now})
	}
	f.mu.Unlock()

	if f.OnTick != nil {
		for _, t := range ticks {
			f.OnTick(t)
		}
	}
}
