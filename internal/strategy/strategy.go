package strategy

import (
	"fmt"

	"github.com/ThomasWongMingHei/pedlar/internal/schema"
	"github.com/ThomasWongMingHei/pedlar/internal/state"
)

// Config selects and parameterizes a built-in strategy.
type Config struct {
	Name     string
	Exchange string
	Ticker   string
	Volume   float64
	// Lookback is the run length of one-directional moves that triggers
	// the momentum strategy.
	Lookback int
}

// New builds a built-in strategy by name.
func New(cfg Config) (Strategy, error) {
	switch cfg.Name {
	case "", "idle":
		return Idle{}, nil
	case "momentum":
		if cfg.Exchange == "" || cfg.Ticker == "" {
			return nil, fmt.Errorf("momentum strategy needs a symbol")
		}
		if cfg.Volume <= 0 {
			cfg.Volume = 0.01
		}
		if cfg.Lookback < 2 {
			cfg.Lookback = 3
		}
		return &Momentum{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Name)
	}
}

// Strategy mirrors agent.Strategy without importing it, keeping this package
// free of the runner's dependencies.
type Strategy interface {
	OnTick(view state.View) []schema.Action
}

// Idle never trades. Useful for observing a live stream.
type Idle struct{}

// OnTick returns no actions.
func (Idle) OnTick(state.View) []schema.Action {
	return nil
}

// Momentum buys after Lookback consecutive upticks of the bid and sells
// after as many downticks, one working order per side at a time.
type Momentum struct {
	cfg Config
}

// OnTick inspects the tail of the symbol's history buffer.
func (m *Momentum) OnTick(view state.View) []schema.Action {
	entries := view.History(m.cfg.Exchange, m.cfg.Ticker)
	run := 0
	direction := 0
	for i := len(entries) - 1; i > 0 && run < m.cfg.Lookback; i-- {
		// A gap marker breaks the run; never trade across an outage.
		if entries[i].Gap || entries[i-1].Gap {
			return nil
		}
		step := 0
		switch {
		case entries[i].Tick.Bid > entries[i-1].Tick.Bid:
			step = 1
		case entries[i].Tick.Bid < entries[i-1].Tick.Bid:
			step = -1
		default:
			return nil
		}
		if direction == 0 {
			direction = step
		} else if direction != step {
			return nil
		}
		run++
	}
	if run < m.cfg.Lookback {
		return nil
	}

	if direction > 0 {
		return Buy(view, m.cfg.Exchange, m.cfg.Ticker, m.cfg.Volume, true, true)
	}
	return Sell(view, m.cfg.Exchange, m.cfg.Ticker, m.cfg.Volume, true, true)
}
