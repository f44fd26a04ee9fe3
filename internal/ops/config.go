// Package ops loads the engine configuration from a JSON file and resolves
// it into the typed configs each component consumes.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ThomasWongMingHei/pedlar/internal/gateway"
	"github.com/ThomasWongMingHei/pedlar/internal/journal"
	"github.com/ThomasWongMingHei/pedlar/internal/schema"
	"github.com/ThomasWongMingHei/pedlar/internal/state"
	"github.com/ThomasWongMingHei/pedlar/internal/strategy"
	"github.com/ThomasWongMingHei/pedlar/internal/supervisor"
	"github.com/ThomasWongMingHei/pedlar/internal/transport"
)

// FileConfig mirrors the JSON config layout. Durations are milliseconds.
type FileConfig struct {
	Endpoint    string            `json:"endpoint"`
	Credentials CredentialsConfig `json:"credentials"`
	Pairs       []PairConfig      `json:"pairs"`
	History     HistoryConfig     `json:"history"`
	Orders      OrdersConfig      `json:"orders"`
	Reconnect   ReconnectConfig   `json:"reconnect"`
	Liveness    LivenessConfig    `json:"liveness"`
	Journal     JournalConfig     `json:"journal"`
	Archive     ArchiveConfig     `json:"archive"`
	Profiling   ProfilingConfig   `json:"profiling"`
	Strategy    StrategyConfig    `json:"strategy"`
	// CloseOnShutdown closes open orders before disconnecting.
	CloseOnShutdown bool `json:"closeOnShutdown"`
}

// CredentialsConfig authenticates the venue session.
type CredentialsConfig struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// PairConfig is one subscribed (exchange, ticker) pair.
type PairConfig struct {
	Exchange string `json:"exchange"`
	Ticker   string `json:"ticker"`
}

// HistoryConfig bounds retained state.
type HistoryConfig struct {
	Capacity      int `json:"capacity"`
	TradeCapacity int `json:"tradeCapacity"`
}

// OrdersConfig sets the acknowledgement protocol.
type OrdersConfig struct {
	AckTimeoutMS   int `json:"ackTimeoutMs"`
	MaxRetries     int `json:"maxRetries"`
	GraceTimeoutMS int `json:"graceTimeoutMs"`
}

// ReconnectConfig sets the backoff shape.
type ReconnectConfig struct {
	InitialMS int     `json:"initialMs"`
	MaxMS     int     `json:"maxMs"`
	Factor    float64 `json:"factor"`
	Jitter    float64 `json:"jitter"`
}

// LivenessConfig sets heartbeat and liveness windows.
type LivenessConfig struct {
	TimeoutMS      int `json:"timeoutMs"`
	PingIntervalMS int `json:"pingIntervalMs"`
	WriteTimeoutMS int `json:"writeTimeoutMs"`
}

// JournalConfig controls the outbound-request journal.
type JournalConfig struct {
	Disabled bool   `json:"disabled"`
	Dir      string `json:"dir"`
	NoSync   bool   `json:"noSync"`
}

// ArchiveConfig enables the postgres archive of resolved orders and fills.
type ArchiveConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	Enabled         bool   `json:"enabled"`
	ServerAddress   string `json:"serverAddress"`
	ApplicationName string `json:"applicationName"`
}

// StrategyConfig selects the built-in strategy.
type StrategyConfig struct {
	Name     string  `json:"name"`
	Exchange string  `json:"exchange"`
	Ticker   string  `json:"ticker"`
	Volume   float64 `json:"volume"`
	Lookback int     `json:"lookback"`
}

// Loaded is the resolved configuration ready for wiring.
type Loaded struct {
	Endpoint        string
	Symbols         []schema.Symbol
	Transport       transport.Config
	Backoff         supervisor.Backoff
	State           state.Config
	Gateway         gateway.Config
	GraceTimeout    time.Duration
	Journal         *journal.Config
	Archive         ArchiveConfig
	Profiling       ProfilingConfig
	Strategy        strategy.Config
	CloseOnShutdown bool
}

// Load reads and resolves a JSON config file.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return cfg.resolve()
}

func (c FileConfig) resolve() (Loaded, error) {
	if c.Endpoint == "" {
		return Loaded{}, fmt.Errorf("endpoint is empty")
	}
	if len(c.Pairs) == 0 {
		return Loaded{}, fmt.Errorf("no subscribed pairs")
	}

	symbols := make([]schema.Symbol, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		if p.Exchange == "" || p.Ticker == "" {
			return Loaded{}, fmt.Errorf("pair needs exchange and ticker")
		}
		symbols = append(symbols, schema.Symbol{Exchange: p.Exchange, Ticker: p.Ticker})
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		return Loaded{}, fmt.Errorf("reconnect jitter must be within [0, 1]")
	}

	loaded := Loaded{
		Endpoint: c.Endpoint,
		Symbols:  symbols,
		Transport: transport.Config{
			URL: c.Endpoint,
			Credentials: transport.Credentials{
				Username: c.Credentials.Username,
				Token:    c.Credentials.Token,
			},
			LivenessTimeout: millis(c.Liveness.TimeoutMS),
			PingInterval:    millis(c.Liveness.PingIntervalMS),
			WriteTimeout:    millis(c.Liveness.WriteTimeoutMS),
		},
		Backoff: DefaultBackoffFrom(c.Reconnect),
		State: state.Config{
			HistoryCapacity: c.History.Capacity,
			TradeCapacity:   c.History.TradeCapacity,
		},
		Gateway: gateway.Config{
			AckTimeout: millis(c.Orders.AckTimeoutMS),
			MaxRetries: c.Orders.MaxRetries,
		},
		GraceTimeout: millis(c.Orders.GraceTimeoutMS),
		Archive:      c.Archive,
		Profiling:    c.Profiling,
		Strategy: strategy.Config{
			Name:     c.Strategy.Name,
			Exchange: c.Strategy.Exchange,
			Ticker:   c.Strategy.Ticker,
			Volume:   c.Strategy.Volume,
			Lookback: c.Strategy.Lookback,
		},
		CloseOnShutdown: c.CloseOnShutdown,
	}
	if loaded.GraceTimeout <= 0 {
		loaded.GraceTimeout = 5 * time.Second
	}
	if !c.Journal.Disabled {
		dir := c.Journal.Dir
		if dir == "" {
			dir = "data/journal"
		}
		loaded.Journal = &journal.Config{Dir: dir, SyncOnAppend: !c.Journal.NoSync}
	}
	return loaded, nil
}

// DefaultBackoffFrom fills unset backoff fields with the defaults.
func DefaultBackoffFrom(c ReconnectConfig) supervisor.Backoff {
	b := supervisor.DefaultBackoff()
	if c.InitialMS > 0 {
		b.Min = millis(c.InitialMS)
	}
	if c.MaxMS > 0 {
		b.Max = millis(c.MaxMS)
	}
	if c.Factor > 1 {
		b.Factor = c.Factor
	}
	if c.Jitter > 0 {
		b.Jitter = c.Jitter
	}
	return b
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
