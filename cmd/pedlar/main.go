package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"sync"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"github.com/ThomasWongMingHei/pedlar/internal/agent"
	"github.com/ThomasWongMingHei/pedlar/internal/archive"
	"github.com/ThomasWongMingHei/pedlar/internal/bus"
	"github.com/ThomasWongMingHei/pedlar/internal/gateway"
	"github.com/ThomasWongMingHei/pedlar/internal/journal"
	"github.com/ThomasWongMingHei/pedlar/internal/obs"
	"github.com/ThomasWongMingHei/pedlar/internal/ops"
	"github.com/ThomasWongMingHei/pedlar/internal/schema"
	"github.com/ThomasWongMingHei/pedlar/internal/state"
	"github.com/ThomasWongMingHei/pedlar/internal/strategy"
	"github.com/ThomasWongMingHei/pedlar/internal/supervisor"
	"github.com/ThomasWongMingHei/pedlar/pkg/conn"
)

const queueCapacity = 4096

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if loaded.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: loaded.Profiling.ApplicationName,
			ServerAddress:   loaded.Profiling.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	metrics := obs.NewMetrics()
	store := state.NewStore(loaded.State)

	var jnl *journal.Journal
	if loaded.Journal != nil {
		jnl, err = openJournal(*loaded.Journal)
		if err != nil {
			log.Fatalf("journal open failed: %v", err)
		}
		defer func() {
			if err := jnl.Close(); err != nil {
				logs.Errorf("journal close: %+v", err)
			}
		}()
	}

	var archiver *archive.Archiver
	if loaded.Archive.Enabled {
		pg, err := conn.New(conn.Option{
			Host:     loaded.Archive.Host,
			Port:     loaded.Archive.Port,
			User:     loaded.Archive.User,
			Password: loaded.Archive.Password,
			Database: loaded.Archive.Database,
		})
		if err != nil {
			log.Fatalf("postgres connect failed: %v", err)
		}
		defer func() {
			if err := pg.Close(); err != nil {
				logs.Errorf("postgres close: %+v", err)
			}
		}()
		archiver, err = archive.New(pg.DB())
		if err != nil {
			log.Fatalf("archive init failed: %v", err)
		}
		store.SetObserver(archiver)
	}

	strat, err := strategy.New(loaded.Strategy)
	if err != nil {
		log.Fatalf("strategy init failed: %v", err)
	}

	queue := bus.NewQueue(queueCapacity)
	sink := func(frame []byte) {
		if err := queue.TryPublish(frame); err != nil {
			if errors.Is(err, bus.ErrQueueFull) {
				metrics.IncQueueDrop()
			} else {
				metrics.IncQueueClosed()
			}
		}
	}

	sup := supervisor.New(supervisor.Config{
		Transport: loaded.Transport,
		Backoff:   loaded.Backoff,
		Symbols:   loaded.Symbols,
	}, sink, metrics)
	gw := gateway.New(loaded.Gateway, sup, store, jnl, metrics)
	runner := agent.NewRunner(queue, store, gw, strat, metrics)
	sup.OnConnect(runner.SetConnID)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logs.Errorf("supervisor stopped: %+v", err)
		}
	}()
	go func() {
		defer wg.Done()
		runner.Run(ctx)
	}()

	logs.Infof("pedlar started, endpoint %s, %d pairs", loaded.Endpoint, len(loaded.Symbols))
	<-sys.Shutdown()
	logs.Info("shutdown signal received")

	if loaded.CloseOnShutdown {
		closeOpenOrders(store, gw)
	}
	gw.Drain(loaded.GraceTimeout)
	cancel()
	queue.Close()
	wg.Wait()
	if archiver != nil {
		archiver.Close()
	}

	snapshot := metrics.Snapshot()
	logs.Infof("metrics: ticks=%d malformed=%d decision_errors=%d reconnects=%d retries=%d timeouts=%d drops=%d decision_latency=%+v",
		snapshot.TicksProcessed, snapshot.MalformedFrames, snapshot.DecisionErrors,
		snapshot.Reconnects, snapshot.OrderRetries, snapshot.OrderTimeouts,
		snapshot.QueueDrops, snapshot.DecisionLatency)
}

// openJournal resolves requests that were still in flight when a previous run
// died. They predate this session's pending table, so they are surfaced and
// the journal entries retired rather than resent.
func openJournal(cfg journal.Config) (*journal.Journal, error) {
	stale, err := journal.Replay(cfg)
	if err != nil {
		return nil, err
	}
	jnl, err := journal.Open(cfg)
	if err != nil {
		return nil, err
	}
	for _, entry := range stale {
		logs.Errorf("request %s was in flight at last shutdown, outcome unknown", entry.CorrelationID)
		if err := jnl.Retire(entry.CorrelationID); err != nil {
			_ = jnl.Close()
			return nil, err
		}
	}
	return jnl, nil
}

func closeOpenOrders(store *state.Store, gw *gateway.Gateway) {
	open := store.View(0).OpenOrders()
	if len(open) == 0 {
		return
	}
	logs.Infof("closing %d open orders before disconnect", len(open))
	for _, order := range open {
		if order.Status != schema.OrderOpen {
			continue
		}
		if _, err := gw.Close(order.OrderID); err != nil {
			logs.Errorf("close order %d on shutdown: %+v", order.OrderID, err)
		}
	}
}
