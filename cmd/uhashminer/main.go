// Command uhashminer searches for UniversalHash v4 proofs against a Bostrom
// address and reports them upstream.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/cyberia-to/uhash/internal/api"
	"github.com/cyberia-to/uhash/internal/config"
	"github.com/cyberia-to/uhash/internal/miner"
	"github.com/cyberia-to/uhash/internal/newrelic"
	"github.com/cyberia-to/uhash/internal/notify"
	"github.com/cyberia-to/uhash/internal/profiling"
	"github.com/cyberia-to/uhash/internal/rpc"
	"github.com/cyberia-to/uhash/internal/storage"
	"github.com/cyberia-to/uhash/internal/util"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	threads := flag.Int("threads", 0, "override mining.threads (0 = use config)")
	difficulty := flag.Uint("difficulty", 0, "override mining.difficulty_override (0 = use config)")
	singleShot := flag.Bool("single-shot", false, "stop after the first proof is found")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("uhashminer %s (built %s)\n", version, buildDate)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if *threads > 0 {
		cfg.Mining.Threads = *threads
	}
	if *difficulty > 0 {
		cfg.Mining.DifficultyOverride = uint32(*difficulty)
	}
	if *singleShot {
		cfg.Mining.SingleShot = true
	}

	if err := util.InitLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}

	util.Infof("uhashminer %s starting for %s", version, cfg.Mining.Address)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	upstreamMgr := rpc.NewUpstreamManager(ctx, &cfg.Node)
	upstreamMgr.Start()
	defer upstreamMgr.Stop()

	var redisClient *storage.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = storage.NewRedisClient(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			util.Fatalf("redis connect failed: %v", err)
		}
		defer redisClient.Close()
		util.Infof("redis persistence enabled at %s", cfg.Redis.URL)
	}

	var notifier *notify.Notifier
	if cfg.Notify.Enabled {
		notifier = notify.NewNotifier(&notify.WebhookConfig{
			Enabled:      true,
			DiscordURL:   cfg.Notify.DiscordURL,
			TelegramURL:  cfg.Notify.TelegramURL,
			TelegramBot:  cfg.Notify.TelegramBot,
			TelegramChat: cfg.Notify.TelegramChat,
			MinerName:    "uhashminer",
		})
	}

	var nrAgent *newrelic.Agent
	if cfg.NewRelic.Enabled {
		nrAgent = newrelic.NewAgent(&cfg.NewRelic)
		if err := nrAgent.Start(); err != nil {
			util.Warnf("newrelic start failed: %v", err)
		}
		defer nrAgent.Stop()
	}

	var profilingSrv *profiling.Server
	if cfg.Profiling.Enabled {
		profilingSrv = profiling.NewServer(&cfg.Profiling)
		if err := profilingSrv.Start(); err != nil {
			util.Warnf("profiling server start failed: %v", err)
		}
		defer profilingSrv.Stop()
	}

	sessionID := uuid.NewString()
	if redisClient != nil {
		session := &storage.MiningSession{
			ID:        sessionID,
			Address:   cfg.Mining.Address,
			Threads:   cfg.Mining.Threads,
			StartedAt: time.Now(),
		}
		if err := redisClient.StartSession(session); err != nil {
			util.Warnf("failed to record mining session: %v", err)
		}
	}

	pool := miner.NewPool(miner.Config{
		Threads:                cfg.Mining.Threads,
		HashrateSampleInterval: cfg.Mining.HashrateInterval,
	})

	state := &runState{}

	pool.OnSample(func(hashrate float64, totalHashes uint64) {
		state.hashrate.Store(int64(hashrate))
		state.totalHashes.Store(totalHashes)

		if redisClient != nil {
			sample := storage.HashrateSample{
				HashesPerSecond: hashrate,
				TotalHashes:     totalHashes,
				Timestamp:       time.Now().Unix(),
			}
			if err := redisClient.RecordHashrateSample(sessionID, sample); err != nil {
				util.Warnf("failed to record hashrate sample: %v", err)
			}
		}
		if nrAgent != nil {
			nrAgent.UpdateHashrateMetrics(hashrate, cfg.Mining.Threads)
		}
	})

	state.lastDifficulty.Store(int64(cfg.Mining.DifficultyOverride))

	coordinator := miner.NewCoordinator(miner.CoordinatorConfig{
		Address:            cfg.Mining.Address,
		RefreshInterval:    cfg.Mining.RefreshInterval,
		DifficultyOverride: cfg.Mining.DifficultyOverride,
		SingleShot:         cfg.Mining.SingleShot,
	}, pool, upstreamMgr, &trackedDifficulty{source: upstreamMgr, state: state}, upstreamMgr)

	// Storage, notification, and APM are fire-and-forget observers of a found
	// proof; none of them sit in the submission path, so their failure never
	// blocks the next round.
	coordinator.OnProof(func(p miner.Proof) {
		state.proofsFound.Add(1)
		difficulty := uint32(state.lastDifficulty.Load())
		util.Infof("proof found: nonce=%d hash=%x", p.Nonce, p.Hash)

		proof := &storage.FoundProof{
			SessionID: sessionID,
			Address:   p.Address,
			Hash:      util.BytesToHex(p.Hash[:]),
			Nonce:     p.Nonce,
			Timestamp: p.Timestamp,
			FoundAt:   time.Now().Unix(),
		}

		if redisClient != nil {
			if err := redisClient.WriteProof(proof); err != nil {
				util.Warnf("failed to persist found proof: %v", err)
			}
			if err := redisClient.UpdateSessionCounters(sessionID, state.proofsFound.Load(), state.totalHashes.Load()); err != nil {
				util.Warnf("failed to update session counters: %v", err)
			}
		}
		if notifier != nil {
			notifier.NotifyProofFound(proof, difficulty)
		}
		if nrAgent != nil {
			nrAgent.RecordProofFound(proof.Address, proof.Nonce, difficulty)
		}
	})

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg, redisClient)
		apiServer.SetStatusFunc(func() api.StatusResponse {
			return api.StatusResponse{
				Address:         cfg.Mining.Address,
				Threads:         cfg.Mining.Threads,
				HashesPerSecond: float64(state.hashrate.Load()),
				TotalHashes:     state.totalHashes.Load(),
				ProofsFound:     state.proofsFound.Load(),
				Difficulty:      uint32(state.lastDifficulty.Load()),
			}
		})
		apiServer.SetUpstreamStateFunc(func() []api.UpstreamStatus {
			states := upstreamMgr.GetUpstreamStates()
			out := make([]api.UpstreamStatus, len(states))
			for i, s := range states {
				out[i] = api.UpstreamStatus{
					Name:         s.Name,
					URL:          s.URL,
					Healthy:      s.Healthy,
					ResponseTime: float64(s.ResponseTime.Milliseconds()),
					Height:       s.Height,
					Weight:       s.Weight,
					FailCount:    s.FailCount,
					SuccessCount: s.SuccessCount,
				}
			}
			return out
		})
		if err := apiServer.Start(); err != nil {
			util.Warnf("api server start failed: %v", err)
		} else {
			defer apiServer.Stop()
		}
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- coordinator.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		util.Info("shutdown signal received, stopping miner")
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			util.Warnf("miner stopped: %v", err)
		}
	}
}

// runState holds the atomically-updated counters the status API and the
// proof/difficulty observers both read from.
type runState struct {
	hashrate       atomic.Int64
	totalHashes    atomic.Uint64
	proofsFound    atomic.Uint64
	lastDifficulty atomic.Int64
}

// trackedDifficulty wraps a miner.DifficultySource and records every fetched
// value into runState, so the status API can report the difficulty that is
// actually being mined against even when it comes from the chain rather than
// a pinned override.
type trackedDifficulty struct {
	source miner.DifficultySource
	state  *runState
}

func (t *trackedDifficulty) Difficulty(ctx context.Context) (uint32, error) {
	d, err := t.source.Difficulty(ctx)
	if err == nil {
		t.state.lastDifficulty.Store(int64(d))
	}
	return d, err
}
