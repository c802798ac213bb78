package main

import (
	"context"
	"flag"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pulkyeet/arbscan/internal/chains"
	"github.com/pulkyeet/arbscan/internal/config"
	"github.com/pulkyeet/arbscan/internal/dedup"
	"github.com/pulkyeet/arbscan/internal/detector"
	"github.com/pulkyeet/arbscan/internal/emitter"
	"github.com/pulkyeet/arbscan/internal/eth"
	"github.com/pulkyeet/arbscan/internal/fetcher"
	"github.com/pulkyeet/arbscan/internal/flashloan"
	"github.com/pulkyeet/arbscan/internal/gas"
	"github.com/pulkyeet/arbscan/internal/pricecache"
	"github.com/pulkyeet/arbscan/internal/scanner"
	"github.com/pulkyeet/arbscan/internal/storage"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	reg, err := chains.NewRegistry(cfg)
	if err != nil {
		// config errors are fatal; no partial configuration runs
		log.Fatalf("build registry: %v", err)
	}

	clients := make(map[chains.ChainID]*eth.Client)
	fetchClients := make(map[chains.ChainID]fetcher.Client)
	for _, id := range reg.ChainIDs() {
		ch, _ := reg.Chain(id)
		client, err := eth.NewClient(ch.Endpoints, ch.RPCTimeout, ch.RatePerSec)
		if err != nil {
			log.Fatalf("chain %s: %v", ch.Name, err)
		}
		defer client.Close()
		clients[id] = client
		fetchClients[id] = client
	}

	cache := pricecache.New()

	fetch, err := fetcher.New(reg, cache, fetchClients)
	if err != nil {
		log.Fatalf("fetcher: %v", err)
	}

	minNet := new(big.Int)
	if cfg.Detector.MinNetProfit != "" {
		if _, ok := minNet.SetString(cfg.Detector.MinNetProfit, 10); !ok {
			log.Fatalf("bad min_net_profit %q", cfg.Detector.MinNetProfit)
		}
	}

	gasT := gas.NewTracker(2 * cfg.CacheStaleness())
	flash := flashloan.NewBook(reg)
	detect := detector.New(cache, reg, flash, gasT,
		cfg.Detector.MinSpreadBps, minNet, cfg.CacheStaleness())

	gate := dedup.NewGate(cfg.DedupCooldown(), cfg.Dedup.BetterNetOverride)

	store, err := storage.NewStore(cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	emit := emitter.New(cfg.Emitter.QueueSize,
		store,
		scanner.NewExecutionSink(gate, scanner.LogExecutor{}),
	)

	gasSrc := func(id chains.ChainID) gas.PriceSource {
		if c, ok := clients[id]; ok {
			return c
		}
		return nil
	}

	s := scanner.New(reg, fetch, detect, gate, emit, gasT, gasSrc, cache, cfg.CacheTTL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go emit.Run(ctx)

	log.Printf("monitor: scanning %d chain(s), db=%s", len(reg.ChainIDs()), cfg.Storage.DSN)
	s.Run(ctx)

	s.Metrics.Log()
	log.Printf("monitor: shut down")
}
