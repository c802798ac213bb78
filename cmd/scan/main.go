package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/pulkyeet/arbscan/internal/chains"
	"github.com/pulkyeet/arbscan/internal/config"
	"github.com/pulkyeet/arbscan/internal/detector"
	"github.com/pulkyeet/arbscan/internal/eth"
	"github.com/pulkyeet/arbscan/internal/fetcher"
	"github.com/pulkyeet/arbscan/internal/flashloan"
	"github.com/pulkyeet/arbscan/internal/gas"
	"github.com/pulkyeet/arbscan/internal/pricecache"
)

// one-shot scan: refresh a single chain once, detect, print, exit
func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	chainID := flag.Uint64("chain", 1, "chain id to scan")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	reg, err := chains.NewRegistry(cfg)
	if err != nil {
		log.Fatalf("build registry: %v", err)
	}

	id := chains.ChainID(*chainID)
	ch, ok := reg.Chain(id)
	if !ok {
		log.Fatalf("chain %d not configured", *chainID)
	}

	client, err := eth.NewClient(ch.Endpoints, ch.RPCTimeout, ch.RatePerSec)
	if err != nil {
		log.Fatalf("client: %v", err)
	}
	defer client.Close()

	cache := pricecache.New()
	fetch, err := fetcher.New(reg, cache, map[chains.ChainID]fetcher.Client{id: client})
	if err != nil {
		log.Fatalf("fetcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	gasT := gas.NewTracker(time.Minute)
	if err := gasT.Update(ctx, id, client); err != nil {
		log.Printf("gas price unavailable, netting without gas cost: %v", err)
	}

	report, err := fetch.Refresh(ctx, id)
	if err != nil {
		log.Fatalf("refresh: %v", err)
	}
	fmt.Printf("refresh: %s\n\n", report)

	minNet := new(big.Int)
	if cfg.Detector.MinNetProfit != "" {
		minNet.SetString(cfg.Detector.MinNetProfit, 10)
	}
	detect := detector.New(cache, reg, flashloan.NewBook(reg), gasT,
		cfg.Detector.MinSpreadBps, minNet, cfg.CacheStaleness())

	opps := detect.Scan(id)
	if len(opps) == 0 {
		fmt.Println("no profitable opportunities at current state")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Pair", "Buy", "Sell", "Spread (bps)", "Gross", "FL Fee", "Gas", "Net"})
	for _, o := range opps {
		table.Append([]string{
			o.Pair.String(),
			o.BuyVenue,
			o.SellVenue,
			fmt.Sprintf("%d", o.SpreadBps),
			o.GrossProfit.String(),
			o.FlashLoanFee.String(),
			o.GasCost.String(),
			o.NetProfit.String(),
		})
	}
	table.Render()
}
