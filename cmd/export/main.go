package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/pulkyeet/arbscan/internal/storage"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
)

// OpportunityRow is the flat parquet schema for recorded opportunities.
// Amounts stay decimal strings end to end.
type OpportunityRow struct {
	ID           string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	DetectedAtMs int64  `parquet:"name=detected_at_ms, type=INT64"`
	ChainID      int64  `parquet:"name=chain_id, type=INT64"`
	Pair         string `parquet:"name=pair, type=BYTE_ARRAY, convertedtype=UTF8"`
	BuyVenue     string `parquet:"name=buy_venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	SellVenue    string `parquet:"name=sell_venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	Notional     string `parquet:"name=notional, type=BYTE_ARRAY, convertedtype=UTF8"`
	SpreadBps    int64  `parquet:"name=spread_bps, type=INT64"`
	GrossProfit  string `parquet:"name=gross_profit, type=BYTE_ARRAY, convertedtype=UTF8"`
	FlashLoanFee string `parquet:"name=flashloan_fee, type=BYTE_ARRAY, convertedtype=UTF8"`
	FlashLender  string `parquet:"name=flash_lender, type=BYTE_ARRAY, convertedtype=UTF8"`
	GasCost      string `parquet:"name=gas_cost, type=BYTE_ARRAY, convertedtype=UTF8"`
	NetProfit    string `parquet:"name=net_profit, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceBlock  int64  `parquet:"name=source_block, type=INT64"`
}

func main() {
	_ = godotenv.Load()

	dbPath := flag.String("db", "arbscan.db", "path to opportunity store")
	outPath := flag.String("out", "opportunities.parquet", "output parquet file")
	limit := flag.Int("limit", 100000, "max rows to export, newest first")
	flag.Parse()

	store, err := storage.NewStore(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rows, err := store.Recent(ctx, *limit)
	if err != nil {
		log.Fatalf("read store: %v", err)
	}
	if len(rows) == 0 {
		log.Fatal("store is empty, nothing to export")
	}

	fw, err := local.NewLocalFileWriter(*outPath)
	if err != nil {
		log.Fatalf("create %s: %v", *outPath, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(OpportunityRow), 2)
	if err != nil {
		log.Fatalf("parquet writer: %v", err)
	}

	for _, r := range rows {
		row := OpportunityRow{
			ID:           r.ID,
			DetectedAtMs: r.DetectedAt.UnixMilli(),
			ChainID:      int64(r.ChainID),
			Pair:         r.Pair,
			BuyVenue:     r.BuyVenue,
			SellVenue:    r.SellVenue,
			Notional:     r.Notional,
			SpreadBps:    r.SpreadBps,
			GrossProfit:  r.GrossProfit,
			FlashLoanFee: r.FlashLoanFee,
			FlashLender:  r.FlashLender,
			GasCost:      r.GasCost,
			NetProfit:    r.NetProfit,
			SourceBlock:  int64(r.SourceBlock),
		}
		if err := pw.Write(row); err != nil {
			log.Fatalf("write row: %v", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		log.Fatalf("finalize parquet: %v", err)
	}

	fmt.Printf("exported %d opportunities to %s\n", len(rows), *outPath)
}
