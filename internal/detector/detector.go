package detector

import (
	"log"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/pulkyeet/arbscan/internal/chains"
	"github.com/pulkyeet/arbscan/internal/flashloan"
	"github.com/pulkyeet/arbscan/internal/gas"
	"github.com/pulkyeet/arbscan/internal/pricecache"
)

// Opportunity is one detected cross-venue arbitrage candidate. Immutable;
// built here, consumed exactly once by the dedup gate downstream. All
// amounts are smallest units of the pair's base token.
type Opportunity struct {
	ID        string
	Chain     chains.ChainID
	Pair      chains.Pair
	BuyVenue  string
	SellVenue string

	Notional     *big.Int
	SpreadBps    int64
	GrossProfit  *big.Int
	FlashLoanFee *big.Int
	FlashLender  string
	GasCost      *big.Int
	NetProfit    *big.Int

	SourceBlock uint64
	DetectedAt  time.Time
}

// DedupKey identifies the route for cooldown suppression.
func (o *Opportunity) DedupKey() string {
	key := o.Pair.Key()
	return uint64str(uint64(o.Chain)) + "|" + key.Token0.Hex() + "|" + key.Token1.Hex() +
		"|" + o.BuyVenue + "|" + o.SellVenue
}

func uint64str(v uint64) string {
	return new(big.Int).SetUint64(v).String()
}

// Detector compares cached prices across venues and produces ranked,
// fee-adjusted opportunities. It holds no locks and does no I/O: it reads
// immutable snapshots out of the cache and pure-computes from there.
type Detector struct {
	cache *pricecache.Cache
	reg   *chains.Registry
	flash flashloan.Quoter
	gas   *gas.Tracker

	minSpreadBps int64
	minNetProfit *big.Int
	staleness    time.Duration
	now          func() time.Time
}

func New(cache *pricecache.Cache, reg *chains.Registry, flash flashloan.Quoter, tracker *gas.Tracker,
	minSpreadBps int64, minNetProfit *big.Int, staleness time.Duration) *Detector {
	if minNetProfit == nil {
		minNetProfit = big.NewInt(0)
	}
	return &Detector{
		cache:        cache,
		reg:          reg,
		flash:        flash,
		gas:          tracker,
		minSpreadBps: minSpreadBps,
		minNetProfit: minNetProfit,
		staleness:    staleness,
		now:          time.Now,
	}
}

// Scan evaluates every tracked pair on the chain against the current cache
// contents and returns profitable opportunities ranked best-first.
//
// Every ordered venue pair is evaluated, not just the global max/min: with
// asymmetric fee models the best net route is not always the widest raw
// spread.
func (d *Detector) Scan(chainID chains.ChainID) []*Opportunity {
	chain, ok := d.reg.Chain(chainID)
	if !ok {
		return nil
	}

	gasPrice, gasOK := d.gas.Current(chainID)

	var found []*Opportunity
	for _, pair := range chain.Pairs {
		snaps := d.freshSnapshots(chain, pair)
		if len(snaps) < 2 {
			continue
		}

		for _, buy := range snaps {
			for _, sell := range snaps {
				if buy.Key.Venue == sell.Key.Venue {
					continue
				}
				opp := d.evaluate(chain, pair, buy, sell, gasPrice, gasOK)
				if opp != nil {
					found = append(found, opp)
				}
			}
		}
	}

	rank(found)
	return found
}

// freshSnapshots collects the per-venue snapshots still inside the
// staleness window. Venues not listing the pair simply have no cache entry
// and drop out silently.
func (d *Detector) freshSnapshots(chain *chains.Chain, pair chains.Pair) []*pricecache.Snapshot {
	key := pair.Key()
	snaps := make([]*pricecache.Snapshot, 0, len(chain.Venues))
	for _, v := range chain.Venues {
		snap, ok := d.cache.Get(pricecache.Key{Chain: chain.ID, Venue: v.Name, Pair: key}, d.staleness)
		if ok {
			snaps = append(snaps, snap)
		}
	}
	return snaps
}

// evaluate runs the two-leg round trip notional -> quote on buy venue ->
// base on sell venue and nets out flash-loan fee and gas.
func (d *Detector) evaluate(chain *chains.Chain, pair chains.Pair, buy, sell *pricecache.Snapshot,
	gasPrice *big.Int, gasOK bool) *Opportunity {

	spread := SpreadBps(buy, sell, pair.Base.Address)
	if spread < d.minSpreadBps {
		return nil
	}

	notional, overflow := uint256.FromBig(pair.Notional)
	if overflow {
		return nil
	}

	bought := quoteOut(buy, pair.Base.Address, notional)
	if bought.IsZero() {
		return nil
	}
	back := quoteOut(sell, pair.Quote.Address, bought)

	gross := new(big.Int).Sub(back.ToBig(), pair.Notional)
	if gross.Sign() <= 0 {
		return nil
	}

	quote, err := d.flash.Best(chain.ID, pair.Base.Address, pair.Notional)
	if err != nil {
		// recovered locally: no usable lender this cycle, just skip
		log.Printf("detector: flashloan quote %s on chain %d: %v", pair, chain.ID, err)
		return nil
	}

	gasCost := big.NewInt(0)
	if gasOK {
		gasCost = gas.CostInToken(gasPrice, chain.GasUnitEstimate, chain.NativeUSDE8, pair.Base)
	}

	net := new(big.Int).Sub(gross, quote.Fee)
	net.Sub(net, gasCost)
	if net.Sign() <= 0 || net.Cmp(d.minNetProfit) < 0 {
		return nil
	}

	src := buy.SourceBlock
	if sell.SourceBlock < src {
		src = sell.SourceBlock
	}

	return &Opportunity{
		ID:           uuid.NewString(),
		Chain:        chain.ID,
		Pair:         pair,
		BuyVenue:     buy.Key.Venue,
		SellVenue:    sell.Key.Venue,
		Notional:     new(big.Int).Set(pair.Notional),
		SpreadBps:    spread,
		GrossProfit:  gross,
		FlashLoanFee: quote.Fee,
		FlashLender:  quote.Provider,
		GasCost:      gasCost,
		NetProfit:    net,
		SourceBlock:  src,
		DetectedAt:   d.now(),
	}
}

// rank orders by descending net profit; ties by lower gas cost, then
// lexical venue order so results are reproducible.
func rank(opps []*Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if c := opps[i].NetProfit.Cmp(opps[j].NetProfit); c != 0 {
			return c > 0
		}
		if c := opps[i].GasCost.Cmp(opps[j].GasCost); c != 0 {
			return c < 0
		}
		if opps[i].BuyVenue != opps[j].BuyVenue {
			return opps[i].BuyVenue < opps[j].BuyVenue
		}
		return opps[i].SellVenue < opps[j].SellVenue
	})
}
