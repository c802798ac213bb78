package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pulkyeet/arbscan/internal/chains"
	"github.com/pulkyeet/arbscan/internal/pricecache"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrPairNotFound: the venue does not list the pair. Not an error
	// condition for the refresh, the (venue, pair) is excluded silently.
	ErrPairNotFound = errors.New("pair not listed on venue")
	ErrMalformed    = errors.New("malformed contract response")
)

// Client is the read-only RPC surface the fetcher needs, satisfied by
// *eth.Client.
type Client interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNum *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// RefreshReport summarizes one refresh cycle over a chain.
type RefreshReport struct {
	Chain     chains.ChainID
	Block     uint64
	Observed  int
	NotFound  int
	Failed    int
	Discarded int // successful observations older than what was cached
	Elapsed   time.Duration
}

func (r *RefreshReport) String() string {
	return fmt.Sprintf("chain=%d block=%d observed=%d notfound=%d failed=%d discarded=%d in %s",
		r.Chain, r.Block, r.Observed, r.NotFound, r.Failed, r.Discarded, r.Elapsed.Round(time.Millisecond))
}

type poolKey struct {
	venue string
	pair  chains.PairKey
}

// Fetcher polls every (venue, pair) on a chain and upserts observations
// into the price cache. Independent observations run concurrently under a
// per-chain limit; failures are isolated and counted, never fatal to the
// cycle.
type Fetcher struct {
	reg     *chains.Registry
	cache   *pricecache.Cache
	clients map[chains.ChainID]Client
	pools   *lru.Cache[poolKey, common.Address]
	now     func() time.Time
}

func New(reg *chains.Registry, cache *pricecache.Cache, clients map[chains.ChainID]Client) (*Fetcher, error) {
	pools, err := lru.New[poolKey, common.Address](1024)
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		reg:     reg,
		cache:   cache,
		clients: clients,
		pools:   pools,
		now:     time.Now,
	}, nil
}

// Refresh observes every (venue, pair) on the chain at a single pinned
// block and writes the results into the cache. It returns an error only
// when the chain itself is unreachable (no block number could be fetched);
// per-observation failures land in the report instead.
func (f *Fetcher) Refresh(ctx context.Context, chainID chains.ChainID) (*RefreshReport, error) {
	chain, ok := f.reg.Chain(chainID)
	if !ok {
		return nil, fmt.Errorf("fetcher: %w: %d", chains.ErrUnknownChain, chainID)
	}
	client, ok := f.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("fetcher: no client for chain %d", chainID)
	}

	start := f.now()
	block, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetcher: chain %d head: %w", chainID, err)
	}

	var observed, notFound, failed, discarded atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chain.MaxInFlight)

	for _, venue := range chain.Venues {
		for _, pair := range chain.Pairs {
			venue, pair := venue, pair
			g.Go(func() error {
				snap, err := f.observe(gctx, client, venue, pair, block)
				switch {
				case err == nil:
					if f.cache.Upsert(snap) {
						observed.Add(1)
					} else {
						discarded.Add(1)
					}
				case errors.Is(err, ErrPairNotFound):
					notFound.Add(1)
				default:
					failed.Add(1)
					log.Printf("fetcher: chain %d %s %s: %v", chainID, venue.Name, pair, err)
				}
				// observation failures never abort the group
				return nil
			})
		}
	}
	_ = g.Wait()

	return &RefreshReport{
		Chain:     chainID,
		Block:     block,
		Observed:  int(observed.Load()),
		NotFound:  int(notFound.Load()),
		Failed:    int(failed.Load()),
		Discarded: int(discarded.Load()),
		Elapsed:   f.now().Sub(start),
	}, nil
}

// observe reads one pool's state at the pinned block and builds the
// immutable snapshot.
func (f *Fetcher) observe(ctx context.Context, client Client, venue chains.Venue,
	pair chains.Pair, block uint64) (*pricecache.Snapshot, error) {

	key := pair.Key()
	pk := poolKey{venue: venue.Name, pair: key}
	addr, ok := f.pools.Get(pk)
	if !ok {
		addr = chains.PairAddress(venue, key)
		f.pools.Add(pk, addr)
	}

	blockNum := new(big.Int).SetUint64(block)

	var r0, r1 *big.Int
	var err error
	switch venue.Kind {
	case chains.ConcentratedLiquidity:
		r0, r1, err = fetchVirtualReserves(ctx, client, addr, blockNum)
	default:
		r0, r1, err = fetchReserves(ctx, client, addr, blockNum)
	}
	if err != nil {
		return nil, err
	}

	return newSnapshot(venue, key, r0, r1, block, f.now())
}
