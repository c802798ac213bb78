package eth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// Fetch-level error classes. Callers branch with errors.Is; the wrapped
// chain keeps endpoint/context detail for logs.
var (
	ErrTimeout     = errors.New("rpc call timed out")
	ErrUnreachable = errors.New("all rpc endpoints unreachable")
)

// Client multiplexes one chain's ordered endpoint list behind a single
// interface. Every call gets its own deadline and counts against a shared
// rate limit; a failing endpoint rotates to the next one in the list.
type Client struct {
	endpoints []string
	timeout   time.Duration
	limiter   *rate.Limiter

	mu      sync.Mutex
	conns   []*ethclient.Client // lazily dialed, index-aligned with endpoints
	primary int                 // current preferred endpoint
}

func NewClient(endpoints []string, timeout time.Duration, ratePerSec float64) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("eth: no endpoints")
	}
	return &Client{
		endpoints: append([]string(nil), endpoints...),
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec)+1),
		conns:     make([]*ethclient.Client, len(endpoints)),
	}, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, conn := range c.conns {
		if conn != nil {
			conn.Close()
			c.conns[i] = nil
		}
	}
}

// conn returns the client for endpoint index i, dialing on first use.
func (c *Client) conn(i int) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conns[i] != nil {
		return c.conns[i], nil
	}
	conn, err := ethclient.Dial(c.endpoints[i])
	if err != nil {
		return nil, err
	}
	c.conns[i] = conn
	return conn, nil
}

func (c *Client) rotate(from int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.primary == from {
		c.primary = (c.primary + 1) % len(c.endpoints)
	}
}

// do runs fn against the preferred endpoint and walks the failover list on
// error. Deadline overruns map to ErrTimeout, exhaustion to ErrUnreachable.
func (c *Client) do(ctx context.Context, fn func(ctx context.Context, conn *ethclient.Client) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	c.mu.Lock()
	start := c.primary
	c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < len(c.endpoints); attempt++ {
		idx := (start + attempt) % len(c.endpoints)

		conn, err := c.conn(idx)
		if err != nil {
			lastErr = err
			c.rotate(idx)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = fn(callCtx, conn)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			// whole-operation cancellation, not an endpoint problem
			return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			lastErr = fmt.Errorf("%w: endpoint %d: %v", ErrTimeout, idx, err)
		}
		log.Printf("eth: endpoint %d failed, rotating: %v", idx, err)
		c.rotate(idx)
	}

	if errors.Is(lastErr, ErrTimeout) {
		return lastErr
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, lastErr)
}

// CallContract issues a read-only eth_call at the given block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNum *big.Int) ([]byte, error) {
	var out []byte
	err := c.do(ctx, func(ctx context.Context, conn *ethclient.Client) error {
		res, err := conn.CallContract(ctx, msg, blockNum)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	err := c.do(ctx, func(ctx context.Context, conn *ethclient.Client) error {
		n, err := conn.BlockNumber(ctx)
		if err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

// SuggestGasPrice returns the current gas price in the native smallest unit.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := c.do(ctx, func(ctx context.Context, conn *ethclient.Client) error {
		p, err := conn.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}
