package flashloan

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pulkyeet/arbscan/internal/chains"
)

var (
	ErrUnavailable = errors.New("no flash loan provider available")
	ErrCapacity    = errors.New("amount exceeds provider capacity")
)

// Quote is a fee quote for borrowing Amount of Asset from Provider. Quotes
// are computed fresh per evaluation and never cached: the formula is cheap
// and provider capacity can change under us.
type Quote struct {
	Provider string
	Pool     common.Address
	Asset    common.Address
	Amount   *big.Int
	Fee      *big.Int
	FeeBps   uint64
}

// Quoter is the collaborator interface the detector depends on.
type Quoter interface {
	Best(chain chains.ChainID, asset common.Address, amount *big.Int) (*Quote, error)
}

// Book holds the configured providers per chain and answers fee quotes.
type Book struct {
	providers map[chains.ChainID][]chains.FlashLoanProvider
}

func NewBook(reg *chains.Registry) *Book {
	b := &Book{providers: make(map[chains.ChainID][]chains.FlashLoanProvider)}
	for _, id := range reg.ChainIDs() {
		b.providers[id] = reg.Providers(id)
	}
	return b
}

// Best returns the lowest-fee provider whose capacity covers amount.
// Fee arithmetic is integer floor division, matching on-chain semantics.
func (b *Book) Best(chain chains.ChainID, asset common.Address, amount *big.Int) (*Quote, error) {
	var best *Quote
	capacityHit := false

	for _, p := range b.providers[chain] {
		if p.MaxNotional.Sign() > 0 && amount.Cmp(p.MaxNotional) > 0 {
			capacityHit = true
			continue
		}
		fee := feeFor(amount, p.FeeBps)
		if best == nil || fee.Cmp(best.Fee) < 0 {
			best = &Quote{
				Provider: p.Name,
				Pool:     p.Pool,
				Asset:    asset,
				Amount:   new(big.Int).Set(amount),
				Fee:      fee,
				FeeBps:   p.FeeBps,
			}
		}
	}

	if best == nil {
		if capacityHit {
			return nil, fmt.Errorf("%w: amount %s", ErrCapacity, amount)
		}
		return nil, fmt.Errorf("%w: chain %d", ErrUnavailable, chain)
	}
	return best, nil
}

func feeFor(amount *big.Int, feeBps uint64) *big.Int {
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(feeBps))
	return fee.Div(fee, big.NewInt(10000))
}
