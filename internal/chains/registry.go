package chains

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pulkyeet/arbscan/internal/config"
)

// Config errors are fatal at startup; nothing here is recovered from.
var (
	ErrInvalidVenue    = errors.New("invalid venue")
	ErrMissingEndpoint = errors.New("chain has no rpc endpoints")
	ErrUnknownToken    = errors.New("pair references unknown token")
	ErrUnknownChain    = errors.New("unknown chain")
)

// Registry is the immutable chain/venue/provider description built from
// config. Changing the venue set means reloading the process, not mutating
// the registry.
type Registry struct {
	chains    map[ChainID]*Chain
	order     []ChainID
	providers map[ChainID][]FlashLoanProvider
}

func NewRegistry(cfg *config.Config) (*Registry, error) {
	r := &Registry{
		chains:    make(map[ChainID]*Chain),
		providers: make(map[ChainID][]FlashLoanProvider),
	}

	for _, cc := range cfg.Chains {
		ch, err := buildChain(cc)
		if err != nil {
			return nil, err
		}
		if _, dup := r.chains[ch.ID]; dup {
			return nil, fmt.Errorf("chain %d configured twice", ch.ID)
		}
		r.chains[ch.ID] = ch
		r.order = append(r.order, ch.ID)
	}
	if len(r.chains) == 0 {
		return nil, fmt.Errorf("no chains configured: %w", ErrUnknownChain)
	}

	for _, fc := range cfg.FlashLoan {
		id := ChainID(fc.ChainID)
		if _, ok := r.chains[id]; !ok {
			return nil, fmt.Errorf("flashloan provider %q: chain %d: %w", fc.Name, fc.ChainID, ErrUnknownChain)
		}
		max, err := parseAmount(fc.MaxNotional)
		if err != nil {
			return nil, fmt.Errorf("flashloan provider %q: max_notional: %w", fc.Name, err)
		}
		// zero means unlimited; a negative value would read as unlimited too
		if max.Sign() < 0 {
			return nil, fmt.Errorf("flashloan provider %q: max_notional %q must not be negative", fc.Name, fc.MaxNotional)
		}
		r.providers[id] = append(r.providers[id], FlashLoanProvider{
			Name:        fc.Name,
			Chain:       id,
			Pool:        common.HexToAddress(fc.Pool),
			FeeBps:      fc.FeeBps,
			MaxNotional: max,
		})
	}

	return r, nil
}

func buildChain(cc config.ChainConfig) (*Chain, error) {
	if len(cc.RPCEndpoints) == 0 {
		return nil, fmt.Errorf("chain %q: %w", cc.Name, ErrMissingEndpoint)
	}

	nativeUSD, err := parseAmount(cc.NativeUSDE8)
	if err != nil {
		return nil, fmt.Errorf("chain %q: native_usd_e8: %w", cc.Name, err)
	}
	if nativeUSD.Sign() < 0 {
		return nil, fmt.Errorf("chain %q: native_usd_e8 %q must not be negative", cc.Name, cc.NativeUSDE8)
	}

	ch := &Chain{
		Name:            cc.Name,
		ID:              ChainID(cc.ChainID),
		Endpoints:       append([]string(nil), cc.RPCEndpoints...),
		PollInterval:    cc.PollInterval(),
		RPCTimeout:      cc.RPCTimeout(),
		RatePerSec:      cc.RPCRatePerSec,
		MaxInFlight:     cc.MaxConcurrent,
		NativeUSDE8:     nativeUSD,
		GasUnitEstimate: cc.GasUnitEstimate,
	}

	bySymbol := make(map[string]Token, len(cc.Tokens))
	for _, tc := range cc.Tokens {
		usd := big.NewInt(100_000_000) // stablecoin default
		if tc.USDE8 != "" {
			if usd, err = parseAmount(tc.USDE8); err != nil {
				return nil, fmt.Errorf("token %q: usd_e8: %w", tc.Symbol, err)
			}
		}
		// gas conversion divides by this price
		if usd.Sign() <= 0 {
			return nil, fmt.Errorf("token %q: usd_e8 %q must be positive", tc.Symbol, tc.USDE8)
		}
		tok := Token{
			Chain:      ch.ID,
			Address:    common.HexToAddress(tc.Address),
			Symbol:     tc.Symbol,
			Decimals:   tc.Decimals,
			USDPriceE8: usd,
		}
		bySymbol[tc.Symbol] = tok
		ch.Tokens = append(ch.Tokens, tok)
	}

	for _, pc := range cc.Pairs {
		base, ok := bySymbol[pc.Base]
		if !ok {
			return nil, fmt.Errorf("chain %q pair %s/%s: %w: %s", cc.Name, pc.Quote, pc.Base, ErrUnknownToken, pc.Base)
		}
		quote, ok := bySymbol[pc.Quote]
		if !ok {
			return nil, fmt.Errorf("chain %q pair %s/%s: %w: %s", cc.Name, pc.Quote, pc.Base, ErrUnknownToken, pc.Quote)
		}
		notional, err := parseAmount(pc.Notional)
		if err != nil || notional.Sign() <= 0 {
			return nil, fmt.Errorf("chain %q pair %s/%s: bad notional %q", cc.Name, pc.Quote, pc.Base, pc.Notional)
		}
		ch.Pairs = append(ch.Pairs, Pair{Base: base, Quote: quote, Notional: notional})
	}

	// venue names key the price cache and dedup routes, so they must be unique
	venueNames := make(map[string]struct{}, len(cc.Venues))
	for _, vc := range cc.Venues {
		kind, err := parseVenueKind(vc.Kind)
		if err != nil {
			return nil, fmt.Errorf("chain %q venue %q: %w", cc.Name, vc.Name, err)
		}
		if vc.Name == "" || vc.Factory == "" {
			return nil, fmt.Errorf("chain %q venue %q: missing name or factory: %w", cc.Name, vc.Name, ErrInvalidVenue)
		}
		if _, dup := venueNames[vc.Name]; dup {
			return nil, fmt.Errorf("chain %q venue %q configured twice: %w", cc.Name, vc.Name, ErrInvalidVenue)
		}
		venueNames[vc.Name] = struct{}{}
		if vc.FeeBps == 0 || vc.FeeBps >= 10000 {
			return nil, fmt.Errorf("chain %q venue %q: fee_bps %d out of range: %w", cc.Name, vc.Name, vc.FeeBps, ErrInvalidVenue)
		}
		ch.Venues = append(ch.Venues, Venue{
			Name:         vc.Name,
			Chain:        ch.ID,
			Kind:         kind,
			Router:       common.HexToAddress(vc.Router),
			Factory:      common.HexToAddress(vc.Factory),
			InitCodeHash: common.HexToHash(vc.InitCodeHash),
			FeeBps:       vc.FeeBps,
		})
	}
	if len(ch.Venues) < 2 {
		return nil, fmt.Errorf("chain %q: need at least 2 venues for cross-venue detection: %w", cc.Name, ErrInvalidVenue)
	}

	return ch, nil
}

func parseVenueKind(s string) (VenueKind, error) {
	switch s {
	case "constant_product":
		return ConstantProduct, nil
	case "concentrated_liquidity":
		return ConcentratedLiquidity, nil
	default:
		return 0, fmt.Errorf("%w: kind %q", ErrInvalidVenue, s)
	}
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", s)
	}
	return v, nil
}

// Chain returns the chain description for id.
func (r *Registry) Chain(id ChainID) (*Chain, bool) {
	ch, ok := r.chains[id]
	return ch, ok
}

// ChainIDs returns configured chains in config order.
func (r *Registry) ChainIDs() []ChainID {
	return r.order
}

// Providers returns the flash-loan providers configured for a chain.
func (r *Registry) Providers(id ChainID) []FlashLoanProvider {
	return r.providers[id]
}

// PollInterval for a chain, falling back to a sane default for unknown ids.
func (r *Registry) PollInterval(id ChainID) time.Duration {
	if ch, ok := r.chains[id]; ok {
		return ch.PollInterval
	}
	return 3 * time.Second
}

// PairAddress derives the pool address for a (venue, pair) via CREATE2.
// Factory plus init code hash is all that's needed, no factory call.
func PairAddress(v Venue, key PairKey) common.Address {
	var salt [32]byte
	switch v.Kind {
	case ConcentratedLiquidity:
		// salt = keccak256(abi.encode(token0, token1, fee))
		buf := make([]byte, 0, 96)
		buf = append(buf, common.LeftPadBytes(key.Token0.Bytes(), 32)...)
		buf = append(buf, common.LeftPadBytes(key.Token1.Bytes(), 32)...)
		fee := new(big.Int).SetUint64(v.FeeBps * 100) // bps -> uniswap fee units
		buf = append(buf, common.LeftPadBytes(fee.Bytes(), 32)...)
		copy(salt[:], crypto.Keccak256(buf))
	default:
		// salt = keccak256(token0 ++ token1)
		copy(salt[:], crypto.Keccak256(key.Token0.Bytes(), key.Token1.Bytes()))
	}
	return crypto.CreateAddress2(v.Factory, salt, v.InitCodeHash.Bytes())
}
