package chains

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pulkyeet/arbscan/internal/config"
	"github.com/stretchr/testify/require"
)

func validChainConfig() config.ChainConfig {
	return config.ChainConfig{
		Name:         "ethereum",
		ChainID:      1,
		RPCEndpoints: []string{"http://localhost:8545"},
		Tokens: []config.TokenConfig{
			{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
			{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18, USDE8: "250000000000"},
		},
		Pairs: []config.PairConfig{
			{Base: "USDC", Quote: "WETH", Notional: "1000000000"},
		},
		Venues: []config.VenueConfig{
			{Name: "uniswap-v2", Kind: "constant_product",
				Factory:      "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
				InitCodeHash: "0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f",
				FeeBps:       30},
			{Name: "sushiswap", Kind: "constant_product",
				Factory:      "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac",
				InitCodeHash: "0xe18a34eb0e04b04f7a0ac29a6e80748dca96319b42c54d679cb821dca90c6303",
				FeeBps:       30},
		},
	}
}

func TestRegistryBuilds(t *testing.T) {
	reg, err := NewRegistry(&config.Config{
		Chains: []config.ChainConfig{validChainConfig()},
		FlashLoan: []config.FlashLoanConfig{
			{Name: "aave-v3", ChainID: 1, Pool: "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2", FeeBps: 9, MaxNotional: "50000000000000"},
		},
	})
	require.NoError(t, err)

	require.Equal(t, []ChainID{1}, reg.ChainIDs())

	ch, ok := reg.Chain(1)
	require.True(t, ok)
	require.Len(t, ch.Venues, 2)
	require.Len(t, ch.Pairs, 1)
	require.Equal(t, "WETH/USDC", ch.Pairs[0].String())

	providers := reg.Providers(1)
	require.Len(t, providers, 1)
	require.Equal(t, uint64(9), providers[0].FeeBps)

	// stablecoin default reference price
	require.Equal(t, "100000000", ch.Pairs[0].Base.USDPriceE8.String())
	require.Equal(t, "250000000000", ch.Pairs[0].Quote.USDPriceE8.String())
}

func TestRegistryValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.ChainConfig)
		want   error
	}{
		{"no endpoints", func(c *config.ChainConfig) { c.RPCEndpoints = nil }, ErrMissingEndpoint},
		{"one venue", func(c *config.ChainConfig) { c.Venues = c.Venues[:1] }, ErrInvalidVenue},
		{"zero fee", func(c *config.ChainConfig) { c.Venues[0].FeeBps = 0 }, ErrInvalidVenue},
		{"fee out of range", func(c *config.ChainConfig) { c.Venues[0].FeeBps = 10000 }, ErrInvalidVenue},
		{"bad venue kind", func(c *config.ChainConfig) { c.Venues[0].Kind = "orderbook" }, ErrInvalidVenue},
		{"missing factory", func(c *config.ChainConfig) { c.Venues[0].Factory = "" }, ErrInvalidVenue},
		{"duplicate venue name", func(c *config.ChainConfig) { c.Venues[1].Name = c.Venues[0].Name }, ErrInvalidVenue},
		{"unknown pair token", func(c *config.ChainConfig) { c.Pairs[0].Base = "DAI" }, ErrUnknownToken},
		// gas conversion divides by the token reference price, so a zero
		// or negative price must die at load, not at detection time
		{"zero token usd price", func(c *config.ChainConfig) { c.Tokens[1].USDE8 = "0" }, nil},
		{"negative token usd price", func(c *config.ChainConfig) { c.Tokens[0].USDE8 = "-100000000" }, nil},
		{"negative native usd price", func(c *config.ChainConfig) { c.NativeUSDE8 = "-1" }, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cc := validChainConfig()
			tc.mutate(&cc)
			_, err := NewRegistry(&config.Config{Chains: []config.ChainConfig{cc}})
			require.Error(t, err)
			if tc.want != nil {
				require.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestRegistryRejectsNegativeProviderCapacity(t *testing.T) {
	// negative max_notional would pass the capacity check as unlimited
	_, err := NewRegistry(&config.Config{
		Chains: []config.ChainConfig{validChainConfig()},
		FlashLoan: []config.FlashLoanConfig{
			{Name: "aave-v3", ChainID: 1, Pool: "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2", FeeBps: 9, MaxNotional: "-1"},
		},
	})
	require.Error(t, err)
}

func TestRegistryRejectsProviderOnUnknownChain(t *testing.T) {
	_, err := NewRegistry(&config.Config{
		Chains: []config.ChainConfig{validChainConfig()},
		FlashLoan: []config.FlashLoanConfig{
			{Name: "aave-v3", ChainID: 137, Pool: "0x0000000000000000000000000000000000000001", FeeBps: 9},
		},
	})
	require.ErrorIs(t, err, ErrUnknownChain)
}

func TestRegistryRejectsEmptyAndDuplicate(t *testing.T) {
	_, err := NewRegistry(&config.Config{})
	require.Error(t, err)

	cc := validChainConfig()
	_, err = NewRegistry(&config.Config{Chains: []config.ChainConfig{cc, cc}})
	require.Error(t, err)
}

func TestNewPairKeySortsAddresses(t *testing.T) {
	usdc := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

	k1 := NewPairKey(usdc, weth)
	k2 := NewPairKey(weth, usdc)
	require.Equal(t, k1, k2)
	require.Equal(t, usdc, k1.Token0)
	require.Equal(t, weth, k1.Token1)
}

func TestPairAddressUniswapV2(t *testing.T) {
	cc := validChainConfig()
	reg, err := NewRegistry(&config.Config{Chains: []config.ChainConfig{cc}})
	require.NoError(t, err)

	ch, _ := reg.Chain(1)
	key := ch.Pairs[0].Key()

	// canonical mainnet WETH/USDC pair
	addr := PairAddress(ch.Venues[0], key)
	require.Equal(t, common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"), addr)
}

func TestPairAddressConcentratedLiquidity(t *testing.T) {
	v := Venue{
		Name:         "uniswap-v3",
		Chain:        1,
		Kind:         ConcentratedLiquidity,
		Factory:      common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
		InitCodeHash: common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"),
		FeeBps:       30, // 3000 in uniswap fee units
	}
	key := NewPairKey(
		common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	)

	// canonical mainnet USDC/WETH 0.3% pool
	addr := PairAddress(v, key)
	require.Equal(t, common.HexToAddress("0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8"), addr)
}
