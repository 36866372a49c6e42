// Package registry builds the gateway's static chain/token inventory and
// enriches it from the environment at startup. The original Python service
// discovers chains by importing every submodule of app/evm/chains and
// scanning its exports for Chain/ERC20Token instances (registry.py); per
// spec.md's design note this is replaced with an explicit builder — a
// literal list of chains, each with its stablecoin-triangle tokens — rather
// than any form of dynamic discovery.
package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liquorice-gateway/gateway/internal/chain"
	"github.com/liquorice-gateway/gateway/internal/market"
	"github.com/liquorice-gateway/gateway/internal/settings"
)

// Registry owns the chain list and the Market State graph built from it.
type Registry struct {
	chains []*chain.Chain
	byID   map[int]*chain.Chain
	Market *market.State
}

// Chains returns the fixed set of chains and their stablecoin triangle
// tokens this gateway supports, mirroring the inventory baked into
// app.evm.chains in the original source. Addresses are mainnet/arbitrum
// checksum addresses for USDT/USDC/DAI; settlement and skeeper addresses
// are deployment-specific and left zero until a deployment config sets
// them (see DESIGN.md's Open Question on this point).
func Chains() []*chain.Chain {
	ethereum := &chain.Chain{ID: 1, Name: "ethereum", ShortNames: []string{"ethereum", "eth"}, GasToken: "ETH"}
	arbitrum := &chain.Chain{ID: 42161, Name: "arbitrum", ShortNames: []string{"arbitrum", "arb"}, GasToken: "ETH"}

	ethereum.AddToken(chain.NewToken("Tether USD", "USDT", common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), 6))
	ethereum.AddToken(chain.NewToken("USD Coin", "USDC", common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), 6))
	ethereum.AddToken(chain.NewToken("Dai Stablecoin", "DAI", common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), 18))

	arbitrum.AddToken(chain.NewToken("USD Coin", "USDC", common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), 6))
	arbitrum.AddToken(chain.NewToken("Tether USD", "USDT", common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"), 6))
	arbitrum.AddToken(chain.NewToken("Dai Stablecoin", "DAI", common.HexToAddress("0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1"), 18))

	return []*chain.Chain{ethereum, arbitrum}
}

// New builds a Registry from a chain list, sealing a Market State graph
// with each chain's stablecoin triangle (USDT↔USDC, USDT↔DAI, USDC↔DAI).
func New(chains []*chain.Chain) *Registry {
	r := &Registry{
		chains: chains,
		byID:   make(map[int]*chain.Chain, len(chains)),
		Market: market.New(),
	}

	for _, c := range chains {
		r.byID[c.ID] = c
		for _, t := range c.Tokens {
			r.Market.AddToken(t)
		}
		seedTriangle(r.Market, c)
	}
	r.Market.Seal()
	return r
}

// LoadEnv enriches every chain with its WebSocket RPC URL from
// <SHORTNAME>_WS_URL, trying each of a chain's short names in turn and
// stopping at the first one set. A chain with no configured URL stays
// inactive (spec.md §3: active iff a WS RPC URL was supplied) rather than
// failing the whole registry, unlike the original's from_env, which treats
// a chain with no URL as a fatal misconfiguration — this gateway is meant
// to run with only a subset of its supported chains active.
func (r *Registry) LoadEnv() error {
	for _, c := range r.chains {
		for _, shortName := range c.ShortNames {
			rawURL := settings.ChainWSURL(shortName)
			if rawURL == "" {
				continue
			}
			if err := c.EnrichFromWSURL(rawURL); err != nil {
				return fmt.Errorf("chain %s (%d): %w", c.Name, c.ID, err)
			}
			if settlement := settings.ChainSettlementAddr(shortName); settlement != "" {
				c.SettlementAddress = common.HexToAddress(settlement)
			}
			if skeeper := settings.ChainSkeeperAddr(shortName); skeeper != "" {
				c.SkeeperAddress = common.HexToAddress(skeeper)
				c.HasSkeeper = true
			}
			break
		}
	}
	return nil
}

// ChainByID returns the chain with the given id, or false if unknown.
func (r *Registry) ChainByID(id int) (*chain.Chain, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// ActiveChains returns every chain whose WebSocket RPC URL was
// successfully configured, the set the Supervisor spawns Inventory
// Trackers for.
func (r *Registry) ActiveChains() []*chain.Chain {
	var out []*chain.Chain
	for _, c := range r.chains {
		if c.Active {
			out = append(out, c)
		}
	}
	return out
}

// seedTriangle connects the fixed USDT↔USDC, USDT↔DAI, USDC↔DAI edges for
// a chain's stablecoins, matching app/markets/markets.py's per-chain
// triangle. Tokens missing from a chain's inventory are skipped silently —
// not every chain in the registry needs to carry all three.
func seedTriangle(m *market.State, c *chain.Chain) {
	bySymbol := make(map[string]*chain.Token, len(c.Tokens))
	for _, t := range c.Tokens {
		bySymbol[t.Symbol] = t
	}
	usdt, hasUSDT := bySymbol["USDT"]
	usdc, hasUSDC := bySymbol["USDC"]
	dai, hasDAI := bySymbol["DAI"]

	if hasUSDT && hasUSDC {
		m.AddEdge(usdt, usdc)
	}
	if hasUSDT && hasDAI {
		m.AddEdge(usdt, dai)
	}
	if hasUSDC && hasDAI {
		m.AddEdge(usdc, dai)
	}
}
