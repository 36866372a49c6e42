// Package chain models the blockchains and ERC-20 tokens this gateway
// quotes and settles against.
package chain

import (
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
)

// Chain represents a blockchain network and its gateway-relevant configuration.
// Identities (ID, Name, ShortNames, GasToken, POA) are fixed at startup from
// the static inventory; Active, WSRPCURL, SettlementAddress, SkeeperAddress and
// HasSkeeper are filled in once from the environment; Tokens grows during
// registry construction and is never mutated after that.
type Chain struct {
	ID                int
	Name              string
	ShortNames        []string
	GasToken          string
	POA               bool
	Active            bool
	SettlementAddress common.Address
	SkeeperAddress    common.Address
	HasSkeeper        bool
	WSRPCURL          string
	Tokens            []*Token
}

// EnrichFromWSURL validates and sets the chain's websocket RPC URL, marking it active.
func (c *Chain) EnrichFromWSURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("chain %s (%d): empty WS RPC URL", c.Name, c.ID)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("chain %s (%d): invalid WS RPC URL %q: %w", c.Name, c.ID, rawURL, err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("chain %s (%d): WS RPC URL %q must have scheme ws or wss", c.Name, c.ID, rawURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("chain %s (%d): WS RPC URL %q has no host", c.Name, c.ID, rawURL)
	}
	c.WSRPCURL = rawURL
	c.Active = true
	return nil
}

// ReadyToSign reports whether the chain has everything the Signer requires.
func (c *Chain) ReadyToSign() bool {
	return c.Active && c.HasSkeeper && c.SettlementAddress != (common.Address{})
}

// AddToken appends a token to the chain's token list, setting the back-reference.
func (c *Chain) AddToken(t *Token) {
	t.Chain = c
	c.Tokens = append(c.Tokens, t)
}
