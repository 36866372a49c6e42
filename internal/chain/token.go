package chain

import (
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

// Balance is an immutable snapshot of a token's on-chain balance as observed
// by the Inventory Tracker. Readers load the whole snapshot atomically, so
// they never see a torn (balance, block) pair.
type Balance struct {
	Raw         *big.Int
	LastUpdated uint64
}

// Token represents an ERC-20 token on a specific Chain. Name, Symbol, Chain,
// Address, and Decimals are fixed at construction; Balance is the only
// mutable field and is updated by the chain's Inventory Tracker.
//
// Equality and graph-key identity are (Chain.ID, lower(Address)) so lookups
// and graph edges are case-insensitive on address but scoped to one chain.
type Token struct {
	Name     string
	Symbol   string
	Chain    *Chain
	Address  common.Address
	Decimals uint8

	balance atomic.Pointer[Balance]
}

// NewToken constructs a token with a zero starting balance. Chain is set by
// Chain.AddToken and is not required here.
func NewToken(name, symbol string, address common.Address, decimals uint8) *Token {
	t := &Token{Name: name, Symbol: symbol, Address: address, Decimals: decimals}
	t.balance.Store(&Balance{Raw: new(big.Int)})
	return t
}

// Key returns the (chain id, lowercase address) identity used for lookups
// and as a graph node key.
func (t *Token) Key() TokenKey {
	chainID := 0
	if t.Chain != nil {
		chainID = t.Chain.ID
	}
	return TokenKey{ChainID: chainID, Address: strings.ToLower(t.Address.Hex())}
}

// TokenKey is the case-insensitive, chain-scoped identity of a token.
type TokenKey struct {
	ChainID int
	Address string
}

// Equal reports whether two tokens share the same chain and address,
// case-insensitively on the address.
func (t *Token) Equal(other *Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Key() == other.Key()
}

// SetBalance atomically replaces the token's balance snapshot.
func (t *Token) SetBalance(raw *big.Int, lastUpdatedBlock uint64) {
	t.balance.Store(&Balance{Raw: raw, LastUpdated: lastUpdatedBlock})
}

// GetBalance returns the most recently observed balance snapshot. Callers
// tolerate staleness; there is no locking between writer and readers.
func (t *Token) GetBalance() Balance {
	b := t.balance.Load()
	if b == nil {
		return Balance{Raw: new(big.Int)}
	}
	return *b
}

// RawToDecimal converts a raw (smallest-unit) amount to an exact decimal
// value given the token's decimals. big.Rat is used (not big.Float) so the
// conversion is lossless and round-trips exactly for any raw in [0, 2^256-1].
func (t *Token) RawToDecimal(raw *big.Int) *big.Rat {
	return new(big.Rat).SetFrac(raw, pow10(t.Decimals))
}

// DecimalToRaw converts a decimal amount back to its raw (smallest-unit)
// representation, truncating toward zero. Amounts here are always
// non-negative, so truncation toward zero and the floor coincide.
func (t *Token) DecimalToRaw(dec *big.Rat) *big.Int {
	scaled := new(big.Rat).Mul(dec, new(big.Rat).SetInt(pow10(t.Decimals)))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom())
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
