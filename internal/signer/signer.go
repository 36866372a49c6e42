// Package signer produces EIP-712 signatures over quote levels, binding
// each signed order to the RFQ it answers, the chain it will settle on, and
// the settlement contract that will execute it, with the SKeeper address as
// recipient and EIP-1271 verifier.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/liquorice-gateway/gateway/internal/chain"
	"github.com/liquorice-gateway/gateway/internal/protocol/liquorice"
)

var (
	domainTypeHash = crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	orderTypeHash  = crypto.Keccak256([]byte("Single(string,uint256,address,address,address,address,uint256,uint256,uint256,uint256,address)"))
	domainName     = crypto.Keccak256([]byte("LiquoriceSettlement"))
	domainVersion  = crypto.Keccak256([]byte("1"))
	eip191Header   = []byte{0x19, 0x01}
)

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("signer: bad abi type %q: %v", t, err))
		}
		args[i] = abi.Argument{Type: typ}
	}
	return args
}

var (
	domainArgs = mustArguments("bytes32", "bytes32", "bytes32", "uint256", "address")
	orderArgs  = mustArguments("bytes32", "bytes32", "uint256", "address", "address", "address", "address", "uint256", "uint256", "uint256", "uint256", "address")
	rfqIDArgs  = mustArguments("string")
)

// SignableOrder is the exact EIP-712 struct the Liquorice settlement
// contract verifies: an RFQ's trade terms bound to a quote level's price
// and expiry, scoped to one chain and one settlement contract.
type SignableOrder struct {
	ChainID             int
	SettlementContract  common.Address
	RFQID               string
	Nonce               [32]byte
	Trader              common.Address
	EffectiveTrader     common.Address
	BaseToken           common.Address
	QuoteToken          common.Address
	BaseTokenAmount     *big.Int
	QuoteTokenAmount    *big.Int
	MinQuoteTokenAmount *big.Int
	QuoteExpiry         int64
	Recipient           common.Address
}

func domainSeparator(o *SignableOrder) (common.Hash, error) {
	packed, err := domainArgs.Pack(
		bytes32From(domainTypeHash),
		bytes32From(domainName),
		bytes32From(domainVersion),
		big.NewInt(int64(o.ChainID)),
		o.SettlementContract,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("packing domain separator: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

func structHash(o *SignableOrder) (common.Hash, error) {
	rfqIDPacked, err := rfqIDArgs.Pack(o.RFQID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("packing rfqId: %w", err)
	}
	rfqIDHash := crypto.Keccak256Hash(rfqIDPacked)

	nonce := new(big.Int).SetBytes(o.Nonce[:])

	packed, err := orderArgs.Pack(
		bytes32From(orderTypeHash),
		rfqIDHash,
		nonce,
		o.Trader,
		o.EffectiveTrader,
		o.BaseToken,
		o.QuoteToken,
		o.BaseTokenAmount,
		o.QuoteTokenAmount,
		o.MinQuoteTokenAmount,
		big.NewInt(o.QuoteExpiry),
		o.Recipient,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("packing order struct: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// Digest computes the final EIP-712 digest: keccak256(0x1901 || domainSeparator || structHash).
func Digest(o *SignableOrder) (common.Hash, error) {
	domain, err := domainSeparator(o)
	if err != nil {
		return common.Hash{}, err
	}
	order, err := structHash(o)
	if err != nil {
		return common.Hash{}, err
	}
	buf := make([]byte, 0, len(eip191Header)+len(domain)+len(order))
	buf = append(buf, eip191Header...)
	buf = append(buf, domain[:]...)
	buf = append(buf, order[:]...)
	return crypto.Keccak256Hash(buf), nil
}

func bytes32From(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}

// Signer holds the maker's private key and signs quote levels against
// chain-specific settlement and SKeeper addresses looked up by chain id.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chains  func(chainID int) (*chain.Chain, bool)
}

// New constructs a Signer from a hex-encoded secp256k1 private key (with or
// without a leading "0x") and a chain lookup function supplying the
// settlement/SKeeper addresses for each chain id a quote may settle on.
func New(privKeyHex string, chainByID func(chainID int) (*chain.Chain, bool)) (*Signer, error) {
	key, err := crypto.HexToECDSA(trimHexPrefix(privKeyHex))
	if err != nil {
		return nil, fmt.Errorf("parsing signer private key: %w", err)
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chains:  chainByID,
	}, nil
}

// Address returns the maker's signing address, which also serves as the
// `signer` field on every quote level this Signer produces.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignQuoteLevels signs every level in quote in place against rfq's trade
// terms, filling in recipient, signer, eip1271Verifier, and settlementContract
// from the chain registry. Returns an error if the RFQ's chain is unknown,
// inactive, or missing a SKeeper or settlement address — callers should treat that as "do
// not quote", not a fatal condition.
func (s *Signer) SignQuoteLevels(rfq *liquorice.RFQMessage, quote *liquorice.RFQQuoteMessage) error {
	c, ok := s.chains(rfq.ChainID)
	if !ok {
		return fmt.Errorf("chain %d not found in chain registry", rfq.ChainID)
	}
	if !c.Active {
		return fmt.Errorf("chain %s is not active", c.Name)
	}
	if !c.ReadyToSign() {
		return fmt.Errorf("chain %s is not ready to sign (missing skeeper or settlement address)", c.Name)
	}

	for i := range quote.Levels {
		level := &quote.Levels[i]

		order := &SignableOrder{
			ChainID:             rfq.ChainID,
			SettlementContract:  c.SettlementAddress,
			RFQID:               quote.RFQID.String(),
			Nonce:               rfq.Nonce,
			Trader:              rfq.Trader,
			EffectiveTrader:     rfq.EffectiveTrader,
			BaseToken:           level.BaseToken,
			QuoteToken:          level.QuoteToken,
			BaseTokenAmount:     level.BaseTokenAmount,
			QuoteTokenAmount:    level.QuoteTokenAmount,
			MinQuoteTokenAmount: level.MinQuoteTokenAmount,
			QuoteExpiry:         level.Expiry,
			// Both recipient and the EIP-1271 verifier are the SKeeper
			// contract address when trades settle through SKeeper.
			Recipient: c.SkeeperAddress,
		}

		digest, err := Digest(order)
		if err != nil {
			return fmt.Errorf("computing digest for level %d: %w", i, err)
		}
		sig, err := crypto.Sign(digest[:], s.key)
		if err != nil {
			return fmt.Errorf("signing level %d: %w", i, err)
		}
		// go-ethereum's recovery id is 0/1; Liquorice (like most EIP-712
		// verifiers) expects the legacy 27/28 convention.
		sig[64] += 27

		level.Signature = sig
		level.EIP1271Verifier = c.SkeeperAddress
		level.Recipient = c.SkeeperAddress
		level.Signer = s.address
		level.SettlementContract = c.SettlementAddress
	}

	return nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
