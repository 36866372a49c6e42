package signer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/liquorice-gateway/gateway/internal/chain"
	"github.com/liquorice-gateway/gateway/internal/protocol/liquorice"
)

// Well-known Anvil/Hardhat test account #0, derived from mnemonic
// "test test test test test test test test test test test junk". Never use
// this key outside tests and local fixtures.
const (
	testPrivKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestNewDerivesKnownAddress(t *testing.T) {
	s, err := New(testPrivKey, func(int) (*chain.Chain, bool) { return nil, false })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Address() != common.HexToAddress(testAddress) {
		t.Fatalf("address = %s, want %s", s.Address().Hex(), testAddress)
	}
}

func TestDigestIsDeterministic(t *testing.T) {
	order := sampleOrder()
	d1, err := Digest(order)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	d2, err := Digest(order)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("digest not deterministic: %s != %s", d1.Hex(), d2.Hex())
	}
}

func TestSignQuoteLevelsProducesValidSignature(t *testing.T) {
	key, err := crypto.HexToECDSA(testPrivKey)
	if err != nil {
		t.Fatal(err)
	}
	operatorAddr := crypto.PubkeyToAddress(key.PublicKey)

	settlement := common.HexToAddress("0x1234567890123456789012345678901234567890")
	skeeper := common.HexToAddress("0x9876543210987654321098765432109876543210")
	c := &chain.Chain{
		ID:                42161,
		Name:              "arbitrum",
		Active:            true,
		HasSkeeper:        true,
		SettlementAddress: settlement,
		SkeeperAddress:    skeeper,
	}

	s, err := New(testPrivKey, func(id int) (*chain.Chain, bool) {
		if id == c.ID {
			return c, true
		}
		return nil, false
	})
	if err != nil {
		t.Fatal(err)
	}

	rfq := &liquorice.RFQMessage{
		ChainID:         42161,
		Trader:          common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41"),
		EffectiveTrader: common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41"),
		BaseTokenAmount: big.NewInt(6358600000),
	}
	quote := &liquorice.RFQQuoteMessage{
		Levels: []liquorice.QuoteLevelLite{
			{
				Expiry:              1750707551,
				BaseToken:           common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
				QuoteToken:          common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"),
				BaseTokenAmount:     big.NewInt(6358600000),
				QuoteTokenAmount:    big.NewInt(6676530000),
				MinQuoteTokenAmount: big.NewInt(1),
			},
		},
	}

	if err := s.SignQuoteLevels(rfq, quote); err != nil {
		t.Fatalf("SignQuoteLevels: %v", err)
	}

	level := quote.Levels[0]
	if len(level.Signature) != 65 {
		t.Fatalf("signature length = %d, want 65", len(level.Signature))
	}
	if v := level.Signature[64]; v != 27 && v != 28 {
		t.Fatalf("recovery byte = %d, want 27 or 28", v)
	}
	if level.Signer != operatorAddr {
		t.Fatalf("signer = %s, want %s", level.Signer.Hex(), operatorAddr.Hex())
	}
	if level.Recipient != skeeper || level.EIP1271Verifier != skeeper {
		t.Fatalf("recipient/eip1271Verifier should be the skeeper address")
	}
	if level.SettlementContract != settlement {
		t.Fatalf("settlementContract should be the chain settlement address")
	}

	pub, err := crypto.SigToPub(hashFor(t, rfq, quote)[:], fixRecoveryByte(level.Signature))
	if err != nil {
		t.Fatalf("recovering pubkey: %v", err)
	}
	if crypto.PubkeyToAddress(*pub) != operatorAddr {
		t.Fatalf("recovered address does not match operator")
	}
}

func TestSignQuoteLevelsRejectsUnknownChain(t *testing.T) {
	s, err := New(testPrivKey, func(int) (*chain.Chain, bool) { return nil, false })
	if err != nil {
		t.Fatal(err)
	}
	rfq := &liquorice.RFQMessage{ChainID: 1}
	quote := &liquorice.RFQQuoteMessage{Levels: []liquorice.QuoteLevelLite{{}}}
	if err := s.SignQuoteLevels(rfq, quote); err == nil {
		t.Fatalf("expected error for unknown chain")
	}
}

func sampleOrder() *SignableOrder {
	return &SignableOrder{
		ChainID:             42161,
		SettlementContract:  common.HexToAddress("0x1234567890123456789012345678901234567890"),
		RFQID:               "846063db-1769-438b-8002-00fd981603df",
		Trader:              common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41"),
		EffectiveTrader:     common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41"),
		BaseToken:           common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
		QuoteToken:          common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"),
		BaseTokenAmount:     big.NewInt(6358600000),
		QuoteTokenAmount:    big.NewInt(6676530000),
		MinQuoteTokenAmount: big.NewInt(1),
		QuoteExpiry:         1750707551,
		Recipient:           common.HexToAddress("0x9876543210987654321098765432109876543210"),
	}
}

func hashFor(t *testing.T, rfq *liquorice.RFQMessage, quote *liquorice.RFQQuoteMessage) common.Hash {
	t.Helper()
	level := quote.Levels[0]
	order := &SignableOrder{
		ChainID:             rfq.ChainID,
		SettlementContract:  level.SettlementContract,
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
		Recipient:           level.Recipient,
	}
	d, err := Digest(order)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// fixRecoveryByte converts a 27/28 recovery byte back to the 0/1 form
// crypto.SigToPub expects.
func fixRecoveryByte(sig []byte) []byte {
	out := make([]byte, len(sig))
	copy(out, sig)
	if out[64] >= 27 {
		out[64] -= 27
	}
	return out
}
