package liquorice

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

func sampleQuoteLevel() QuoteLevelLite {
	return QuoteLevelLite{
		Expiry:              1746972086,
		SettlementContract:  common.HexToAddress("0xAcA684A3F64e0eae4812B734E3f8f205D3EEd167"),
		Recipient:           common.HexToAddress("0xB073C430FbDd0f56D6BfDdcb7e40C17CC611Fc04"),
		Signer:              common.HexToAddress("0xB073C430FbDd0f56D6BfDdcb7e40C17CC611Fc04"),
		BaseToken:           common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"),
		QuoteToken:          common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
		BaseTokenAmount:     big.NewInt(1249771130),
		QuoteTokenAmount:    big.NewInt(135542446),
		MinQuoteTokenAmount: big.NewInt(1),
		Signature:           common.FromHex("0xa235ba3136acb14c5968f119af99983b0af5ea42349ec4f891c4f48ed97c3c6b43ef48ec75875c5400461bdaea02619e6db8e2b2c0daf5f15b5280c0d4067c571b"),
	}
}

func TestEnvelopeInferQuoteType(t *testing.T) {
	quote := &RFQQuoteMessage{
		RFQID:  uuid.MustParse("2aca5f16-defd-4f0c-9d4e-f219d69cbd7b"),
		Levels: []QuoteLevelLite{sampleQuoteLevel()},
	}
	env := NewQuoteEnvelope(quote)
	if env.MessageType != MessageTypeRFQQuote {
		t.Fatalf("expected rfqQuote message type, got %s", env.MessageType)
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var roundTripped Envelope
	if err := json.Unmarshal(data, &roundTripped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if roundTripped.Quote == nil || roundTripped.Quote.RFQID != quote.RFQID {
		t.Fatalf("round trip lost rfqId")
	}
	if roundTripped.Quote.Levels[0].Signature[0] != 0xa2 {
		t.Fatalf("round trip lost signature bytes")
	}
}

func TestEnvelopeUnknownMessageType(t *testing.T) {
	var env Envelope
	err := json.Unmarshal([]byte(`{"messageType":"bogus","message":{}}`), &env)
	if err == nil {
		t.Fatalf("expected error for unknown message type")
	}
}

func TestEnvelopeMarshalMismatchedPayload(t *testing.T) {
	env := Envelope{MessageType: MessageTypeRFQ}
	if _, err := json.Marshal(env); err == nil {
		t.Fatalf("expected mismatch error when RFQ payload is nil")
	}
}
