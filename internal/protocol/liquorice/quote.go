package liquorice

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// QuoteLevelLite is a single priced level in a quote response. The gateway
// only ever emits one level per quote, but the wire format is a list to
// leave room for tiered liquidity upstream never asked this maker for.
type QuoteLevelLite struct {
	Expiry              int64
	SettlementContract  common.Address
	Recipient           common.Address
	Signer              common.Address
	EIP1271Verifier     common.Address
	BaseToken           common.Address
	QuoteToken          common.Address
	BaseTokenAmount     *big.Int
	QuoteTokenAmount    *big.Int
	MinQuoteTokenAmount *big.Int
	Signature           []byte
}

type quoteLevelLiteWire struct {
	Expiry              int64   `json:"expiry"`
	SettlementContract  string  `json:"settlementContract"`
	Recipient           string  `json:"recipient"`
	Signer              string  `json:"signer"`
	EIP1271Verifier     *string `json:"eip1271Verifier,omitempty"`
	BaseToken           string  `json:"baseToken"`
	QuoteToken          string  `json:"quoteToken"`
	BaseTokenAmount     string  `json:"baseTokenAmount"`
	QuoteTokenAmount    string  `json:"quoteTokenAmount"`
	MinQuoteTokenAmount string  `json:"minQuoteTokenAmount"`
	Signature           string  `json:"signature"`
	Type                string  `json:"type"`
}

// MarshalJSON renders the level the way the upstream expects it on the
// wire: decimal-string amounts, hex addresses, and a fixed "lite" type tag.
func (l QuoteLevelLite) MarshalJSON() ([]byte, error) {
	w := quoteLevelLiteWire{
		Expiry:              l.Expiry,
		SettlementContract:  l.SettlementContract.Hex(),
		Recipient:           l.Recipient.Hex(),
		Signer:              l.Signer.Hex(),
		BaseToken:           l.BaseToken.Hex(),
		QuoteToken:          l.QuoteToken.Hex(),
		BaseTokenAmount:     amountString(l.BaseTokenAmount),
		QuoteTokenAmount:    amountString(l.QuoteTokenAmount),
		MinQuoteTokenAmount: amountString(l.MinQuoteTokenAmount),
		Signature:           "0x" + commonBytesToHex(l.Signature),
		Type:                "lite",
	}
	if (l.EIP1271Verifier != common.Address{}) {
		v := l.EIP1271Verifier.Hex()
		w.EIP1271Verifier = &v
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses a quote level back from its wire form, as the
// envelope round-trip tests do; the gateway itself only ever marshals
// these and never unmarshals them off the live feed.
func (l *QuoteLevelLite) UnmarshalJSON(data []byte) error {
	var w quoteLevelLiteWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding quote level: %w", err)
	}
	settlement, err := parseChecksumAddress(w.SettlementContract)
	if err != nil {
		return err
	}
	recipient, err := parseChecksumAddress(w.Recipient)
	if err != nil {
		return err
	}
	signer, err := parseChecksumAddress(w.Signer)
	if err != nil {
		return err
	}
	baseToken, err := parseChecksumAddress(w.BaseToken)
	if err != nil {
		return err
	}
	quoteToken, err := parseChecksumAddress(w.QuoteToken)
	if err != nil {
		return err
	}
	baseAmount, ok := new(big.Int).SetString(w.BaseTokenAmount, 10)
	if !ok {
		return fmt.Errorf("bad baseTokenAmount")
	}
	quoteAmount, ok := new(big.Int).SetString(w.QuoteTokenAmount, 10)
	if !ok {
		return fmt.Errorf("bad quoteTokenAmount")
	}
	minQuoteAmount, ok := new(big.Int).SetString(w.MinQuoteTokenAmount, 10)
	if !ok {
		return fmt.Errorf("bad minQuoteTokenAmount")
	}
	sig := common.FromHex(w.Signature)
	if len(sig) != 65 {
		return fmt.Errorf("signature must be 65 bytes")
	}

	l.Expiry = w.Expiry
	l.SettlementContract = settlement
	l.Recipient = recipient
	l.Signer = signer
	l.BaseToken = baseToken
	l.QuoteToken = quoteToken
	l.BaseTokenAmount = baseAmount
	l.QuoteTokenAmount = quoteAmount
	l.MinQuoteTokenAmount = minQuoteAmount
	l.Signature = sig
	if w.EIP1271Verifier != nil {
		v, err := parseChecksumAddress(*w.EIP1271Verifier)
		if err != nil {
			return err
		}
		l.EIP1271Verifier = v
	}
	return nil
}

func amountString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func commonBytesToHex(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexdigits[c>>4]
		out[i*2+1] = hexdigits[c&0x0f]
	}
	return string(out)
}

// RFQQuoteMessage is the gateway's response to an RFQMessage: zero or more
// priced levels keyed to the originating RFQ id. An empty Levels slice means
// the maker declined to quote.
type RFQQuoteMessage struct {
	RFQID  uuid.UUID
	Levels []QuoteLevelLite
}

type rfqQuoteMessageWire struct {
	RFQID  uuid.UUID        `json:"rfqId"`
	Levels []QuoteLevelLite `json:"levels"`
}

func (m RFQQuoteMessage) MarshalJSON() ([]byte, error) {
	levels := m.Levels
	if levels == nil {
		levels = []QuoteLevelLite{}
	}
	return json.Marshal(rfqQuoteMessageWire{RFQID: m.RFQID, Levels: levels})
}

func (m *RFQQuoteMessage) UnmarshalJSON(data []byte) error {
	var w rfqQuoteMessageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding quote message: %w", err)
	}
	m.RFQID = w.RFQID
	m.Levels = w.Levels
	return nil
}
