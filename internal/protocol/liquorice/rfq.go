// Package liquorice implements the wire messages of the upstream RFQ auction
// feed: the inbound RFQMessage, the outbound RFQQuoteMessage, and the
// envelope that tags each with a message type.
package liquorice

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Expiry timestamps must fall strictly inside this window. The bounds are
// fixed points, not derived from wall-clock time, matching the upstream
// validator.
const (
	expiryLowerBound = 1750000000
	expiryUpperBound = 2000000000
)

var nonceHexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// intentMetadataSourceCowProtocol is the only accepted IntentMetadata.Source
// value, matching the upstream schema's source: Literal["cow_protocol"].
const intentMetadataSourceCowProtocol = "cow_protocol"

// IntentMetadataContent carries the CoW Protocol auction this RFQ originated
// from. Only populated when IntentMetadata.Source is "cow_protocol".
type IntentMetadataContent struct {
	AuctionID int64 `json:"auctionId"`
}

// IntentMetadata is present on an RFQMessage only when the requesting solver
// is quoting on behalf of another intent system. Absent entirely otherwise.
type IntentMetadata struct {
	Source  string                 `json:"source"`
	Content IntentMetadataContent `json:"content"`
}

// RFQMessage is a single request for quote from the upstream auction.
// Exactly one of BaseTokenAmount or QuoteTokenAmount is set: the former asks
// "how much quoteToken for this much baseToken", the latter the reverse.
type RFQMessage struct {
	ChainID          int
	Solver           string
	SolverRFQID      uuid.UUID
	RFQID            uuid.UUID
	Nonce            [32]byte
	BaseToken        common.Address
	QuoteToken       common.Address
	Trader           common.Address
	EffectiveTrader  common.Address
	Expiry           int64
	BaseTokenAmount  *big.Int
	QuoteTokenAmount *big.Int
	IntentMetadata   *IntentMetadata
}

type rfqMessageWire struct {
	ChainID          int             `json:"chainId"`
	Solver           *string         `json:"solver"`
	SolverRFQID      uuid.UUID       `json:"solverRfqId"`
	RFQID            uuid.UUID       `json:"rfqId"`
	Nonce            string          `json:"nonce"`
	BaseToken        string          `json:"baseToken"`
	QuoteToken       string          `json:"quoteToken"`
	Trader           string          `json:"trader"`
	EffectiveTrader  string          `json:"effectiveTrader"`
	Expiry           json.Number     `json:"expiry"`
	BaseTokenAmount  *string         `json:"baseTokenAmount"`
	QuoteTokenAmount *string         `json:"quoteTokenAmount"`
	IntentMetadata   *IntentMetadata `json:"intentMetadata,omitempty"`
}

// UnmarshalJSON applies the same field-level validation as the upstream
// pydantic schema: checksum addresses, a 32-byte hex nonce, a bounded
// integer expiry, and decimal-string token amounts up to 256 bits.
func (m *RFQMessage) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var w rfqMessageWire
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("decoding rfq message: %w", err)
	}

	expiry, err := w.Expiry.Int64()
	if err != nil {
		return fmt.Errorf("expiry must be a positive integer (unix timestamp in seconds)")
	}
	if expiry <= 0 {
		return fmt.Errorf("expiry must be a positive integer (unix timestamp in seconds)")
	}
	if !(expiryLowerBound < expiry && expiry < expiryUpperBound) {
		return fmt.Errorf("expiry must be a unix timestamp in seconds")
	}

	nonce, err := parseNonce(w.Nonce)
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
	trader, err := parseChecksumAddress(w.Trader)
	if err != nil {
		return err
	}
	effectiveTrader, err := parseChecksumAddress(w.EffectiveTrader)
	if err != nil {
		return err
	}

	baseAmount, err := parseTokenAmount(w.BaseTokenAmount)
	if err != nil {
		return err
	}
	quoteAmount, err := parseTokenAmount(w.QuoteTokenAmount)
	if err != nil {
		return err
	}
	if (baseAmount != nil && baseAmount.Sign() != 0) == (quoteAmount != nil && quoteAmount.Sign() != 0) {
		return fmt.Errorf("exactly one of baseTokenAmount or quoteTokenAmount must be set")
	}

	if w.IntentMetadata != nil && w.IntentMetadata.Source != intentMetadataSourceCowProtocol {
		return fmt.Errorf("intentMetadata.source must be %q, got %q", intentMetadataSourceCowProtocol, w.IntentMetadata.Source)
	}

	solver := ""
	if w.Solver != nil {
		solver = *w.Solver
	}

	m.ChainID = w.ChainID
	m.Solver = solver
	m.SolverRFQID = w.SolverRFQID
	m.RFQID = w.RFQID
	m.Nonce = nonce
	m.BaseToken = baseToken
	m.QuoteToken = quoteToken
	m.Trader = trader
	m.EffectiveTrader = effectiveTrader
	m.Expiry = expiry
	m.BaseTokenAmount = baseAmount
	m.QuoteTokenAmount = quoteAmount
	m.IntentMetadata = w.IntentMetadata
	return nil
}

func parseNonce(v string) ([32]byte, error) {
	var out [32]byte
	s := strings.TrimPrefix(v, "0x")
	if !nonceHexPattern.MatchString(s) {
		return out, fmt.Errorf("nonce must be a 32-byte hex string")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("nonce must be a 32-byte hex string")
	}
	copy(out[:], b)
	return out, nil
}

func parseChecksumAddress(v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("bad ethereum address")
	}
	addr := common.HexToAddress(v)
	if addr.Hex() != v {
		return common.Address{}, fmt.Errorf("bad ethereum checksum")
	}
	return addr, nil
}

var decimalDigitsPattern = regexp.MustCompile(`^\d+$`)

func parseTokenAmount(v *string) (*big.Int, error) {
	if v == nil {
		return nil, nil
	}
	s := *v
	if !decimalDigitsPattern.MatchString(s) {
		return nil, fmt.Errorf("amount must be a string containing only digits")
	}
	if len(s) > 78 {
		return nil, fmt.Errorf("amount exceeds maximum token value (256 bits)")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("non-integer value")
	}
	if n.BitLen() > 256 {
		return nil, fmt.Errorf("amount exceeds maximum token value (256 bits)")
	}
	return n, nil
}
