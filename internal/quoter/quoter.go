// Package quoter turns each inbound RFQ into at most one signed quote: it
// resolves tokens against Market State, prices a quote within available
// inventory, and hands the unsigned level to the Signer. Grounded on the
// teacher's tracker/tracker.go per-item loop (resolve, act, notify, log and
// continue on error) generalized from "check a pending swap" to "price one
// RFQ", with a single outer recover() boundary the teacher's loop has no
// equivalent for — the spec requires it explicitly (QUOTER_UNHANDLED_EXC).
package quoter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liquorice-gateway/gateway/internal/logging"
	"github.com/liquorice-gateway/gateway/internal/market"
	"github.com/liquorice-gateway/gateway/internal/metrics"
	"github.com/liquorice-gateway/gateway/internal/protocol/liquorice"
)

// spreadNumerator/spreadDenominator express the 1.05x spread as an exact
// rational so the quote math stays on big.Rat throughout, matching
// internal/chain's raw<->decimal conversions.
var (
	spreadNumerator   = big.NewInt(105)
	spreadDenominator = big.NewInt(100)
)

const expiryGraceSeconds = 30

// Signer is the subset of internal/signer.Signer the Quoter depends on.
type Signer interface {
	SignQuoteLevels(rfq *liquorice.RFQMessage, quote *liquorice.RFQQuoteMessage) error
}

// Auditor is the subset of internal/audit.Store the Quoter depends on. It
// is optional: a nil Auditor simply skips logging.
type Auditor interface {
	RecordOutcome(ctx context.Context, rfqID string, chainID int, status metrics.Outcome, quoteTokenAmount string) error
}

// Quoter consumes RFQs from an in-queue and emits signed quotes to an
// out-queue, reporting metrics.Outcome for every RFQ it touches.
type Quoter struct {
	market  *market.State
	signer  Signer
	metrics *metrics.Metrics
	audit   Auditor
	log     *logging.Logger

	rfqs   <-chan *liquorice.RFQMessage
	quotes chan<- *liquorice.RFQQuoteMessage
}

// New builds a Quoter reading from rfqs and writing to quotes.
func New(m *market.State, s Signer, met *metrics.Metrics, log *logging.Logger, rfqs <-chan *liquorice.RFQMessage, quotes chan<- *liquorice.RFQQuoteMessage) *Quoter {
	return &Quoter{market: m, signer: s, metrics: met, log: log, rfqs: rfqs, quotes: quotes}
}

// WithAuditor attaches a, an outcome logger, returning the same Quoter for
// chaining at construction time.
func (q *Quoter) WithAuditor(a Auditor) *Quoter {
	q.audit = a
	return q
}

// Run consumes rfqs in FIFO order until ctx is cancelled. A dropped RFQ
// never blocks subsequent ones: each is fully handled (quoted, dropped, or
// faulted) before the next is read.
func (q *Quoter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rfq := <-q.rfqs:
			q.handleSafely(rfq)
		}
	}
}

// handleSafely wraps handle in the Quoter's one recover() boundary: any
// uncaught panic while pricing a single RFQ is counted QUOTER_UNHANDLED_EXC
// and the Quoter moves on to the next RFQ, rather than taking the whole
// process down.
func (q *Quoter) handleSafely(rfq *liquorice.RFQMessage) {
	labels := metrics.Labels{
		ChainID:    fmt.Sprintf("%d", rfq.ChainID),
		Solver:     rfq.Solver,
		BaseToken:  rfq.BaseToken.Hex(),
		QuoteToken: rfq.QuoteToken.Hex(),
	}

	defer func() {
		if r := recover(); r != nil {
			q.log.Errorf("quoter: unhandled panic pricing rfq %s: %v", rfq.RFQID, r)
			q.record(rfq, labels, metrics.QuoterUnhandledExc, "")
		}
	}()

	q.handle(rfq, labels)
}

// record increments the outcome counter and, if an Auditor is attached,
// appends a row to the non-authoritative outcome log. Audit failures are
// logged, never propagated — the audit trail is diagnostic, not load
// bearing.
func (q *Quoter) record(rfq *liquorice.RFQMessage, labels metrics.Labels, outcome metrics.Outcome, quoteTokenAmount string) {
	q.metrics.Record(labels, outcome)
	if q.audit == nil {
		return
	}
	if err := q.audit.RecordOutcome(context.Background(), rfq.RFQID.String(), rfq.ChainID, outcome, quoteTokenAmount); err != nil {
		q.log.Warnf("quoter: failed to record audit outcome for rfq %s: %v", rfq.RFQID, err)
	}
}

// handle implements the 10-step RFQ->quote procedure.
func (q *Quoter) handle(rfq *liquorice.RFQMessage, labels metrics.Labels) {
	baseToken := q.market.GetToken(rfq.ChainID, rfq.BaseToken)
	if baseToken == nil {
		q.record(rfq, labels, metrics.UnsupportedBase, "")
		return
	}
	quoteToken := q.market.GetToken(rfq.ChainID, rfq.QuoteToken)
	if quoteToken == nil {
		q.record(rfq, labels, metrics.UnsupportedQuote, "")
		return
	}

	path := q.market.ShortestPath(baseToken, quoteToken)
	if len(path) == 0 {
		q.log.Warnf("quoter: no path between %s and %s on chain %d", baseToken.Symbol, quoteToken.Symbol, rfq.ChainID)
		return
	}

	if rfq.BaseTokenAmount == nil || rfq.BaseTokenAmount.Sign() <= 0 {
		q.log.Warnf("quoter: rfq %s is not base-given, dropping", rfq.RFQID)
		return
	}

	baseDecimal := baseToken.RawToDecimal(rfq.BaseTokenAmount)

	spread := new(big.Rat).Mul(baseDecimal, new(big.Rat).SetFrac(spreadNumerator, spreadDenominator))
	quoteBalanceDecimal := quoteToken.RawToDecimal(quoteToken.GetBalance().Raw)
	quoteDecimal := spread
	if quoteBalanceDecimal.Cmp(spread) < 0 {
		quoteDecimal = quoteBalanceDecimal
	}
	quoteRaw := quoteToken.DecimalToRaw(quoteDecimal)

	if quoteRaw.Sign() <= 0 {
		q.record(rfq, labels, metrics.LowQuoteBalance, "")
		return
	}

	level := liquorice.QuoteLevelLite{
		Expiry:              rfq.Expiry + expiryGraceSeconds,
		SettlementContract:  common.Address{},
		Recipient:           common.Address{},
		Signer:              common.Address{},
		EIP1271Verifier:     common.Address{},
		BaseToken:           baseToken.Address,
		QuoteToken:          quoteToken.Address,
		BaseTokenAmount:     new(big.Int).Set(rfq.BaseTokenAmount),
		QuoteTokenAmount:    quoteRaw,
		MinQuoteTokenAmount: big.NewInt(1),
		Signature:           make([]byte, 65),
	}

	quote := &liquorice.RFQQuoteMessage{
		RFQID:  rfq.RFQID,
		Levels: []liquorice.QuoteLevelLite{level},
	}

	if err := q.signer.SignQuoteLevels(rfq, quote); err != nil {
		q.log.Warnf("quoter: signer declined rfq %s: %v", rfq.RFQID, err)
		return
	}

	q.quotes <- quote
	q.record(rfq, labels, metrics.QuoteSent, quoteRaw.String())
}
