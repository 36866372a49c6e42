// Package inventory runs one Inventory Tracker per active chain: an event
// subscriber that watches ERC-20 Transfer logs touching the zero address
// and the chain's settlement address, and a balance poller that keeps
// Market State's token balances (held by the skeeper address) fresh. Grounded on the teacher's balances/balances.go for the
// ethclient/abi calling convention and tracker/tracker.go for the
// ticker+select polling idiom, generalized from a 15s HTTP-status poll to
// a 10s on-chain balance poll kickable by incoming Transfer events.
package inventory

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/liquorice-gateway/gateway/internal/chain"
	"github.com/liquorice-gateway/gateway/internal/logging"
)

// State is the Inventory Tracker's lifecycle: stopped -> starting ->
// running <-> fault -> stopped.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Fault
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Fault:
		return "fault"
	default:
		return "unknown"
	}
}

const (
	pollInterval   = 10 * time.Second
	minPollGap     = 100 * time.Millisecond
	faultBackoff   = 5 * time.Second
	kickBufferSize = 1
)

var transferSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

var erc20ABI abi.ABI

func init() {
	var err error
	erc20ABI, err = abi.JSON(strings.NewReader(`[{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`))
	if err != nil {
		panic(err)
	}
}

// Tracker maintains fresh balances for every token on one chain. A Tracker
// is built per active chain by the Supervisor and run in its own goroutine.
type Tracker struct {
	chain *chain.Chain
	log   *logging.Logger

	dial func(ctx context.Context, rawURL string) (EthClient, error)

	state State
	kick  chan struct{}
}

// EthClient is the subset of ethclient.Client the Tracker uses, narrowed to
// an interface so tests can substitute a fake node.
type EthClient interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// New builds a Tracker for c, dialing real chain nodes over WebSocket via
// go-ethereum's ethclient. Unlike web3.py, ethclient needs no extra-data
// middleware to tolerate POA headers — it never validates block headers
// client-side — so chain.POA has no effect here beyond documenting the
// chain's consensus family.
func New(c *chain.Chain, log *logging.Logger) *Tracker {
	return &Tracker{
		chain: c,
		log:   log,
		dial: func(ctx context.Context, rawURL string) (EthClient, error) {
			cl, err := ethclient.DialContext(ctx, rawURL)
			if err != nil {
				return nil, err
			}
			return ethClientAdapter{cl}, nil
		},
		kick: make(chan struct{}, kickBufferSize),
	}
}

type ethClientAdapter struct{ *ethclient.Client }

// Run drives the Tracker's state machine until ctx is cancelled. Startup
// failures and connection losses enter Fault, sleep 5s, and retry from
// Starting; cancellation is cooperative and exits at the next suspension
// point (the subscription read or the poll timer).
func (t *Tracker) Run(ctx context.Context) {
	t.state = Starting
	for {
		if ctx.Err() != nil {
			t.state = Stopped
			return
		}

		client, err := t.dial(ctx, t.chain.WSRPCURL)
		if err != nil {
			t.log.Warnf("inventory[%s]: dial failed: %v", t.chain.Name, err)
			t.state = Fault
			if !sleepOrDone(ctx, faultBackoff) {
				t.state = Stopped
				return
			}
			t.state = Starting
			continue
		}

		t.state = Running
		err = t.runSession(ctx, client)
		client.Close()
		if ctx.Err() != nil {
			t.state = Stopped
			return
		}
		if err != nil {
			t.log.Warnf("inventory[%s]: session ended: %v", t.chain.Name, err)
		}
		t.state = Fault
		if !sleepOrDone(ctx, faultBackoff) {
			t.state = Stopped
			return
		}
		t.state = Starting
	}
}

// State reports the Tracker's current lifecycle state.
func (t *Tracker) State() State { return t.state }

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// runSession runs the subscriber and poller concurrently for one connected
// session, returning when either fails or ctx is cancelled.
func (t *Tracker) runSession(ctx context.Context, client EthClient) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		errCh <- t.subscribe(sessionCtx, client)
	}()
	go func() {
		errCh <- t.poll(sessionCtx, client)
	}()

	err := <-errCh
	cancel()
	<-errCh
	return err
}

// subscribe opens the event subscriber's filters: for every token on the
// chain and for each of {zeroAddress, settlementAddress}, two Transfer
// filters — one matching the address in the "from" topic slot, one
// matching it in the "to" slot. Each delivered log kicks the poller.
func (t *Tracker) subscribe(ctx context.Context, client EthClient) error {
	logsCh := make(chan types.Log, 64)
	subErrCh := make(chan error, 1)

	watched := []common.Address{{}, t.chain.SettlementAddress}

	var subs []ethereum.Subscription
	closeSubs := func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}
	defer closeSubs()

	for _, tok := range t.chain.Tokens {
		for _, addr := range watched {
			for _, q := range transferFilters(tok.Address, addr) {
				sub, err := client.SubscribeFilterLogs(ctx, q, logsCh)
				if err != nil {
					return err
				}
				subs = append(subs, sub)
				go func(sub ethereum.Subscription) {
					if err := <-sub.Err(); err != nil {
						select {
						case subErrCh <- err:
						default:
						}
					}
				}(sub)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-subErrCh:
			return err
		case <-logsCh:
			t.kickPoller()
		}
	}
}

// transferFilters builds the two Transfer filters (from-slot, to-slot) for
// one token/address pair.
func transferFilters(token, addr common.Address) []ethereum.FilterQuery {
	addrTopic := common.BytesToHash(addr.Bytes())
	base := ethereum.FilterQuery{Addresses: []common.Address{token}}

	fromFilter := base
	fromFilter.Topics = [][]common.Hash{{transferSig}, {addrTopic}}

	toFilter := base
	toFilter.Topics = [][]common.Hash{{transferSig}, nil, {addrTopic}}

	return []ethereum.FilterQuery{fromFilter, toFilter}
}

func (t *Tracker) kickPoller() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// poll runs the balance poller: an immediate read on entry, then every 10s
// or immediately when kicked, subject to a 100ms minimum gap between runs.
func (t *Tracker) poll(ctx context.Context, client EthClient) error {
	t.readBalances(ctx, client)
	lastRun := time.Now()

	for {
		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-t.kick:
			timer.Stop()
		case <-timer.C:
		}

		if gap := time.Since(lastRun); gap < minPollGap {
			if !sleepOrDone(ctx, minPollGap-gap) {
				return nil
			}
		}
		t.readBalances(ctx, client)
		lastRun = time.Now()
	}
}

// readBalances reads the current block number once, then calls
// balanceOf(skeeper_address) for every token on the chain, writing
// raw_balance and last_updated_block. A failure on a single token is
// logged and yields raw_balance = 0 for that cycle; it does not abort the
// rest of the sweep.
func (t *Tracker) readBalances(ctx context.Context, client EthClient) {
	block, err := client.BlockNumber(ctx)
	if err != nil {
		t.log.Warnf("inventory[%s]: block number read failed: %v", t.chain.Name, err)
		return
	}

	for _, tok := range t.chain.Tokens {
		bal, err := balanceOf(ctx, client, tok.Address, t.chain.SkeeperAddress)
		if err != nil {
			t.log.Warnf("inventory[%s]: balanceOf(%s) failed: %v", t.chain.Name, tok.Symbol, err)
			bal = big.NewInt(0)
		}
		tok.SetBalance(bal, block)
	}
}

func balanceOf(ctx context.Context, client EthClient, token, account common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", account)
	if err != nil {
		return nil, err
	}
	output, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(output) < 32 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(output), nil
}
