package inventory

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/liquorice-gateway/gateway/internal/chain"
	"github.com/liquorice-gateway/gateway/internal/logging"
)

type fakeSubscription struct {
	errCh chan error
}

func (f *fakeSubscription) Unsubscribe()      {}
func (f *fakeSubscription) Err() <-chan error { return f.errCh }

type fakeClient struct {
	mu          sync.Mutex
	balances    map[common.Address]*big.Int
	blockNumber uint64
	callErr     error
}

func (f *fakeClient) SubscribeFilterLogs(ctx context.Context, q goethereum.FilterQuery, ch chan<- types.Log) (goethereum.Subscription, error) {
	return &fakeSubscription{errCh: make(chan error)}, nil
}

func (f *fakeClient) CallContract(ctx context.Context, call goethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	bal := f.balances[*call.To]
	if bal == nil {
		bal = big.NewInt(0)
	}
	padded := make([]byte, 32)
	bal.FillBytes(padded)
	return padded, nil
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	return f.blockNumber, nil
}

func (f *fakeClient) Close() {}

func testChain() *chain.Chain {
	c := &chain.Chain{ID: 42161, Name: "arbitrum", ShortNames: []string{"arbitrum"}}
	c.SkeeperAddress = common.HexToAddress("0x00000000000000000000000000000000000001")
	c.SettlementAddress = common.HexToAddress("0x00000000000000000000000000000000000002")
	c.AddToken(chain.NewToken("USD Coin", "USDC", common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), 6))
	c.AddToken(chain.NewToken("Tether USD", "USDT", common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"), 6))
	return c
}

func TestTransferFiltersCoversFromAndToSlots(t *testing.T) {
	token := common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	addr := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	filters := transferFilters(token, addr)
	if len(filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(filters))
	}
	if len(filters[0].Topics) != 2 {
		t.Fatalf("from-slot filter should pin topics[1] only, got %d topic slots", len(filters[0].Topics))
	}
	if len(filters[1].Topics) != 3 || filters[1].Topics[1] != nil {
		t.Fatalf("to-slot filter should leave topics[1] unset and pin topics[2]")
	}
}

func TestReadBalancesWritesRawBalanceAndBlock(t *testing.T) {
	c := testChain()
	usdc := c.Tokens[0]

	fc := &fakeClient{
		blockNumber: 123,
		balances: map[common.Address]*big.Int{
			usdc.Address: big.NewInt(500_000_000),
		},
	}

	tr := New(c, logging.New())
	tr.readBalances(context.Background(), fc)

	bal := usdc.GetBalance()
	if bal.Raw.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("expected raw balance 500000000, got %s", bal.Raw.String())
	}
	if bal.LastUpdated != 123 {
		t.Fatalf("expected last updated block 123, got %d", bal.LastUpdated)
	}
}

func TestReadBalancesZeroesOnCallError(t *testing.T) {
	c := testChain()
	usdc := c.Tokens[0]
	usdc.SetBalance(big.NewInt(999), 1)

	fc := &fakeClient{blockNumber: 5, callErr: errors.New("rpc down")}
	tr := New(c, logging.New())
	tr.readBalances(context.Background(), fc)

	bal := usdc.GetBalance()
	if bal.Raw.Sign() != 0 {
		t.Fatalf("expected zero balance on call error, got %s", bal.Raw.String())
	}
}

func TestKickPollerNonBlocking(t *testing.T) {
	c := testChain()
	tr := New(c, logging.New())

	tr.kickPoller()
	tr.kickPoller()
	tr.kickPoller()

	select {
	case <-tr.kick:
	default:
		t.Fatalf("expected a buffered kick")
	}

	select {
	case <-tr.kick:
		t.Fatalf("expected only one buffered kick, channel had a second")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c := testChain()
	tr := New(c, logging.New())
	tr.dial = func(ctx context.Context, rawURL string) (EthClient, error) {
		return &fakeClient{blockNumber: 1}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}
	if tr.State() != Stopped {
		t.Fatalf("expected Stopped state, got %s", tr.State())
	}
}
