// Package supervisor starts and stops the gateway's long-lived components
// in the order spec.md §4.6 requires: Market State, Chain Registry,
// Signer, one Inventory Tracker per active chain, the Upstream Client,
// then the Quoter. Shutdown cancels every task at once through one shared
// context, not in reverse startup order, and waits a bounded grace period
// for every task. Grounded on cmd/fundbot/main.go's
// signal.Notify + context.WithCancel shutdown shape.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/liquorice-gateway/gateway/internal/inventory"
	"github.com/liquorice-gateway/gateway/internal/logging"
	"github.com/liquorice-gateway/gateway/internal/metrics"
	"github.com/liquorice-gateway/gateway/internal/quoter"
	"github.com/liquorice-gateway/gateway/internal/registry"
	"github.com/liquorice-gateway/gateway/internal/settings"
	"github.com/liquorice-gateway/gateway/internal/signer"
	"github.com/liquorice-gateway/gateway/internal/upstream"
)

// shutdownGrace bounds how long Stop waits for every spawned task to exit
// before returning regardless.
const shutdownGrace = 10 * time.Second

// Supervisor owns every long-lived task's lifecycle.
type Supervisor struct {
	log *logging.Logger

	Registry *registry.Registry
	Signer   *signer.Signer
	Upstream *upstream.Client
	Quoter   *quoter.Quoter
	Trackers []*inventory.Tracker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires every component in startup order: Market State (built inside
// Registry.New), Chain Registry (static inventory + env enrichment),
// Signer, one Inventory Tracker per active chain, the Upstream Client, and
// the Quoter reading from the Upstream Client's rfqs queue and writing to
// its quotes queue.
func New(cfg *settings.Settings, met *metrics.Metrics, aud quoter.Auditor, log *logging.Logger) (*Supervisor, error) {
	reg := registry.New(registry.Chains())
	if err := reg.LoadEnv(); err != nil {
		return nil, err
	}

	sgn, err := signer.New(cfg.SignerPrivateKey, reg.ChainByID)
	if err != nil {
		return nil, err
	}

	var trackers []*inventory.Tracker
	for _, c := range reg.ActiveChains() {
		trackers = append(trackers, inventory.New(c, log))
	}

	up := upstream.New(cfg.MakerSessionID, cfg.MakerSessionAuth.String(), log)
	q := quoter.New(reg.Market, sgn, met, log, up.RFQs(), up.Quotes())
	if aud != nil {
		q = q.WithAuditor(aud)
	}

	return &Supervisor{
		log:      log,
		Registry: reg,
		Signer:   sgn,
		Upstream: up,
		Quoter:   q,
		Trackers: trackers,
	}, nil
}

// Start spawns every task as a goroutine and returns immediately; tasks run
// until ctx is cancelled or Stop is called.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, t := range s.Trackers {
		t := t
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			t.Run(ctx)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Upstream.Run(ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Quoter.Run(ctx)
	}()
}

// Stop cancels every task at once through the single context they all
// share; the cancellations have no order among them, so tasks are not
// stopped in reverse startup order. It then waits up to shutdownGrace for
// every goroutine to exit.
func (s *Supervisor) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		s.log.Warnf("supervisor: shutdown grace period elapsed before all tasks exited")
	}
}
