// Package jobs runs the periodic maintenance work: retrying promo usage
// increments that failed after commit and reconciling ledger balances.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"hotelpms/internal/domain/ledger"
)

const jobTimeout = 30 * time.Second

type PromoRetrier interface {
	RetryPendingUsage(ctx context.Context) (int, error)
}

type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]ledger.ReconcileResult, error)
}

type Config struct {
	PromoRetryInterval time.Duration
	ReconcileInterval  time.Duration
}

type Scheduler struct {
	sched   gocron.Scheduler
	promos  PromoRetrier
	ledger  Reconciler
	loggerf func(format string, args ...interface{})
}

func New(cfg Config, promos PromoRetrier, reconciler Reconciler, loggerf func(format string, args ...interface{})) (*Scheduler, error) {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	s := &Scheduler{sched: sched, promos: promos, ledger: reconciler, loggerf: loggerf}

	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.PromoRetryInterval),
		gocron.NewTask(s.RetryPromoUsage),
		gocron.WithName("promo-usage-retry"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, fmt.Errorf("schedule promo retry: %w", err)
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.ReconcileInterval),
		gocron.NewTask(s.Reconcile),
		gocron.WithName("ledger-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, fmt.Errorf("schedule reconcile: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.loggerf("level=info msg=\"scheduler started\" jobs=%d", len(s.sched.Jobs()))
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) Jobs() []string {
	jobs := s.sched.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

func (s *Scheduler) RetryPromoUsage() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.promos.RetryPendingUsage(ctx)
	if err != nil {
		s.loggerf("level=error msg=\"promo usage retry failed\" err=%v", err)
		return
	}
	if n > 0 {
		s.loggerf("level=info msg=\"promo usage retried\" applied=%d", n)
	}
}

// Reconcile only reports; balances are never rewritten.
func (s *Scheduler) Reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	bad, err := s.ledger.ReconcileAll(ctx)
	if err != nil {
		s.loggerf("level=error msg=\"ledger reconcile failed\" err=%v", err)
		return
	}
	if len(bad) > 0 {
		s.loggerf("level=error msg=\"ledger reconcile found mismatches\" accounts=%d", len(bad))
	}
}
