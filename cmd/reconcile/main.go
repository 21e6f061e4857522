// Command reconcile handles the capture-then-fail gap: payments that were
// verified with a gateway but never produced an order record. It scans
// payment attempts with no linked order, repairs links for orders that do
// exist, and re-verifies the rest so operators get a definitive list of
// stray captures needing manual follow-up.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	appkg "github.com/verdantlabs/checkout/internal/app"
	"github.com/verdantlabs/checkout/internal/domain/checkout"
	"github.com/verdantlabs/checkout/internal/domain/order"
	"github.com/verdantlabs/checkout/internal/domain/payment"
	"github.com/verdantlabs/checkout/internal/gateway/bkash"
	"github.com/verdantlabs/checkout/internal/gateway/sslcommerz"
	"github.com/verdantlabs/checkout/internal/repository"
)

const verifyConcurrency = 4

func main() {
	var olderThan time.Duration
	flag.DurationVar(&olderThan, "older-than", 15*time.Minute,
		"only reconcile attempts older than this")
	flag.Parse()

	cfg, err := appkg.LoadConfig()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, olderThan); err != nil {
		slog.Error("reconcile failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appkg.Config, olderThan time.Duration) error {
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	attempts := repository.NewAttemptRepository(pool)
	orders := repository.NewOrderRepository(pool)

	registry := payment.NewRegistry()
	registry.Register(payment.MethodSSLCommerz, sslcommerz.New(sslcommerz.Config{
		BaseURL:       cfg.SSLCommerz.BaseURL,
		StoreID:       cfg.SSLCommerz.StoreID,
		StorePassword: cfg.SSLCommerz.StorePassword,
		Timeout:       cfg.SSLCommerz.Timeout,
	}))
	registry.Register(payment.MethodBkash, bkash.New(bkash.Config{
		BaseURL: cfg.Bkash.BaseURL,
		AppKey:  cfg.Bkash.AppKey,
		Token:   cfg.Bkash.Token,
		Timeout: cfg.Bkash.Timeout,
	}))

	cutoff := time.Now().Add(-olderThan)
	dangling, err := attempts.ListDangling(ctx, cutoff)
	if err != nil {
		return errors.Wrap(err, "list dangling attempts")
	}

	slog.Info("dangling attempts found",
		slog.Int("count", len(dangling)),
		slog.Time("cutoff", cutoff),
	)
	if len(dangling) == 0 {
		return nil
	}

	var relinked, stray, unverified atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(verifyConcurrency)
	for _, a := range dangling {
		g.Go(func() error {
			outcome, err := reconcileAttempt(ctx, a, orders, attempts, registry)
			if err != nil {
				return err
			}
			switch outcome {
			case outcomeRelinked:
				relinked.Add(1)
			case outcomeStray:
				stray.Add(1)
			case outcomeUnverified:
				unverified.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("reconcile complete",
		slog.Int64("relinked", relinked.Load()),
		slog.Int64("stray_captures", stray.Load()),
		slog.Int64("unverified", unverified.Load()),
	)
	return nil
}

type outcome int

const (
	outcomeRelinked outcome = iota
	outcomeStray
	outcomeUnverified
)

// reconcileAttempt decides what happened to one dangling attempt. An existing
// order means only the attempt→order link was lost; a verified payment with
// no order is a stray capture that needs a manual refund or manual order
// creation; everything else never captured money.
func reconcileAttempt(
	ctx context.Context,
	a checkout.Attempt,
	orders order.Repository,
	attempts checkout.AttemptLog,
	registry *payment.Registry,
) (outcome, error) {
	o, err := orders.FindByTransactionID(ctx, a.TransactionID)
	if err == nil {
		if err := attempts.MarkCompleted(ctx, a.TransactionID, o.ID); err != nil {
			return 0, errors.Wrapf(err, "relink attempt %s", a.TransactionID)
		}
		slog.Info("attempt relinked to existing order",
			slog.String("transaction_id", a.TransactionID),
			slog.String("order_id", o.ID),
		)
		return outcomeRelinked, nil
	}
	if !errors.Is(err, order.ErrNotFound) {
		return 0, errors.Wrapf(err, "look up order for attempt %s", a.TransactionID)
	}

	verifier, err := registry.Lookup(a.Provider)
	if err != nil {
		return 0, errors.Wrapf(err, "attempt %s", a.TransactionID)
	}

	result, err := verifier.Verify(ctx, payment.Request{
		TransactionID:  a.TransactionID,
		ExpectedAmount: a.Amount,
		ReferenceID:    a.ReferenceID,
	})
	if err != nil || !result.Verified {
		slog.Info("attempt not verified by gateway, no money captured",
			slog.String("transaction_id", a.TransactionID),
			slog.String("provider", string(a.Provider)),
		)
		return outcomeUnverified, nil
	}

	slog.Warn("stray capture: verified payment with no order, manual follow-up required",
		slog.String("transaction_id", a.TransactionID),
		slog.String("provider", string(a.Provider)),
		slog.String("user_id", a.UserID),
		slog.String("amount", result.Amount.String()),
		slog.Time("attempted_at", a.CreatedAt),
	)
	return outcomeStray, nil
}
