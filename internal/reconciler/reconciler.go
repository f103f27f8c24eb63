package reconciler

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/AnjaniMalhotra/auto-restock-agent/internal/models"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/storage"
)

// PaymentClient is the external payment capability. The payman package
// implements it over the free-text agent API; tests script it directly.
type PaymentClient interface {
	CreatePayee(ctx context.Context, name string) error
	SendPayment(ctx context.Context, amount decimal.Decimal, payee, wallet string) error
}

type Status string

const (
	// StatusPaid - payment went through and the ledger entry was written.
	StatusPaid Status = "paid"

	// StatusPayeeFailed - payee creation failed; no payment was attempted
	// for this item in this run.
	StatusPayeeFailed Status = "payee_creation_failed"

	// StatusPaymentFailed - the payment call failed; the ledger is untouched.
	StatusPaymentFailed Status = "payment_failed"

	// StatusLedgerWriteFailed - the payment was charged but the durable
	// append failed. Money moved, the record did not: the most severe class,
	// it needs operator attention rather than a blind retry.
	StatusLedgerWriteFailed Status = "ledger_write_failed"
)

// Outcome is the result for one line item. Each item in a plan yields
// exactly one Outcome, in plan order.
type Outcome struct {
	RunID  string
	Item   string
	Status Status
	Amount decimal.Decimal // amount charged (2dp), zero when no payment was submitted
	Err    error
}

// Reconciler walks a finalized restock plan against the payment ledger,
// creates payees that have never been paid before, submits one payment per
// line item and records the successes. Failures are isolated to the item
// they occur on; the run always reaches every item in the plan.
type Reconciler struct {
	Client PaymentClient
	Store  storage.LedgerStore

	// Limiter paces external calls so the remote agent is never hammered.
	// Nil means no pacing (tests). The original app hardcoded a 2 second
	// sleep here; the interval is now caller-owned.
	Limiter *rate.Limiter
}

// Reconcile processes the plan strictly in order, one item fully before the
// next, and streams one Outcome per item on the returned channel. The
// channel is closed when the run ends; a run cannot be restarted.
//
// Re-running the same plan pays every item again: the ledger only
// deduplicates payee creation, never payments. That mirrors the original
// system's behavior and is covered by tests rather than silently changed.
//
// Cancellation is honored between items and before the first external call
// of an item, never between a successful payment and its ledger append.
func (r *Reconciler) Reconcile(ctx context.Context, plan []models.RestockLineItem, wallet string) (<-chan Outcome, error) {
	existing, err := r.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	// Items that already have a ledger entry have a payee already; grown
	// as this run appends, so a duplicate item later in the same plan also
	// skips creation.
	hasPayee := make(map[string]bool, len(existing))
	for _, e := range existing {
		hasPayee[e.Item] = true
	}

	runID := uuid.NewString()
	out := make(chan Outcome)

	go func() {
		defer close(out)

		for _, li := range plan {
			if ctx.Err() != nil {
				return
			}

			if !hasPayee[li.Item] {
				if err := r.pace(ctx); err != nil {
					return
				}
				if err := r.Client.CreatePayee(ctx, li.Item); err != nil {
					if !r.emit(ctx, out, Outcome{RunID: runID, Item: li.Item, Status: StatusPayeeFailed, Err: err}) {
						return
					}
					continue
				}
			}

			// Rounded independently per item at submission time; the exact
			// total goes into the ledger.
			amount := li.Total().Round(2)

			if err := r.pace(ctx); err != nil {
				return
			}
			if err := r.Client.SendPayment(ctx, amount, li.Item, wallet); err != nil {
				if !r.emit(ctx, out, Outcome{RunID: runID, Item: li.Item, Status: StatusPaymentFailed, Amount: amount, Err: err}) {
					return
				}
				continue
			}

			entry := models.LedgerEntry{
				Item:     li.Item,
				Qty:      li.Qty,
				UnitCost: li.UnitCost,
				Total:    li.Total(),
				Wallet:   wallet,
			}
			if err := r.Store.Append(ctx, entry); err != nil {
				if !r.emit(ctx, out, Outcome{RunID: runID, Item: li.Item, Status: StatusLedgerWriteFailed, Amount: amount, Err: err}) {
					return
				}
				continue
			}

			hasPayee[li.Item] = true
			if !r.emit(ctx, out, Outcome{RunID: runID, Item: li.Item, Status: StatusPaid, Amount: amount}) {
				return
			}
		}
	}()

	return out, nil
}

func (r *Reconciler) pace(ctx context.Context) error {
	if r.Limiter == nil {
		return nil
	}
	return r.Limiter.Wait(ctx)
}

// emit sends without leaking the goroutine if the consumer walked away.
func (r *Reconciler) emit(ctx context.Context, out chan<- Outcome, o Outcome) bool {
	select {
	case out <- o:
		return true
	case <-ctx.Done():
		// A ledger-write failure means money moved without a record. If the
		// consumer is gone it still has to reach an operator somewhere.
		if o.Status == StatusLedgerWriteFailed {
			log.Printf("❌ LEDGER WRITE FAILED after successful payment: item=%s run=%s amount=%s err=%v",
				o.Item, o.RunID, o.Amount.StringFixed(2), o.Err)
		}
		return false
	}
}
