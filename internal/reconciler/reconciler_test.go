package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/AnjaniMalhotra/auto-restock-agent/internal/models"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/storage"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/storage/memory"
)

type call struct {
	op     string // "create" or "send"
	item   string
	amount decimal.Decimal
	wallet string
}

// fakeClient scripts the external payment capability and records every call.
type fakeClient struct {
	mu          sync.Mutex
	calls       []call
	failPayee   map[string]error
	failPayment map[string]error
	onCreate    func(item string)
}

func (f *fakeClient) CreatePayee(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{op: "create", item: name})
	f.mu.Unlock()
	if f.onCreate != nil {
		f.onCreate(name)
	}
	if err, ok := f.failPayee[name]; ok {
		return err
	}
	return nil
}

func (f *fakeClient) SendPayment(ctx context.Context, amount decimal.Decimal, payee, wallet string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{op: "send", item: payee, amount: amount, wallet: wallet})
	f.mu.Unlock()
	if err, ok := f.failPayment[payee]; ok {
		return err
	}
	return nil
}

func (f *fakeClient) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call{}, f.calls...)
}

func line(item string, qty int, unitCost string) models.RestockLineItem {
	return models.RestockLineItem{Item: item, Qty: qty, UnitCost: decimal.RequireFromString(unitCost)}
}

func run(t *testing.T, r *Reconciler, plan []models.RestockLineItem, wallet string) []Outcome {
	t.Helper()
	ch, err := r.Reconcile(context.Background(), plan, wallet)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	var outcomes []Outcome
	for o := range ch {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func ledger(t *testing.T, store storage.LedgerStore) []models.LedgerEntry {
	t.Helper()
	entries, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return entries
}

func TestReconcile_AllNewItems(t *testing.T) {
	store := memory.New()
	client := &fakeClient{}
	r := &Reconciler{Client: client, Store: store}

	plan := []models.RestockLineItem{line("Widget", 13, "50"), line("Nail", 8, "2")}
	outcomes := run(t, r, plan, "Inventory")

	// One payee creation and one payment per item, strictly in plan order.
	wantCalls := []call{
		{op: "create", item: "Widget"},
		{op: "send", item: "Widget"},
		{op: "create", item: "Nail"},
		{op: "send", item: "Nail"},
	}
	calls := client.recorded()
	if len(calls) != len(wantCalls) {
		t.Fatalf("expected %d calls, got %d: %+v", len(wantCalls), len(calls), calls)
	}
	for i, want := range wantCalls {
		if calls[i].op != want.op || calls[i].item != want.item {
			t.Fatalf("call %d: got %s %s, want %s %s", i, calls[i].op, calls[i].item, want.op, want.item)
		}
	}

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Status != StatusPaid {
			t.Fatalf("outcome %d: status %s, want %s (err: %v)", i, o.Status, StatusPaid, o.Err)
		}
		if o.RunID == "" {
			t.Fatalf("outcome %d: missing run ID", i)
		}
	}
	if !outcomes[0].Amount.Equal(decimal.RequireFromString("650")) {
		t.Fatalf("Widget amount: got %s, want 650", outcomes[0].Amount)
	}

	entries := ledger(t, store)
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	if entries[0].Item != "Widget" || entries[0].Wallet != "Inventory" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
}

func TestReconcile_ExistingItemsSkipPayeeCreation(t *testing.T) {
	store := memory.Seed(models.LedgerEntry{
		Item: "Widget", Qty: 13,
		UnitCost: decimal.RequireFromString("50"),
		Total:    decimal.RequireFromString("650"),
		Wallet:   "Inventory",
	})
	client := &fakeClient{}
	r := &Reconciler{Client: client, Store: store}

	run(t, r, []models.RestockLineItem{line("Widget", 4, "50")}, "Inventory")

	for _, c := range client.recorded() {
		if c.op == "create" {
			t.Fatalf("payee creation issued for already-ledgered item %s", c.item)
		}
	}
	if n := len(client.recorded()); n != 1 {
		t.Fatalf("expected exactly 1 payment call, got %d calls", n)
	}
}

func TestReconcile_PayeeFailureSkipsItemOnly(t *testing.T) {
	store := memory.New()
	client := &fakeClient{failPayee: map[string]error{"Widget": errors.New("rails down")}}
	r := &Reconciler{Client: client, Store: store}

	plan := []models.RestockLineItem{line("Widget", 13, "50"), line("Nail", 8, "2")}
	outcomes := run(t, r, plan, "Inventory")

	if outcomes[0].Status != StatusPayeeFailed {
		t.Fatalf("Widget: status %s, want %s", outcomes[0].Status, StatusPayeeFailed)
	}
	if outcomes[1].Status != StatusPaid {
		t.Fatalf("Nail: status %s, want %s", outcomes[1].Status, StatusPaid)
	}

	// No payment may have been attempted for the failed item.
	for _, c := range client.recorded() {
		if c.op == "send" && c.item == "Widget" {
			t.Fatal("payment attempted despite failed payee creation")
		}
	}

	entries := ledger(t, store)
	if len(entries) != 1 || entries[0].Item != "Nail" {
		t.Fatalf("expected only Nail in ledger, got %+v", entries)
	}
}

func TestReconcile_PaymentFailureLeavesLedgerUntouched(t *testing.T) {
	store := memory.New()
	client := &fakeClient{failPayment: map[string]error{"Widget": errors.New("insufficient funds")}}
	r := &Reconciler{Client: client, Store: store}

	plan := []models.RestockLineItem{line("Widget", 13, "50"), line("Nail", 8, "2")}
	outcomes := run(t, r, plan, "Inventory")

	if outcomes[0].Status != StatusPaymentFailed {
		t.Fatalf("Widget: status %s, want %s", outcomes[0].Status, StatusPaymentFailed)
	}
	if outcomes[1].Status != StatusPaid {
		t.Fatalf("Nail: status %s, want %s", outcomes[1].Status, StatusPaid)
	}

	entries := ledger(t, store)
	if len(entries) != 1 || entries[0].Item != "Nail" {
		t.Fatalf("expected only Nail in ledger, got %+v", entries)
	}
}

func TestReconcile_RerunPaysAgain(t *testing.T) {
	// Only payee creation is deduplicated; payments are not idempotent.
	store := memory.New()
	client := &fakeClient{}
	r := &Reconciler{Client: client, Store: store}

	plan := []models.RestockLineItem{line("Widget", 13, "50")}
	run(t, r, plan, "Inventory")
	run(t, r, plan, "Inventory")

	creates, sends := 0, 0
	for _, c := range client.recorded() {
		switch c.op {
		case "create":
			creates++
		case "send":
			sends++
		}
	}
	if creates != 1 {
		t.Fatalf("expected 1 payee creation across both runs, got %d", creates)
	}
	if sends != 2 {
		t.Fatalf("expected the re-run to pay again (2 payments), got %d", sends)
	}
	if entries := ledger(t, store); len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries after re-run, got %d", len(entries))
	}
}

func TestReconcile_DuplicateItemInPlan(t *testing.T) {
	// A second occurrence of the same item in one plan skips payee creation
	// because the first occurrence already reached the ledger.
	store := memory.New()
	client := &fakeClient{}
	r := &Reconciler{Client: client, Store: store}

	plan := []models.RestockLineItem{line("Widget", 13, "50"), line("Widget", 2, "50")}
	outcomes := run(t, r, plan, "Inventory")

	if len(outcomes) != 2 || outcomes[0].Status != StatusPaid || outcomes[1].Status != StatusPaid {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}

	creates := 0
	for _, c := range client.recorded() {
		if c.op == "create" {
			creates++
		}
	}
	if creates != 1 {
		t.Fatalf("expected 1 payee creation for duplicate item, got %d", creates)
	}
}

func TestReconcile_AmountRoundedAtSubmission(t *testing.T) {
	store := memory.New()
	client := &fakeClient{}
	r := &Reconciler{Client: client, Store: store}

	// 3 * 0.333 = 0.999 -> charged as 1.00, ledgered exact.
	outcomes := run(t, r, []models.RestockLineItem{line("Grommet", 3, "0.333")}, "Inventory")

	if !outcomes[0].Amount.Equal(decimal.RequireFromString("1.00")) {
		t.Fatalf("charged amount: got %s, want 1.00", outcomes[0].Amount)
	}

	calls := client.recorded()
	if !calls[1].amount.Equal(decimal.RequireFromString("1.00")) {
		t.Fatalf("payment call amount: got %s, want 1.00", calls[1].amount)
	}

	entries := ledger(t, store)
	if !entries[0].Total.Equal(decimal.RequireFromString("0.999")) {
		t.Fatalf("ledger total: got %s, want exact 0.999", entries[0].Total)
	}
}

type appendFailStore struct {
	storage.LedgerStore
}

func (appendFailStore) Append(ctx context.Context, entry models.LedgerEntry) error {
	return errors.New("disk full")
}

func TestReconcile_LedgerWriteFailureSurfacedDistinctly(t *testing.T) {
	client := &fakeClient{}
	r := &Reconciler{Client: client, Store: appendFailStore{memory.New()}}

	outcomes := run(t, r, []models.RestockLineItem{line("Widget", 13, "50")}, "Inventory")

	if outcomes[0].Status != StatusLedgerWriteFailed {
		t.Fatalf("status %s, want %s", outcomes[0].Status, StatusLedgerWriteFailed)
	}
	// Money moved: the outcome must carry the charged amount and the cause.
	if !outcomes[0].Amount.Equal(decimal.RequireFromString("650")) {
		t.Fatalf("amount: got %s, want 650", outcomes[0].Amount)
	}
	if outcomes[0].Err == nil {
		t.Fatal("expected the write error to be carried in the outcome")
	}
}

type loadFailStore struct {
	storage.LedgerStore
}

func (loadFailStore) Load(ctx context.Context) ([]models.LedgerEntry, error) {
	return nil, errors.New("corrupt ledger")
}

func TestReconcile_LedgerLoadFailureAbortsBeforeAnyCall(t *testing.T) {
	client := &fakeClient{}
	r := &Reconciler{Client: client, Store: loadFailStore{memory.New()}}

	_, err := r.Reconcile(context.Background(), []models.RestockLineItem{line("Widget", 13, "50")}, "Inventory")
	if err == nil {
		t.Fatal("expected error when the ledger cannot be loaded")
	}
	if len(client.recorded()) != 0 {
		t.Fatal("no external call may happen when the ledger load fails")
	}
}

func TestReconcile_CancellationBetweenItems(t *testing.T) {
	store := memory.New()
	ctx, cancel := context.WithCancel(context.Background())

	// A slow limiter: the first external call goes through on the initial
	// token, the next pace blocks until the context is canceled.
	created := make(chan struct{})
	client := &fakeClient{onCreate: func(string) { close(created) }}
	r := &Reconciler{
		Client:  client,
		Store:   store,
		Limiter: rate.NewLimiter(rate.Every(time.Hour), 1),
	}

	ch, err := r.Reconcile(ctx, []models.RestockLineItem{line("Widget", 13, "50"), line("Nail", 8, "2")}, "Inventory")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	<-created
	cancel()

	for range ch {
		t.Fatal("no outcome may be emitted after cancellation before payment")
	}

	// The payee was created but no money moved and nothing was logged.
	for _, c := range client.recorded() {
		if c.op == "send" {
			t.Fatal("payment submitted despite cancellation")
		}
	}
	if entries := ledger(t, store); len(entries) != 0 {
		t.Fatalf("expected empty ledger, got %+v", entries)
	}
}
