package payments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/merchline/backend/internal/auditlog"
	"github.com/merchline/backend/internal/models"
	"github.com/merchline/backend/pkg/queue"
)

// memLedger is an in-memory Ledger with copy-on-write transactions: a
// returned error discards every mutation, mirroring a database rollback.
type memLedger struct {
	order    models.Order
	payments []models.Payment
	txCount  int
}

func (m *memLedger) clonePayments() []models.Payment {
	out := make([]models.Payment, len(m.payments))
	copy(out, m.payments)
	return out
}

func (m *memLedger) WithinTx(_ context.Context, fn func(tx LedgerTx) error) error {
	m.txCount++
	tx := &memTx{order: m.order, payments: m.clonePayments()}
	if err := fn(tx); err != nil {
		return err
	}
	m.order = tx.order
	m.payments = tx.payments
	return nil
}

func (m *memLedger) GetOrder(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID != m.order.ID {
		return nil, errors.New("order not found")
	}
	o := m.order
	return &o, nil
}

type memTx struct {
	order    models.Order
	payments []models.Payment
}

func (t *memTx) OrderForUpdate(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID != t.order.ID {
		return nil, errors.New("order not found")
	}
	o := t.order
	return &o, nil
}

func (t *memTx) VerifiedPaymentsForUpdate(_ context.Context, orderID uuid.UUID) ([]*models.Payment, error) {
	var out []*models.Payment
	for i := range t.payments {
		if t.payments[i].OrderID == orderID && t.payments[i].Status == models.PaymentStatusVerified {
			p := t.payments[i]
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *memTx) MarkRefunded(_ context.Context, paymentID uuid.UUID, reason string, actorID uuid.UUID) error {
	for i := range t.payments {
		if t.payments[i].ID == paymentID && t.payments[i].Status == models.PaymentStatusVerified {
			t.payments[i].Status = models.PaymentStatusRefunded
			t.payments[i].RefundReason = reason
			actor := actorID
			t.payments[i].ProcessedBy = &actor
			return nil
		}
	}
	return errors.New("payment not verified")
}

func (t *memTx) ReduceAmount(_ context.Context, paymentID uuid.UUID, newAmount int64) error {
	if newAmount <= 0 {
		return errors.New("invalid amount")
	}
	for i := range t.payments {
		if t.payments[i].ID == paymentID && t.payments[i].Status == models.PaymentStatusVerified {
			t.payments[i].AmountCentavos = newAmount
			return nil
		}
	}
	return errors.New("payment not verified")
}

func (t *memTx) InsertRefundEntry(_ context.Context, p *models.Payment) error {
	entry := *p
	entry.CreatedAt = time.Now()
	t.payments = append(t.payments, entry)
	return nil
}

func (t *memTx) SetOrderPaymentStatus(_ context.Context, orderID uuid.UUID, status models.OrderPaymentStatus) error {
	if orderID != t.order.ID {
		return errors.New("order not found")
	}
	t.order.PaymentStatus = status
	return nil
}

func (t *memTx) AppendCustomerNote(_ context.Context, orderID uuid.UUID, note string) error {
	if orderID != t.order.ID {
		return errors.New("order not found")
	}
	if t.order.CustomerNotes == "" {
		t.order.CustomerNotes = note
	} else {
		t.order.CustomerNotes += "\n" + note
	}
	return nil
}

type fakeChecker struct {
	allow bool
	err   error
	calls int
}

func (f *fakeChecker) Verify(_ context.Context, _ uuid.UUID, _ ...string) (bool, error) {
	f.calls++
	return f.allow, f.err
}

type recordingAudit struct {
	entries []auditlog.Entry
}

func (r *recordingAudit) Write(_ context.Context, e auditlog.Entry) {
	r.entries = append(r.entries, e)
}

type fakeQueue struct {
	payloads []queue.EmailPayload
	fail     bool
}

func (f *fakeQueue) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	if f.fail {
		return errors.New("redis down")
	}
	f.payloads = append(f.payloads, p)
	return nil
}

type fixture struct {
	ledger  *memLedger
	checker *fakeChecker
	audit   *recordingAudit
	jobs    *fakeQueue
	service *RefundService
	actorID uuid.UUID
}

// newFixture builds a service over an order with the given verified
// payment amounts, oldest first.
func newFixture(t *testing.T, totalCentavos int64, verifiedAmounts ...int64) *fixture {
	t.Helper()
	orderID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := &memLedger{
		order: models.Order{
			ID:            orderID,
			CustomerName:  "Lia Cruz",
			CustomerEmail: "lia@example.com",
			TotalCentavos: totalCentavos,
			Status:        models.OrderStatusProcessing,
			PaymentStatus: models.OrderPaymentDownpayment,
		},
	}
	for i, amt := range verifiedAmounts {
		ledger.payments = append(ledger.payments, models.Payment{
			ID:             uuid.New(),
			OrderID:        orderID,
			AmountCentavos: amt,
			Status:         models.PaymentStatusVerified,
			Method:         models.PaymentMethodGCash,
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
		})
	}
	checker := &fakeChecker{allow: true}
	audit := &recordingAudit{}
	jobs := &fakeQueue{}
	svc := NewRefundService(ledger, checker, audit, jobs, "3-5 business days", nil)
	return &fixture{ledger: ledger, checker: checker, audit: audit, jobs: jobs, service: svc, actorID: uuid.New()}
}

func (f *fixture) refund(amount int64, target *uuid.UUID) RefundResult {
	return f.service.RefundPayment(context.Background(), RefundRequest{
		OrderID:        f.ledger.order.ID,
		AmountCentavos: amount,
		Reason:         "defective item",
		ActorID:        f.actorID,
		PaymentID:      target,
	})
}

func verifiedSum(payments []models.Payment) int64 {
	var sum int64
	for _, p := range payments {
		if p.Status == models.PaymentStatusVerified {
			sum += p.AmountCentavos
		}
	}
	return sum
}

func refundedSum(payments []models.Payment) int64 {
	var sum int64
	for _, p := range payments {
		if p.Status == models.PaymentStatusRefunded {
			sum += p.AmountCentavos
		}
	}
	return sum
}

func TestRefundFullSinglePayment(t *testing.T) {
	f := newFixture(t, 100000, 100000)

	result := f.refund(100000, nil)
	if !result.Success {
		t.Fatalf("Expected success, got failure: %s", result.Message)
	}

	if len(f.ledger.payments) != 1 {
		t.Fatalf("Expected no new ledger entries, got %d", len(f.ledger.payments))
	}
	if f.ledger.payments[0].Status != models.PaymentStatusRefunded {
		t.Errorf("Expected payment refunded, got %s", f.ledger.payments[0].Status)
	}
	if f.ledger.order.PaymentStatus != models.OrderPaymentPending {
		t.Errorf("Expected order payment status pending, got %s", f.ledger.order.PaymentStatus)
	}
	if result.RemainingCentavos != 0 {
		t.Errorf("Expected 0 remaining, got %d", result.RemainingCentavos)
	}
}

func TestRefundSweepWithPartialSplit(t *testing.T) {
	f := newFixture(t, 200000, 60000, 50000)
	p1 := f.ledger.payments[0].ID
	p2 := f.ledger.payments[1].ID

	result := f.refund(80000, nil)
	if !result.Success {
		t.Fatalf("Expected success, got failure: %s", result.Message)
	}

	byID := make(map[uuid.UUID]models.Payment)
	for _, p := range f.ledger.payments {
		byID[p.ID] = p
	}
	if byID[p1].Status != models.PaymentStatusRefunded {
		t.Errorf("Expected oldest payment fully refunded, got %s", byID[p1].Status)
	}
	if byID[p2].Status != models.PaymentStatusVerified || byID[p2].AmountCentavos != 30000 {
		t.Errorf("Expected second payment reduced to 30000 verified, got %d %s", byID[p2].AmountCentavos, byID[p2].Status)
	}
	if len(f.ledger.payments) != 3 {
		t.Fatalf("Expected a synthetic refund entry, got %d entries", len(f.ledger.payments))
	}
	offset := f.ledger.payments[2]
	if offset.Status != models.PaymentStatusRefunded || offset.AmountCentavos != 20000 {
		t.Errorf("Expected refund entry of 20000, got %d %s", offset.AmountCentavos, offset.Status)
	}
	if offset.Method != models.PaymentMethodOthers {
		t.Errorf("Expected refund entry method others, got %s", offset.Method)
	}
	if f.ledger.order.PaymentStatus != models.OrderPaymentDownpayment {
		t.Errorf("Expected downpayment, got %s", f.ledger.order.PaymentStatus)
	}
	if got := verifiedSum(f.ledger.payments); got != 30000 {
		t.Errorf("Expected verified total 30000, got %d", got)
	}
}

func TestRefundConservation(t *testing.T) {
	f := newFixture(t, 500000, 60000, 50000, 25000)
	before := verifiedSum(f.ledger.payments)
	refundedBefore := refundedSum(f.ledger.payments)

	const amount = 95000
	result := f.refund(amount, nil)
	if !result.Success {
		t.Fatalf("Expected success, got failure: %s", result.Message)
	}

	after := verifiedSum(f.ledger.payments)
	refundedAfter := refundedSum(f.ledger.payments)
	if before-after != amount {
		t.Errorf("Verified total dropped by %d, want %d", before-after, amount)
	}
	if refundedAfter-refundedBefore != amount {
		t.Errorf("Refunded total grew by %d, want %d", refundedAfter-refundedBefore, amount)
	}
}

func TestRefundInsufficientRollsBack(t *testing.T) {
	f := newFixture(t, 100000, 70000)
	before := f.ledger.clonePayments()
	statusBefore := f.ledger.order.PaymentStatus

	result := f.refund(90000, nil)
	if result.Success {
		t.Fatal("Expected failure for insufficient verified amount")
	}
	if !strings.Contains(result.Message, "insufficient verified payment amount") {
		t.Errorf("Unexpected message: %s", result.Message)
	}
	if !strings.Contains(result.Message, "200.00") {
		t.Errorf("Expected message to name the 20000 centavo shortfall, got: %s", result.Message)
	}

	if len(f.ledger.payments) != len(before) {
		t.Fatalf("Ledger gained entries on a failed refund")
	}
	for i := range before {
		if f.ledger.payments[i] != before[i] {
			t.Errorf("Ledger entry %d mutated on failed refund", i)
		}
	}
	if f.ledger.order.PaymentStatus != statusBefore {
		t.Errorf("Order payment status mutated on failed refund")
	}
}

func TestRefundTargetedExactAmount(t *testing.T) {
	f := newFixture(t, 100000, 40000, 40000)
	p1 := f.ledger.payments[0].ID
	p2 := f.ledger.payments[1].ID

	result := f.refund(40000, &p2)
	if !result.Success {
		t.Fatalf("Expected success, got failure: %s", result.Message)
	}

	byID := make(map[uuid.UUID]models.Payment)
	for _, p := range f.ledger.payments {
		byID[p.ID] = p
	}
	if byID[p2].Status != models.PaymentStatusRefunded {
		t.Errorf("Expected targeted payment refunded, got %s", byID[p2].Status)
	}
	if byID[p1].Status != models.PaymentStatusVerified || byID[p1].AmountCentavos != 40000 {
		t.Errorf("Expected untargeted payment untouched, got %d %s", byID[p1].AmountCentavos, byID[p1].Status)
	}
}

func TestRefundTargetedPartialSplit(t *testing.T) {
	f := newFixture(t, 100000, 30000, 50000)
	p2 := f.ledger.payments[1].ID

	result := f.refund(20000, &p2)
	if !result.Success {
		t.Fatalf("Expected success, got failure: %s", result.Message)
	}

	byID := make(map[uuid.UUID]models.Payment)
	for _, p := range f.ledger.payments {
		byID[p.ID] = p
	}
	if byID[p2].AmountCentavos != 30000 || byID[p2].Status != models.PaymentStatusVerified {
		t.Errorf("Expected target reduced to 30000 verified, got %d %s", byID[p2].AmountCentavos, byID[p2].Status)
	}
	if len(f.ledger.payments) != 3 {
		t.Fatalf("Expected synthetic refund entry, got %d entries", len(f.ledger.payments))
	}
}

func TestRefundTargetedThenSweep(t *testing.T) {
	// Target smaller than the refund: consume it fully, then sweep the
	// rest oldest-first.
	f := newFixture(t, 100000, 50000, 20000, 40000)
	p1 := f.ledger.payments[0].ID
	p2 := f.ledger.payments[1].ID
	p3 := f.ledger.payments[2].ID

	result := f.refund(60000, &p2)
	if !result.Success {
		t.Fatalf("Expected success, got failure: %s", result.Message)
	}

	byID := make(map[uuid.UUID]models.Payment)
	for _, p := range f.ledger.payments {
		byID[p.ID] = p
	}
	if byID[p2].Status != models.PaymentStatusRefunded {
		t.Errorf("Expected target refunded first, got %s", byID[p2].Status)
	}
	// Leftover 40000 consumes the oldest remaining payment (p1 50000):
	// p1 shrinks to 10000, p3 untouched.
	if byID[p1].AmountCentavos != 10000 || byID[p1].Status != models.PaymentStatusVerified {
		t.Errorf("Expected oldest payment reduced to 10000, got %d %s", byID[p1].AmountCentavos, byID[p1].Status)
	}
	if byID[p3].AmountCentavos != 40000 || byID[p3].Status != models.PaymentStatusVerified {
		t.Errorf("Expected newest payment untouched, got %d %s", byID[p3].AmountCentavos, byID[p3].Status)
	}
}

func TestRefundTargetNotFound(t *testing.T) {
	f := newFixture(t, 100000, 50000)
	before := f.ledger.clonePayments()
	missing := uuid.New()

	result := f.refund(10000, &missing)
	if result.Success {
		t.Fatal("Expected failure for missing target payment")
	}
	if result.Message != "specified payment not found or not verified" {
		t.Errorf("Unexpected message: %s", result.Message)
	}
	for i := range before {
		if f.ledger.payments[i] != before[i] {
			t.Errorf("Ledger mutated on failed refund")
		}
	}
}

func TestRefundNoVerifiedPayments(t *testing.T) {
	f := newFixture(t, 100000)

	result := f.refund(10000, nil)
	if result.Success {
		t.Fatal("Expected failure with no verified payments")
	}
	if result.Message != "no verified payments found to refund" {
		t.Errorf("Unexpected message: %s", result.Message)
	}
}

func TestRefundNonPositiveAmount(t *testing.T) {
	f := newFixture(t, 100000, 50000)

	for _, amount := range []int64{0, -500} {
		result := f.refund(amount, nil)
		if result.Success {
			t.Errorf("Expected failure for amount %d", amount)
		}
	}
	if f.ledger.txCount != 0 {
		t.Errorf("Expected no transaction for invalid amounts, got %d", f.ledger.txCount)
	}
}

func TestRefundUnauthorized(t *testing.T) {
	f := newFixture(t, 100000, 50000)
	f.checker.allow = false

	result := f.refund(10000, nil)
	if result.Success {
		t.Fatal("Expected failure for unauthorized actor")
	}
	if f.ledger.txCount != 0 {
		t.Errorf("Expected no ledger access before authorization, got %d transactions", f.ledger.txCount)
	}
	if len(f.audit.entries) != 1 {
		t.Errorf("Expected denial audit entry, got %d", len(f.audit.entries))
	}
}

func TestRefundDeterministicConsumption(t *testing.T) {
	run := func() []models.Payment {
		f := newFixture(t, 500000, 10000, 20000, 30000, 40000)
		if result := f.refund(45000, nil); !result.Success {
			t.Fatalf("Expected success, got failure: %s", result.Message)
		}
		return f.ledger.payments
	}
	a := run()
	b := run()
	if len(a) != len(b) {
		t.Fatalf("Runs produced different ledger sizes: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Status != b[i].Status || a[i].AmountCentavos != b[i].AmountCentavos {
			t.Errorf("Entry %d diverged between runs: %s/%d vs %s/%d",
				i, a[i].Status, a[i].AmountCentavos, b[i].Status, b[i].AmountCentavos)
		}
	}
}

func TestRefundEnqueuesNotification(t *testing.T) {
	f := newFixture(t, 200000, 60000, 50000)

	result := f.refund(80000, nil)
	if !result.Success {
		t.Fatalf("Expected success, got failure: %s", result.Message)
	}

	if len(f.jobs.payloads) != 1 {
		t.Fatalf("Expected one email job, got %d", len(f.jobs.payloads))
	}
	p := f.jobs.payloads[0]
	if p.EmailType != queue.EmailRefundConfirmation {
		t.Errorf("Expected refund confirmation, got %s", p.EmailType)
	}
	if p.AmountCentavos != 80000 || p.RemainingCentavos != 30000 {
		t.Errorf("Unexpected amounts in payload: %d refunded, %d remaining", p.AmountCentavos, p.RemainingCentavos)
	}
	if p.RecipientEmail != "lia@example.com" {
		t.Errorf("Unexpected recipient: %s", p.RecipientEmail)
	}
	if p.ProcessingTime != "3-5 business days" {
		t.Errorf("Unexpected processing estimate: %s", p.ProcessingTime)
	}
}

func TestRefundSucceedsWhenEnqueueFails(t *testing.T) {
	f := newFixture(t, 100000, 50000)
	f.jobs.fail = true

	result := f.refund(50000, nil)
	if !result.Success {
		t.Fatalf("Expected success despite enqueue failure, got: %s", result.Message)
	}
}

func TestRefundWritesCustomerNote(t *testing.T) {
	f := newFixture(t, 100000, 50000)

	if result := f.refund(50000, nil); !result.Success {
		t.Fatalf("Expected success, got failure: %s", result.Message)
	}
	if !strings.Contains(f.ledger.order.CustomerNotes, "Refunded PHP 500.00") {
		t.Errorf("Expected refund note on order, got: %q", f.ledger.order.CustomerNotes)
	}
}

func TestRefundAuditsEveryPath(t *testing.T) {
	f := newFixture(t, 100000, 50000)

	f.refund(50000, nil) // success
	f.refund(50000, nil) // failure: nothing left to refund
	if len(f.audit.entries) != 2 {
		t.Fatalf("Expected audit entries for both paths, got %d", len(f.audit.entries))
	}
}
