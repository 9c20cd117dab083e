package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/merchline/backend/internal/models"
	"github.com/merchline/backend/pkg/queue"
)

type fakeLogStore struct {
	created []*models.EmailLog
	sent    []uuid.UUID
	failed  map[uuid.UUID]string
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{failed: make(map[uuid.UUID]string)}
}

func (f *fakeLogStore) Create(_ context.Context, el *models.EmailLog) error {
	el.ID = uuid.New()
	f.created = append(f.created, el)
	return nil
}

func (f *fakeLogStore) MarkSent(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeLogStore) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	f.failed[id] = errMsg
	return nil
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func emailJob(t *testing.T, payload queue.EmailPayload) *queue.Job {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeEmail, Payload: body}
}

func TestProcessRefundConfirmation(t *testing.T) {
	logs := newFakeLogStore()
	sender := &fakeSender{}
	p := NewEmailProcessor(logs, sender, nil, nil)

	payload := queue.EmailPayload{
		EmailType:         queue.EmailRefundConfirmation,
		OrderID:           uuid.New(),
		RecipientEmail:    "lia@example.com",
		RecipientName:     "Lia Cruz",
		AmountCentavos:    80000,
		RemainingCentavos: 30000,
		Reason:            "defective item",
		ProcessingTime:    "3-5 business days",
	}
	if err := p.Process(context.Background(), emailJob(t, payload)); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0] != "lia@example.com" {
		t.Errorf("Expected one email to lia@example.com, got %v", sender.sent)
	}
	if len(logs.created) != 1 {
		t.Fatalf("Expected one email log, got %d", len(logs.created))
	}
	el := logs.created[0]
	if el.EmailType != queue.EmailRefundConfirmation || el.AmountCentavos != 80000 || el.RemainingCentavos != 30000 {
		t.Errorf("Email log missing payload fields: %+v", el)
	}
	if len(logs.sent) != 1 || logs.sent[0] != el.ID {
		t.Errorf("Expected log %s marked sent, got %v", el.ID, logs.sent)
	}
}

func TestProcessSendFailureMarksLog(t *testing.T) {
	logs := newFakeLogStore()
	sender := &fakeSender{err: errors.New("smtp timeout")}
	p := NewEmailProcessor(logs, sender, nil, nil)

	payload := queue.EmailPayload{
		EmailType:      queue.EmailPaymentReceipt,
		OrderID:        uuid.New(),
		RecipientEmail: "lia@example.com",
		AmountCentavos: 40000,
	}
	err := p.Process(context.Background(), emailJob(t, payload))
	if err == nil {
		t.Fatal("Expected error when sender fails")
	}

	if len(logs.created) != 1 {
		t.Fatalf("Expected one email log, got %d", len(logs.created))
	}
	if msg, ok := logs.failed[logs.created[0].ID]; !ok || !strings.Contains(msg, "smtp timeout") {
		t.Errorf("Expected log marked failed with sender error, got %v", logs.failed)
	}
	if len(logs.sent) != 0 {
		t.Errorf("Failed email must not be marked sent")
	}
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	p := NewEmailProcessor(newFakeLogStore(), &fakeSender{}, nil, nil)
	job := &queue.Job{ID: uuid.NewString(), Type: "reindex", Payload: []byte("{}")}
	if err := p.Process(context.Background(), job); err == nil {
		t.Fatal("Expected error for unknown job type")
	}
}

func TestRenderRefundConfirmation(t *testing.T) {
	subject, body, err := Render(queue.EmailPayload{
		EmailType:         queue.EmailRefundConfirmation,
		OrderID:           uuid.MustParse("3e2f1a9c-0000-4000-8000-000000000000"),
		RecipientName:     "Lia Cruz",
		AmountCentavos:    80000,
		RemainingCentavos: 30000,
		Reason:            "defective item",
		ProcessingTime:    "3-5 business days",
	})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !strings.HasPrefix(subject, "Refund confirmation for order 3e2f1a9c") {
		t.Errorf("Unexpected subject: %s", subject)
	}
	for _, want := range []string{"Hi Lia Cruz", "PHP 800.00", "PHP 300.00", "defective item", "3-5 business days"} {
		if !strings.Contains(body, want) {
			t.Errorf("Body missing %q:\n%s", want, body)
		}
	}
}

func TestRenderPaymentReceipt(t *testing.T) {
	subject, body, err := Render(queue.EmailPayload{
		EmailType:         queue.EmailPaymentReceipt,
		OrderID:           uuid.New(),
		AmountCentavos:    40000,
		RemainingCentavos: 40000,
		ReferenceNo:       "GC-20260301-7712",
	})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !strings.HasPrefix(subject, "Payment received") {
		t.Errorf("Unexpected subject: %s", subject)
	}
	if !strings.Contains(body, "Hi Customer") {
		t.Errorf("Expected fallback greeting, got:\n%s", body)
	}
	if !strings.Contains(body, "GC-20260301-7712") {
		t.Errorf("Body missing reference no:\n%s", body)
	}
}

func TestRenderUnknownType(t *testing.T) {
	if _, _, err := Render(queue.EmailPayload{EmailType: "newsletter"}); err == nil {
		t.Fatal("Expected error for unknown email type")
	}
}
