package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	"github.com/google/uuid"
)

// Name identifies the side effect a task performs.
type Name string

const (
	NamePlaceOrder            Name = "placeOrder"
	NameReturnOrder           Name = "returnOrder"
	NameCancelSeatReservation Name = "cancelSeatReservation"
	NameCancelCreditCard      Name = "cancelCreditCard"
	NameCancelPecorino        Name = "cancelPecorino"
	NamePayCreditCard         Name = "payCreditCard"
	NamePayPecorino           Name = "payPecorino"
	NameRefundCreditCard      Name = "refundCreditCard"
	NameRefundPecorino        Name = "refundPecorino"
	NameSendOrder             Name = "sendOrder"
)

// Names lists every task name the engine runs.
var Names = []Name{
	NamePlaceOrder,
	NameReturnOrder,
	NameCancelSeatReservation,
	NameCancelCreditCard,
	NameCancelPecorino,
	NamePayCreditCard,
	NamePayPecorino,
	NameRefundCreditCard,
	NameRefundPecorino,
	NameSendOrder,
}

type Status string

const (
	StatusReady    Status = "Ready"
	StatusRunning  Status = "Running"
	StatusExecuted Status = "Executed"
	StatusAborted  Status = "Aborted"
)

// ExecutionResult is appended on every attempt.
type ExecutionResult struct {
	ExecutedAt time.Time `json:"executedAt"`
	Error      string    `json:"error,omitempty"`
}

// TransactionData is the payload of tasks that act on a whole transaction.
type TransactionData struct {
	TransactionID uuid.UUID `json:"transactionId"`
}

type Task struct {
	ID                     uuid.UUID
	Name                   Name
	Status                 Status
	RunsAt                 time.Time
	RemainingNumberOfTries int
	NumberOfTried          int
	LastTriedAt            *time.Time
	ExecutionResults       []ExecutionResult
	Data                   json.RawMessage
	// UniqueKey makes a second insert for the same work a no-op.
	UniqueKey *string
	CreatedAt time.Time
}

// New creates a Ready task due now.
func New(name Name, data any, tries int, now time.Time) (*Task, error) {
	if tries < 1 {
		return nil, fmt.Errorf("task %s: tries must be at least 1", name)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal task %s data: %w", name, err)
	}

	return &Task{
		ID:                     uuid.New(),
		Name:                   name,
		Status:                 StatusReady,
		RunsAt:                 now,
		RemainingNumberOfTries: tries,
		NumberOfTried:          0,
		ExecutionResults:       []ExecutionResult{},
		Data:                   payload,
		CreatedAt:              now,
	}, nil
}

// WithUniqueKey sets the idempotency key and returns the task.
func (t *Task) WithUniqueKey(key string) *Task {
	t.UniqueKey = &key
	return t
}

// DecodeData unmarshals the task payload into v.
func (t *Task) DecodeData(v any) error {
	if err := json.Unmarshal(t.Data, v); err != nil {
		return fmt.Errorf("decode task %s data: %w", t.Name, err)
	}
	return nil
}

// TransactionKey is the unique key of a task acting on one transaction.
func TransactionKey(name Name, transactionID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", name, transactionID)
}

// Backoff returns base * 2^(tried-1), capped at max.
func Backoff(tried int, base, max time.Duration) time.Duration {
	if tried < 1 {
		tried = 1
	}
	d := base
	for i := 1; i < tried; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// NameFor maps a follow-up action to the task that performs it.
func NameFor(attrs action.Attributes) (Name, bool) {
	if attrs.Kind == action.KindSend {
		return NameSendOrder, true
	}
	obj, ok := attrs.Object.(action.PaymentObject)
	if !ok {
		return "", false
	}
	switch {
	case attrs.Kind == action.KindPay && obj.Method == action.ObjectCreditCard:
		return NamePayCreditCard, true
	case attrs.Kind == action.KindPay && obj.Method == action.ObjectPointAccount:
		return NamePayPecorino, true
	case attrs.Kind == action.KindRefund && obj.Method == action.ObjectCreditCard:
		return NameRefundCreditCard, true
	case attrs.Kind == action.KindRefund && obj.Method == action.ObjectPointAccount:
		return NameRefundPecorino, true
	}
	return "", false
}
