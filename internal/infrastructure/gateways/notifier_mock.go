package gateways

import (
	"context"
	"sync"

	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/google/uuid"
)

// MockNotifier records messages instead of delivering them.
type MockNotifier struct {
	chaos

	mu   sync.Mutex
	sent []Message
}

func NewMockNotifier(opts ...MockOption) *MockNotifier {
	return &MockNotifier{chaos: newChaos("notifier", opts)}
}

func (n *MockNotifier) Send(ctx context.Context, msg Message) (string, error) {
	if err := n.before(ctx, "Send"); err != nil {
		return "", err
	}
	if msg.To == "" {
		return "", domainErrors.ArgumentNull("to")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return uuid.NewString(), nil
}

// Sent returns the recorded messages.
func (n *MockNotifier) Sent() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.sent...)
}
