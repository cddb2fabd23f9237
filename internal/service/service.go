package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WalkInCustomer is the name recorded on sales without a customer.
const WalkInCustomer = "Walk-in"

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// AuditID is the value written to created_by/updated_by columns.
func (a Actor) AuditID() string {
	if a.ID == uuid.Nil {
		return "system"
	}
	return a.ID.String()
}

func (a Actor) ref() map[string]any {
	return map[string]any{"id": a.ID, "name": a.Name, "email": a.Email}
}

// Notifier pushes realtime events to connected clients. *ws.Hub implements it.
type Notifier interface {
	Publish(eventType string, fields map[string]any)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, map[string]any) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
