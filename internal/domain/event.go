package domain

import (
	"context"
	"time"
)

// EventType names a committed change to an expense
type EventType string

const (
	EventExpenseCreated       EventType = "created"
	EventExpenseUpdated       EventType = "updated"
	EventExpenseDeleted       EventType = "deleted"
	EventExpenseStatusChanged EventType = "status_changed"
)

// ExpenseEvent is emitted after an expense mutation has been persisted
type ExpenseEvent struct {
	Type           EventType `json:"type"`
	CompanyID      string    `json:"companyId"`
	ExpenseID      string    `json:"expenseId"`
	ActorID        string    `json:"actorId"`
	Status         Status    `json:"status,omitempty"`
	PreviousStatus Status    `json:"previousStatus,omitempty"`
	Amount         float64   `json:"amount,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// EventPublisher delivers expense events to interested parties
type EventPublisher interface {
	Publish(ctx context.Context, event ExpenseEvent) error
}
