package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
	"github.com/aryan0dhankhar/expensehub/internal/observability/metrics"
)

// DefaultBuffer is the per-subscriber channel capacity
const DefaultBuffer = 32

type subscriber struct {
	ch chan domain.ExpenseEvent
}

// Hub fans expense events out to live subscribers of the same company.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	buffer int
	logger *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a listener for companyID. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(companyID string) (<-chan domain.ExpenseEvent, func()) {
	sub := &subscriber{ch: make(chan domain.ExpenseEvent, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[companyID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[companyID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	metrics.IncrementSubscribers()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[companyID], sub)
			if len(h.subs[companyID]) == 0 {
				delete(h.subs, companyID)
			}
			close(sub.ch)
			h.mu.Unlock()
			metrics.DecrementSubscribers()
		})
	}
	return sub.ch, cancel
}

// Publish implements domain.EventPublisher
func (h *Hub) Publish(_ context.Context, event domain.ExpenseEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[event.CompanyID] {
		select {
		case sub.ch <- event:
		default:
			metrics.IncrementDroppedEvents()
			h.logger.Debug("dropped event for slow subscriber",
				slog.String("company_id", event.CompanyID),
				slog.String("type", string(event.Type)),
			)
		}
	}
	return nil
}

// Subscribers returns the number of live listeners for companyID
func (h *Hub) Subscribers(companyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[companyID])
}
