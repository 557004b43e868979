// Package events provides the in-process publish/subscribe bus used to
// notify waiters of invoice and payment changes. Delivery is synchronous
// and in registration order; there is no persistence and no cross-process
// fan-out.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Topics published by the reconciliation engine.
const (
	TopicInvoiceUpdated = "invoice.updated"
	TopicPaymentCreated = "payment.created"
	TopicPaymentUpdated = "payment.updated"
)

// InvoiceUpdated is published after an invoice's stored status changes.
type InvoiceUpdated struct {
	InvoiceID uuid.UUID
	Status    string
}

// PaymentCreated is published when a ledger transaction first resolves to
// an invoice and a payment record is created for it.
type PaymentCreated struct {
	InvoiceID uuid.UUID
	PaymentID uuid.UUID
	TxID      string
}

// PaymentUpdated is published when the ledger view of an existing payment
// changes (amount or matched address).
type PaymentUpdated struct {
	InvoiceID uuid.UUID
	PaymentID uuid.UUID
	TxID      string
}

// Handler receives a published payload. A handler runs to completion
// before the next subscriber is invoked; a slow handler blocks the
// publishing scan.
type Handler func(payload any)

// Subscription identifies a single registered handler. Pass it back to
// Unsubscribe to remove the handler.
type Subscription struct {
	topic string
	id    uint64
}

type entry struct {
	id uint64
	fn Handler
}

// Bus is a minimal synchronous event bus. The zero value is not usable;
// call New.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	topics map[string][]entry
}

func New() *Bus {
	return &Bus{topics: make(map[string][]entry)}
}

// Subscribe registers fn for topic and returns a handle for Unsubscribe.
// Handlers are invoked in registration order.
func (b *Bus) Subscribe(topic string, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.topics[topic] = append(b.topics[topic], entry{id: b.nextID, fn: fn})

	return Subscription{topic: topic, id: b.nextID}
}

// Unsubscribe removes the handler identified by sub. Unknown handles are
// ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.topics[sub.topic]
	for i, e := range entries {
		if e.id == sub.id {
			b.topics[sub.topic] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to every subscriber of topic, one at a time,
// in registration order. It returns after the last handler completes.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.Lock()
	entries := make([]entry, len(b.topics[topic]))
	copy(entries, b.topics[topic])
	b.mu.Unlock()

	for _, e := range entries {
		e.fn(payload)
	}
}
