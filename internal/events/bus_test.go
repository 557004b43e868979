package events_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/satwatch/internal/events"
)

func TestBus_DeliveryOrder(t *testing.T) {
	bus := events.New()

	var got []int

	bus.Subscribe(events.TopicInvoiceUpdated, func(any) { got = append(got, 1) })
	bus.Subscribe(events.TopicInvoiceUpdated, func(any) { got = append(got, 2) })
	bus.Subscribe(events.TopicInvoiceUpdated, func(any) { got = append(got, 3) })

	bus.Publish(events.TopicInvoiceUpdated, events.InvoiceUpdated{})

	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := events.New()

	var got []int

	bus.Subscribe(events.TopicPaymentCreated, func(any) { got = append(got, 1) })
	sub := bus.Subscribe(events.TopicPaymentCreated, func(any) { got = append(got, 2) })
	bus.Subscribe(events.TopicPaymentCreated, func(any) { got = append(got, 3) })

	bus.Unsubscribe(sub)
	bus.Publish(events.TopicPaymentCreated, events.PaymentCreated{})

	assert.Equal(t, []int{1, 3}, got)

	// removing again is a no-op
	bus.Unsubscribe(sub)
	bus.Publish(events.TopicPaymentCreated, events.PaymentCreated{})
	assert.Equal(t, []int{1, 3, 1, 3}, got)
}

func TestBus_PayloadAndTopicIsolation(t *testing.T) {
	bus := events.New()

	invoiceID := uuid.New()

	var updated []events.InvoiceUpdated

	bus.Subscribe(events.TopicInvoiceUpdated, func(payload any) {
		updated = append(updated, payload.(events.InvoiceUpdated))
	})
	bus.Subscribe(events.TopicPaymentUpdated, func(any) {
		t.Fatal("payment.updated handler must not fire for invoice.updated")
	})

	bus.Publish(events.TopicInvoiceUpdated, events.InvoiceUpdated{InvoiceID: invoiceID, Status: "paid"})

	if assert.Len(t, updated, 1) {
		assert.Equal(t, invoiceID, updated[0].InvoiceID)
		assert.Equal(t, "paid", updated[0].Status)
	}
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := events.New()

	assert.NotPanics(t, func() {
		bus.Publish(events.TopicInvoiceUpdated, events.InvoiceUpdated{})
	})
}
