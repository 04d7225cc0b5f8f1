/**
 * @description
 * RabbitMQ consumer glue for the bank-import pipeline. Each
 * `payment.received` message becomes one payment ledger row; malformed
 * messages are dropped, transient failures are requeued.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/coopsuite/membership-service/internal/domain"
	"github.com/coopsuite/membership-service/internal/store"
)

// PaymentEventConsumer records payments published by external import jobs.
type PaymentEventConsumer struct {
	service *Service
}

// NewPaymentEventConsumer creates a consumer bound to the service.
func NewPaymentEventConsumer(service *Service) *PaymentEventConsumer {
	return &PaymentEventConsumer{service: service}
}

// HandleMessage processes one raw message. The returned bool is the ack
// decision: true acknowledges, false requeues.
func (c *PaymentEventConsumer) HandleMessage(body []byte) bool {
	var event domain.PaymentReceivedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=payment_consumer msg=\"dropping malformed payment event\" err=%v", err)
		return true
	}
	if event.MemberNo == "" || event.Amount <= 0 {
		log.Printf("level=warn component=payment_consumer msg=\"dropping invalid payment event\" member_no=%q amount=%d", event.MemberNo, event.Amount)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.service.RecordImportedPayment(ctx, event); err != nil {
		if errors.Is(err, store.ErrMemberNotFound) {
			// An unknown member number will never resolve by retrying.
			log.Printf("level=warn component=payment_consumer msg=\"dropping payment for unknown member\" member_no=%q", event.MemberNo)
			return true
		}
		log.Printf("level=error component=payment_consumer msg=\"payment event failed; requeueing\" member_no=%q err=%v", event.MemberNo, err)
		return false
	}
	return true
}
