// Package notify turns quote events into emails delivered by the worker.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/quotedesk/internal/events"
)

// TypeQuoteEmail is the asynq task type for every quote email.
const TypeQuoteEmail = "quote:email"

// Kind selects the email template and recipient.
type Kind string

const (
	KindSubmittedSales    Kind = "submitted_sales"
	KindSubmittedCustomer Kind = "submitted_customer"
	KindSent              Kind = "sent"
	KindApproved          Kind = "approved"
	KindRejected          Kind = "rejected"
	KindExpired           Kind = "expired"
)

// EmailTask is the task payload. ApprovalToken is only set for KindSent.
type EmailTask struct {
	EventID       string `json:"eventId"`
	Kind          Kind   `json:"kind"`
	QuoteID       string `json:"quoteId"`
	Reason        string `json:"reason,omitempty"`
	ApprovalToken string `json:"approvalToken,omitempty"`
}

// DedupKey identifies one email for one event.
func (t EmailTask) DedupKey() string {
	return fmt.Sprintf("%s:%s", t.EventID, t.Kind)
}

// NewEmailTask encodes t as an asynq task.
func NewEmailTask(t EmailTask, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeQuoteEmail, payload, opts...), nil
}

// kindsFor lists the emails an event topic produces.
func kindsFor(topic string) []Kind {
	switch topic {
	case events.TopicQuoteSubmitted:
		return []Kind{KindSubmittedSales, KindSubmittedCustomer}
	case events.TopicQuoteSent:
		return []Kind{KindSent}
	case events.TopicQuoteApproved:
		return []Kind{KindApproved}
	case events.TopicQuoteRejected:
		return []Kind{KindRejected}
	case events.TopicQuoteExpired:
		return []Kind{KindExpired}
	}
	return nil
}
