package events

// Topic constants for quote domain events.
const (
	TopicQuoteSubmitted = "quote.submitted"
	TopicQuoteSent      = "quote.sent"
	TopicQuoteApproved  = "quote.approved"
	TopicQuoteRejected  = "quote.rejected"
	TopicQuoteExpired   = "quote.expired"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicQuoteSubmitted,
		TopicQuoteSent,
		TopicQuoteApproved,
		TopicQuoteRejected,
		TopicQuoteExpired,
	}
}
