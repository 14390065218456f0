package events

import (
	"context"
	"sync"
)

// Routing keys published on the outreach exchange
const (
	CampaignCreated         = "campaign.created"
	CampaignRecipientsAdded = "campaign.recipients_added"
	CampaignScheduled       = "campaign.scheduled"
	CampaignStarted         = "campaign.started"
	CampaignCompleted       = "campaign.completed"
	CampaignDeleted         = "campaign.deleted"
	EmailSendRecorded       = "email_send.recorded"
	ProspectUnsubscribed    = "prospect.unsubscribed"
	SenderDefaultChanged    = "sender.default_changed"
)

// Publisher emits domain events for downstream consumers (sending worker,
// analytics). Callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// Event is one message captured by a Recorder
type Event struct {
	RoutingKey string
	Payload    any
}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, routingKey string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{RoutingKey: routingKey, Payload: payload})
	return nil
}

// Events returns a copy of everything published so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Keys returns the routing keys in publish order
func (r *Recorder) Keys() []string {
	var keys []string
	for _, e := range r.Events() {
		keys = append(keys, e.RoutingKey)
	}
	return keys
}
