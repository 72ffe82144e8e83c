// Package outbox defines the in-process event ports used to fan payment
// outcomes out to background consumers.
package outbox

import "context"

type Event interface {
	// EventName routes the event to subscribers, e.g. "payment.verified".
	EventName() string
	// AggregateID is the order the event concerns.
	AggregateID() string
}

type Handler func(ctx context.Context, e Event) error

// Publisher is optional for use cases; a nil Publisher drops events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// Bus is both ends of the pipe.
type Bus interface {
	Publisher
	Subscriber
}
