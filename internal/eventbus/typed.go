package eventbus

import (
	"context"
	"time"
)

// TopicDef binds a Topic string to a payload type T at compile time.
// Use with Publish and SubscribeTo for type-safe messaging.
type TopicDef[T any] struct{ topic Topic }

// NewTopicDef creates a typed topic descriptor for the given topic string.
func NewTopicDef[T any](topic Topic) TopicDef[T] { return TopicDef[T]{topic: topic} }

// Topic returns the underlying topic string.
func (d TopicDef[T]) Topic() Topic { return d.topic }

// Publish sends a typed payload on the bus using the topic descriptor.
// The compiler enforces that payload matches the type bound to the descriptor.
// If bus is nil the call is a no-op.
func Publish[T any](ctx context.Context, bus *Bus, td TopicDef[T], source Source, payload T) {
	if bus == nil {
		return
	}
	bus.publish(ctx, Envelope{
		Topic:   td.topic,
		Source:  source,
		Payload: payload,
	})
}

// PublishOption customises the Envelope built by PublishWithOpts.
type PublishOption func(*Envelope)

// WithTimestamp overrides the envelope timestamp (default is time.Now().UTC()).
func WithTimestamp(ts time.Time) PublishOption {
	return func(env *Envelope) {
		env.Timestamp = ts
	}
}

// WithCorrelationID sets the envelope correlation ID.
func WithCorrelationID(id string) PublishOption {
	return func(env *Envelope) {
		env.CorrelationID = id
	}
}

// PublishWithOpts is like Publish but accepts options to customise the envelope.
// If bus is nil the call is a no-op.
func PublishWithOpts[T any](ctx context.Context, bus *Bus, td TopicDef[T], source Source, payload T, opts ...PublishOption) {
	if bus == nil {
		return
	}
	env := Envelope{
		Topic:   td.topic,
		Source:  source,
		Payload: payload,
	}
	for _, opt := range opts {
		opt(&env)
	}
	bus.publish(ctx, env)
}

// TypedEnvelope pairs the raw envelope with its decoded payload.
type TypedEnvelope[T any] struct {
	Envelope
	Payload T
}

// TypedSubscription adapts a raw subscription to a concrete payload type.
// Envelopes whose payload is not a T are discarded.
type TypedSubscription[T any] struct {
	raw *Subscription
	ch  chan TypedEnvelope[T]
}

// SubscribeTo creates a typed subscription using a topic descriptor.
func SubscribeTo[T any](bus *Bus, td TopicDef[T], opts ...SubscriptionOption) *TypedSubscription[T] {
	raw := bus.Subscribe(td.topic, opts...)
	sub := &TypedSubscription[T]{
		raw: raw,
		ch:  make(chan TypedEnvelope[T], cap(raw.ch)),
	}

	go func() {
		defer close(sub.ch)
		for env := range raw.ch {
			payload, ok := env.Payload.(T)
			if !ok {
				continue
			}
			sub.ch <- TypedEnvelope[T]{Envelope: env, Payload: payload}
		}
	}()

	return sub
}

// C exposes the typed event channel. It is closed when the subscription ends.
func (s *TypedSubscription[T]) C() <-chan TypedEnvelope[T] {
	return s.ch
}

// Close removes the subscription.
func (s *TypedSubscription[T]) Close() {
	s.raw.Close()
}
