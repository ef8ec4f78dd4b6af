package hooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"eve.evalgo.org/muninn/schema"
)

// AMQPChannel is the narrow publish surface this package needs from an
// AMQP channel, following the teacher's queue/amqp_interface.go
// dependency-injection pattern (an interface over *amqp.Channel so
// tests can substitute a fake without a live broker).
type AMQPChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// amqpEvent is the wire payload published for each lifecycle event.
type amqpEvent struct {
	Event   Event         `json:"event"`
	Product schema.Struct `json:"product"`
	Paths   []string      `json:"paths,omitempty"`
}

// AMQP publishes each lifecycle event to a topic exchange for
// out-of-process observers, as an addition alongside (not instead of)
// any in-process hooks the coordinator also runs; it never calls Go
// hook objects itself, only serializes and publishes. Routing keys are
// "muninn.hooks.<event>", letting a consumer bind to a subset via a
// topic pattern like "muninn.hooks.post_ingest".
type AMQP struct {
	channel  AMQPChannel
	exchange string
}

// NewAMQP declares exchange as a durable topic exchange on channel and
// returns an AMQP Dispatcher that publishes to it.
func NewAMQP(channel AMQPChannel, exchange string) (*AMQP, error) {
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("hooks: declaring exchange %q: %w", exchange, err)
	}
	return &AMQP{channel: channel, exchange: exchange}, nil
}

func (d *AMQP) Notify(ctx context.Context, event Event, product *schema.Product, paths []string) error {
	var core schema.Struct
	if product != nil {
		core = product.Core
	}
	body, err := json.Marshal(amqpEvent{Event: event, Product: core, Paths: paths})
	if err != nil {
		return fmt.Errorf("hooks: marshaling event: %w", err)
	}
	routingKey := "muninn.hooks." + string(event)
	if err := d.channel.Publish(d.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	}); err != nil {
		return fmt.Errorf("hooks: publishing %s: %w", routingKey, err)
	}
	return nil
}

var _ Dispatcher = (*AMQP)(nil)
