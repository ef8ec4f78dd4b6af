package hooks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/muninn/schema"
)

type fakeAMQPChannel struct {
	exchangeDeclared string
	published        []amqp.Publishing
	routingKeys      []string
}

func (f *fakeAMQPChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.exchangeDeclared = name
	return nil
}

func (f *fakeAMQPChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.published = append(f.published, msg)
	f.routingKeys = append(f.routingKeys, key)
	return nil
}

func TestNewAMQPDeclaresExchange(t *testing.T) {
	ch := &fakeAMQPChannel{}
	_, err := NewAMQP(ch, "muninn.hooks")
	require.NoError(t, err)
	assert.Equal(t, "muninn.hooks", ch.exchangeDeclared)
}

func TestAMQPNotifyPublishesEventWithRoutingKey(t *testing.T) {
	ch := &fakeAMQPChannel{}
	d, err := NewAMQP(ch, "muninn.hooks")
	require.NoError(t, err)

	product := &schema.Product{Core: schema.Struct{"uuid": "abc"}}
	require.NoError(t, d.Notify(context.Background(), PostIngest, product, []string{"a.txt"}))

	require.Len(t, ch.published, 1)
	assert.Equal(t, "muninn.hooks.post_ingest", ch.routingKeys[0])

	var decoded amqpEvent
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &decoded))
	assert.Equal(t, PostIngest, decoded.Event)
	assert.Equal(t, []string{"a.txt"}, decoded.Paths)
	assert.Equal(t, "abc", decoded.Product["uuid"])
}
