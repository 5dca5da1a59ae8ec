package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchelbase/satchel/internal/pubsub"
)

func receiveOne(t *testing.T, ch <-chan pubsub.Message) pubsub.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestEngine_PublishSubscribe(t *testing.T) {
	e := New()
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := e.NewConsumer(pubsub.ConsumerOptions{FilterSubject: "satchel.cart.>"})
	require.NoError(t, err)

	ch, err := c.Subscribe(ctx)
	require.NoError(t, err)

	p, err := e.NewPublisher(pubsub.PublisherOptions{})
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, "satchel.cart.toggle", []byte("payload")))
	require.NoError(t, p.Publish(ctx, "satchel.social.toggle", []byte("filtered out")))
	require.NoError(t, p.Publish(ctx, "satchel.cart.create", []byte("second")))

	msg := receiveOne(t, ch)
	assert.Equal(t, "satchel.cart.toggle", msg.Subject())
	assert.Equal(t, []byte("payload"), msg.Data())
	assert.NoError(t, msg.Ack())

	msg = receiveOne(t, ch)
	assert.Equal(t, "satchel.cart.create", msg.Subject())
}

func TestEngine_MultipleSubscribersSamePattern(t *testing.T) {
	e := New()
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c1, err := e.NewConsumer(pubsub.ConsumerOptions{FilterSubject: "satchel.>"})
	require.NoError(t, err)
	c2, err := e.NewConsumer(pubsub.ConsumerOptions{FilterSubject: "satchel.>"})
	require.NoError(t, err)

	ch1, err := c1.Subscribe(ctx)
	require.NoError(t, err)
	ch2, err := c2.Subscribe(ctx)
	require.NoError(t, err)

	p, err := e.NewPublisher(pubsub.PublisherOptions{})
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, "satchel.wishlist.toggle", []byte("x")))

	assert.Equal(t, "satchel.wishlist.toggle", receiveOne(t, ch1).Subject())
	assert.Equal(t, "satchel.wishlist.toggle", receiveOne(t, ch2).Subject())
}

func TestEngine_NakRedelivers(t *testing.T) {
	e := New()
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := e.NewConsumer(pubsub.ConsumerOptions{FilterSubject: ">"})
	require.NoError(t, err)
	ch, err := c.Subscribe(ctx)
	require.NoError(t, err)

	p, err := e.NewPublisher(pubsub.PublisherOptions{})
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, "satchel.cart.toggle", []byte("retry me")))

	msg := receiveOne(t, ch)
	require.NoError(t, msg.Nak())

	again := receiveOne(t, ch)
	assert.Equal(t, []byte("retry me"), again.Data())

	md, err := again.Metadata()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), md.NumDelivered)
}

func TestEngine_SubscribeCancelClosesChannel(t *testing.T) {
	e := New()
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())

	c, err := e.NewConsumer(pubsub.ConsumerOptions{FilterSubject: ">"})
	require.NoError(t, err)
	ch, err := c.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestEngine_ClosedRejectsOperations(t *testing.T) {
	e := New()
	require.NoError(t, e.Close())

	_, err := e.NewPublisher(pubsub.PublisherOptions{})
	assert.ErrorIs(t, err, ErrEngineClosed)

	_, err = e.NewConsumer(pubsub.ConsumerOptions{})
	assert.ErrorIs(t, err, ErrEngineClosed)

	// Double close is a no-op.
	assert.NoError(t, e.Close())
}

func TestEngine_PublisherCloseStopsPublishing(t *testing.T) {
	e := New()
	defer e.Close()

	p, err := e.NewPublisher(pubsub.PublisherOptions{})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	err = p.Publish(context.Background(), "satchel.cart.toggle", nil)
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestEngine_OnPublishCallback(t *testing.T) {
	e := New()
	defer e.Close()

	var gotSubject string
	var gotErr error
	p, err := e.NewPublisher(pubsub.PublisherOptions{
		OnPublish: func(subject string, err error, latency time.Duration) {
			gotSubject = subject
			gotErr = err
		},
	})
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), "satchel.cart.toggle", []byte("x")))
	assert.Equal(t, "satchel.cart.toggle", gotSubject)
	assert.NoError(t, gotErr)
}
