package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportrelay/internal/core/pubsub"
	pstest "reportrelay/internal/core/pubsub/testing"
	"reportrelay/internal/relay/codec"
	"reportrelay/internal/relay/types"
)

var _ pubsub.Consumer = (*pstest.MockConsumer)(nil)

type consumerHarness struct {
	consumer  *pstest.MockConsumer
	resolver  *fakeResolver
	transport *fakeTransport
	scheduler *fakeScheduler
}

// startConsumer runs an event consumer against mocks and waits for the
// subscription to be live before returning.
func startConsumer(t *testing.T) *consumerHarness {
	t.Helper()

	h := &consumerHarness{
		consumer:  pstest.NewMockConsumer(),
		resolver:  &fakeResolver{},
		transport: newFakeTransport(),
		scheduler: &fakeScheduler{},
	}

	engine := NewEngine(h.resolver, h.transport, h.scheduler, nil, nil, 0)
	ec := NewEventConsumer(h.consumer, engine, 2, nil,
		WithDrainTimeout(200*time.Millisecond),
		WithShutdownTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		assert.NoError(t, ec.Start(ctx))
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("consumer did not stop")
		}
	})

	// Probe until the consumer is pulling messages. Probes are not valid
	// events, so they are termed and never reach the engine.
	probe := pstest.NewMockMessage("probe", []byte("probe"))
	require.Eventually(t, func() bool {
		h.consumer.Send(probe)
		return probe.IsTermed()
	}, 2*time.Second, 10*time.Millisecond)

	return h
}

func eventData(t *testing.T, evt *types.Event) []byte {
	t.Helper()
	data, err := codec.Marshal(evt)
	require.NoError(t, err)
	return data
}

func TestConsumer_AcksCompletedEvent(t *testing.T) {
	h := startConsumer(t)
	h.resolver.subs = []*types.Subscription{{ID: 1, URL: "https://a", ExpectedResponseCode: 200}}
	h.transport.status[1] = 200

	msg := pstest.NewMockMessage("reports.report", eventData(t, &types.Event{
		Type: types.EventNewReport,
		Data: types.EventPayload{Report: &types.Report{ID: 5}},
	}))
	h.consumer.Send(msg)

	assert.Eventually(t, msg.IsAcked, time.Second, 10*time.Millisecond)
	assert.False(t, msg.IsNaked())
	assert.False(t, msg.IsTermed())
}

func TestConsumer_NaksAbortedEvent(t *testing.T) {
	h := startConsumer(t)
	h.resolver.err = assert.AnError

	msg := pstest.NewMockMessage("reports.report", eventData(t, &types.Event{
		Type: types.EventNewReport,
		Data: types.EventPayload{Report: &types.Report{ID: 5}},
	}))
	h.consumer.Send(msg)

	assert.Eventually(t, msg.IsNaked, time.Second, 10*time.Millisecond)
	assert.False(t, msg.IsAcked())
}

func TestConsumer_TermsUndecodableMessage(t *testing.T) {
	h := startConsumer(t)

	msg := pstest.NewMockMessage("reports.report", []byte(`{"type": "BOGUS"}`))
	h.consumer.Send(msg)

	assert.Eventually(t, msg.IsTermed, time.Second, 10*time.Millisecond)
	assert.False(t, msg.IsAcked())
	assert.False(t, msg.IsNaked())
	assert.Empty(t, h.transport.calls)
}

func TestConsumer_DefersNotYetDueEvent(t *testing.T) {
	h := startConsumer(t)

	notBefore := time.Now().Add(3 * time.Minute)
	msg := pstest.NewMockMessage("reports.report", eventData(t, &types.Event{
		Type:      types.EventNewReport,
		Data:      types.EventPayload{Report: &types.Report{ID: 5}},
		NotBefore: &notBefore,
	}))
	h.consumer.Send(msg)

	// The message goes back to the broker with roughly the remaining
	// delay; nothing is delivered now.
	assert.Eventually(t, msg.IsNaked, time.Second, 10*time.Millisecond)
	delay := msg.NakDelay()
	assert.Greater(t, delay, 2*time.Minute)
	assert.LessOrEqual(t, delay, 3*time.Minute)
	assert.Empty(t, h.transport.calls)
}

func TestConsumer_ProcessesDueDeferredEvent(t *testing.T) {
	h := startConsumer(t)
	h.resolver.subs = []*types.Subscription{{ID: 1, URL: "https://a", ExpectedResponseCode: 200}}
	h.transport.status[1] = 200

	notBefore := time.Now().Add(-time.Second)
	msg := pstest.NewMockMessage("reports.report", eventData(t, &types.Event{
		Type:      types.EventNewReport,
		Data:      types.EventPayload{Report: &types.Report{ID: 5}},
		NotBefore: &notBefore,
	}))
	h.consumer.Send(msg)

	assert.Eventually(t, msg.IsAcked, time.Second, 10*time.Millisecond)
	assert.Len(t, h.transport.calls, 1)
}

func TestConsumer_SameReportStaysOrdered(t *testing.T) {
	h := startConsumer(t)
	h.resolver.subs = []*types.Subscription{{ID: 1, URL: "https://a", ExpectedResponseCode: 200}}
	h.transport.status[1] = 200

	actions := []types.Action{types.ActionNew, types.ActionEdit, types.ActionEdit, types.ActionDelete}
	msgs := make([]*pstest.MockMessage, 0, len(actions))
	for _, action := range actions {
		msg := pstest.NewMockMessage("reports.report", eventData(t, &types.Event{
			Type: action.Type(),
			Data: types.EventPayload{Report: &types.Report{ID: 5}},
		}))
		msgs = append(msgs, msg)
		h.consumer.Send(msg)
	}

	for _, msg := range msgs {
		assert.Eventually(t, msg.IsAcked, time.Second, 10*time.Millisecond)
	}

	// Events for the same report hash to the same worker, so the
	// transport sees them in send order.
	require.Len(t, h.transport.calls, len(actions))
	for i, action := range actions {
		assert.Equal(t, action, h.transport.calls[i].action)
	}
}

func TestConsumer_TermsOnPanic(t *testing.T) {
	h := startConsumer(t)
	h.resolver.panicMsg = "boom"

	msg := pstest.NewMockMessage("reports.report", eventData(t, &types.Event{
		Type: types.EventNewReport,
		Data: types.EventPayload{Report: &types.Report{ID: 5}},
	}))
	h.consumer.Send(msg)

	// A panic during fan-out is non-retryable; the message is dropped,
	// not requeued.
	assert.Eventually(t, msg.IsTermed, time.Second, 10*time.Millisecond)
	assert.False(t, msg.IsAcked())
	assert.False(t, msg.IsNaked())
}

func TestDeliveryCount(t *testing.T) {
	msg := pstest.NewMockMessage("reports.report", []byte("x"))
	msg.SetMetadata(pubsub.MessageMetadata{NumDelivered: 4})
	assert.Equal(t, uint64(4), deliveryCount(msg))
}

func TestConsumer_SubscribeError(t *testing.T) {
	mc := pstest.NewMockConsumer()
	mc.SetError(assert.AnError)

	engine := NewEngine(&fakeResolver{}, newFakeTransport(), &fakeScheduler{}, nil, nil, 0)
	ec := NewEventConsumer(mc, engine, 1, nil)

	err := ec.Start(context.Background())
	assert.Error(t, err)
}
