package display

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/tqvinh-dev/salepoint-backend/pkg/enums"
)

type stubAck struct {
	release chan struct{}
	err     error
	once    sync.Once
	awaited chan struct{}
}

func newStubAck(err error) *stubAck {
	return &stubAck{release: make(chan struct{}), err: err, awaited: make(chan struct{})}
}

func (a *stubAck) Get(ctx context.Context) (string, error) {
	a.once.Do(func() { close(a.awaited) })
	select {
	case <-a.release:
		return "server-1", a.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type stubTopic struct {
	mu   sync.Mutex
	msgs []*gcppubsub.Message
	ack  *stubAck
}

func (t *stubTopic) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
	if t.ack == nil {
		return nil
	}
	return t.ack
}

func (t *stubTopic) published() []*gcppubsub.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*gcppubsub.Message(nil), t.msgs...)
}

func TestPublishReturnsWithoutAwaitingAck(t *testing.T) {
	ack := newStubAck(nil)
	topic := &stubTopic{ack: ack}
	publisher := &PubSubPublisher{topic: topic}

	done := make(chan struct{})
	go func() {
		publisher.Publish(context.Background(), NewEvent(enums.DisplayEventPaymentSuccess, "term-1", nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on the server acknowledgement")
	}

	select {
	case <-ack.awaited:
	case <-time.After(time.Second):
		t.Fatal("acknowledgement was never collected in the background")
	}
	close(ack.release)
}

func TestPublishStampsAttributes(t *testing.T) {
	ack := newStubAck(nil)
	close(ack.release)
	topic := &stubTopic{ack: ack}
	publisher := &PubSubPublisher{topic: topic}

	publisher.Publish(context.Background(), NewEvent(enums.DisplayEventCartUpdate, "term-2", map[string]any{"total": 22000}))

	msgs := topic.published()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if got := msgs[0].Attributes["event_type"]; got != "cart_update" {
		t.Fatalf("event_type attribute = %q", got)
	}
	if got := msgs[0].Attributes["terminal_id"]; got != "term-2" {
		t.Fatalf("terminal_id attribute = %q", got)
	}
	if len(msgs[0].Data) == 0 {
		t.Fatal("message data is empty")
	}
}

func TestPublishSwallowsAckFailure(t *testing.T) {
	ack := newStubAck(errors.New("topic quota exceeded"))
	close(ack.release)
	topic := &stubTopic{ack: ack}
	publisher := &PubSubPublisher{topic: topic}

	publisher.Publish(context.Background(), NewEvent(enums.DisplayEventQRPayment, "term-3", nil))

	select {
	case <-ack.awaited:
	case <-time.After(time.Second):
		t.Fatal("acknowledgement was never collected in the background")
	}
}

func TestPublishToleratesNilResult(t *testing.T) {
	topic := &stubTopic{}
	publisher := &PubSubPublisher{topic: topic}

	publisher.Publish(context.Background(), NewEvent(enums.DisplayEventPopupClose, "term-4", nil))

	if got := len(topic.published()); got != 1 {
		t.Fatalf("expected 1 publish attempt, got %d", got)
	}
}
