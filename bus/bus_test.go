package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePublishDeliversFrame(t *testing.T) {
	b := New()
	recipient := []byte("addr-a")

	ch, unsubscribe := b.Subscribe(recipient)
	defer unsubscribe()

	b.Publish(recipient, []byte("frame-1"))

	select {
	case frame := <-ch:
		assert.Equal(t, []byte("frame-1"), frame)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestPublishToUnknownRecipientIsNoop(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() { b.Publish([]byte("nobody"), []byte("frame")) })
}

func TestUnsubscribePrunesEmptyTopic(t *testing.T) {
	b := New()
	recipient := []byte("addr-b")

	_, unsubscribe := b.Subscribe(recipient)
	require.Equal(t, 1, b.SubscriberCount(recipient))

	unsubscribe()
	assert.Equal(t, 0, b.SubscriberCount(recipient))
}

func TestPublishDropsOldestUnderBackpressure(t *testing.T) {
	b := New()
	recipient := []byte("addr-c")
	ch, unsubscribe := b.Subscribe(recipient)
	defer unsubscribe()

	for i := 0; i < channelCapacity+5; i++ {
		b.Publish(recipient, []byte{byte(i)})
	}

	// the channel never blocks the publisher and keeps delivering the most
	// recent frames rather than stalling.
	var last byte
	for {
		select {
		case frame := <-ch:
			last = frame[0]
		default:
			assert.Equal(t, byte(channelCapacity+4), last)
			return
		}
	}
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	b := New()
	recipient := []byte("addr-d")

	ch1, unsub1 := b.Subscribe(recipient)
	defer unsub1()
	ch2, unsub2 := b.Subscribe(recipient)
	defer unsub2()

	require.Equal(t, 2, b.SubscriberCount(recipient))
	b.Publish(recipient, []byte("hi"))

	assert.Equal(t, []byte("hi"), <-ch1)
	assert.Equal(t, []byte("hi"), <-ch2)
}
