package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/model"
)

func newTestHub(t *testing.T, buffer int) *Hub {
	t.Helper()
	logger, _ := test.NewNullLogger()
	h := NewHub(logrus.NewEntry(logger), buffer)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func receive(t *testing.T, ch <-chan model.SeatEvent) model.SeatEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "stream closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return model.SeatEvent{}
}

func assertNoEvent(t *testing.T, ch <-chan model.SeatEvent) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_FansOutPerShow(t *testing.T) {
	h := newTestHub(t, 0)
	ctx := context.Background()

	a, err := h.Subscribe("show-1", "s-a")
	require.NoError(t, err)
	b, err := h.Subscribe("show-1", "s-b")
	require.NoError(t, err)
	other, err := h.Subscribe("show-2", "s-c")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Subscribers("show-1"))

	ev := model.SeatEvent{Type: model.SeatSelected, ShowID: "show-1", SeatNumber: "A1", UserID: "u-1"}
	h.Publish(ctx, ev)

	assert.Equal(t, ev, receive(t, a))
	assert.Equal(t, ev, receive(t, b))
	assertNoEvent(t, other)
}

func TestHub_PreservesOrderPerSubscriber(t *testing.T) {
	h := newTestHub(t, 16)
	ctx := context.Background()
	ch, err := h.Subscribe("show-1", "s-a")
	require.NoError(t, err)

	key := model.SeatKey{ShowID: "show-1", SeatNumber: "A1"}
	h.Publish(ctx, model.Selected(key, "u-1"))
	h.Publish(ctx, model.Released(key))

	assert.Equal(t, model.SeatSelected, receive(t, ch).Type)
	assert.Equal(t, model.SeatReleased, receive(t, ch).Type)
}

func TestHub_ResubscribeReplacesStream(t *testing.T) {
	h := newTestHub(t, 0)

	first, err := h.Subscribe("show-1", "s-a")
	require.NoError(t, err)
	second, err := h.Subscribe("show-2", "s-a")
	require.NoError(t, err)

	_, open := <-first
	assert.False(t, open, "previous stream must be closed")
	assert.Equal(t, 0, h.Subscribers("show-1"))

	h.Publish(context.Background(), model.Released(model.SeatKey{ShowID: "show-2", SeatNumber: "B1"}))
	assert.Equal(t, "B1", receive(t, second).SeatNumber)
}

func TestHub_ConcurrentResubscribeKeepsOneStream(t *testing.T) {
	h := newTestHub(t, 0)
	const n = 16

	streams := make([]<-chan model.SeatEvent, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch, err := h.Subscribe("show-1", "s-a")
			assert.NoError(t, err)
			streams[i] = ch
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, h.Subscribers("show-1"))

	closed := 0
	var live []<-chan model.SeatEvent
	for _, ch := range streams {
		select {
		case _, ok := <-ch:
			require.False(t, ok, "no event was published yet")
			closed++
		case <-time.After(20 * time.Millisecond):
			live = append(live, ch)
		}
	}
	assert.Equal(t, n-1, closed)
	require.Len(t, live, 1)

	h.Publish(context.Background(), model.Released(model.SeatKey{ShowID: "show-1", SeatNumber: "A1"}))
	assert.Equal(t, "A1", receive(t, live[0]).SeatNumber)
}

func TestHub_UnsubscribeClosesStream(t *testing.T) {
	h := newTestHub(t, 0)
	ch, err := h.Subscribe("show-1", "s-a")
	require.NoError(t, err)

	h.Unsubscribe("s-a")
	h.Unsubscribe("s-a") // no-op

	_, open := <-ch
	assert.False(t, open)

	// publishing with nobody listening is fine
	h.Publish(context.Background(), model.Released(model.SeatKey{ShowID: "show-1", SeatNumber: "A1"}))
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := newTestHub(t, 1)
	ctx := context.Background()
	ch, err := h.Subscribe("show-1", "s-slow")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			h.Publish(ctx, model.Released(model.SeatKey{ShowID: "show-1", SeatNumber: "A1"}))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	receive(t, ch)
	assertNoEvent(t, ch)
}

func TestHub_SubscribeAfterClose(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := NewHub(logrus.NewEntry(logger), 0)
	ch, err := h.Subscribe("show-1", "s-a")
	require.NoError(t, err)

	require.NoError(t, h.Close())
	_, open := <-ch
	assert.False(t, open)

	_, err = h.Subscribe("show-1", "s-b")
	require.ErrorIs(t, err, ErrClosed)
}
