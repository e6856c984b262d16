package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueDeliversInOrder(t *testing.T) {
	q := newEventQueue()
	var got []string
	handler := func(e Event) { got = append(got, e.Reason) }

	done := make(chan struct{})
	go func() {
		q.run(func() []EventHandler { return []EventHandler{handler} })
		close(done)
	}()

	var want []string
	for i := 0; i < 100; i++ {
		r := string(rune('a' + i%26))
		want = append(want, r)
		q.push(Event{Type: EventStateChanged, Reason: r})
	}
	q.close()
	q.push(Event{Reason: "late"})

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "run did not return after close")
	}
	assert.Equal(t, want, got)
}

func TestEventQueueHandlerMayPushWithoutBlocking(t *testing.T) {
	q := newEventQueue()
	var got []EventType
	handler := func(e Event) {
		got = append(got, e.Type)
		if e.Type == EventConnected {
			q.push(Event{Type: EventStatus})
			q.close()
		}
	}

	done := make(chan struct{})
	go func() {
		q.run(func() []EventHandler { return []EventHandler{handler} })
		close(done)
	}()
	q.push(Event{Type: EventConnected})

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "run did not return")
	}
	assert.Equal(t, []EventType{EventConnected, EventStatus}, got)
}
