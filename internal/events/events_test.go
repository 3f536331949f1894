package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSON(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"started", Started(), `{"event":"onRecordingStarted","data":null}`},
		{"completed", Completion("/tmp/a.m4a", 5*time.Second+120*time.Millisecond), `{"event":"onRecordingCompleted","data":{"path":"/tmp/a.m4a","duration":5120}}`},
		{"error", Failure("file path is required"), `{"event":"onError","data":"file path is required"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.event.Marshal()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestBus_PublishFansOut(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(4)
	b := bus.Subscribe(4)

	n := bus.Publish(Started())
	assert.Equal(t, 2, n)

	assert.Equal(t, RecordingStarted, (<-a.C).Name)
	assert.Equal(t, RecordingStarted, (<-b.C).Name)
}

func TestBus_FullSubscriberDropsWithoutBlocking(t *testing.T) {
	bus := NewBus()
	var dropped []Name
	bus.OnDrop = func(e Event) { dropped = append(dropped, e.Name) }

	slow := bus.Subscribe(1)
	fast := bus.Subscribe(4)

	bus.Publish(Started())
	n := bus.Publish(Failure("boom"))

	assert.Equal(t, 1, n, "only the subscriber with room receives the second event")
	assert.Equal(t, []Name{Error}, dropped)
	assert.Equal(t, RecordingStarted, (<-slow.C).Name)
	assert.Len(t, fast.C, 2)
}

func TestSubscription_Close(t *testing.T) {
	bus := NewBus()
	s := bus.Subscribe(1)
	require.Equal(t, 1, bus.Subscribers())

	s.Close()
	s.Close()
	assert.Equal(t, 0, bus.Subscribers())

	_, ok := <-s.C
	assert.False(t, ok, "channel should be closed")
	assert.Equal(t, 0, bus.Publish(Started()))
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	s := bus.Subscribe(1)
	bus.Close()

	_, ok := <-s.C
	assert.False(t, ok)

	late := bus.Subscribe(1)
	_, ok = <-late.C
	assert.False(t, ok, "subscribe after close yields a closed channel")

	s.Close()
}
