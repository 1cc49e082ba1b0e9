package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []LogEvent
}

func (s *recordingSink) Deliver(evt LogEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordingSink) snapshot() []LogEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogEvent(nil), s.events...)
}

func TestHub_DeliversInOrder(t *testing.T) {
	hub := NewHub(16, 0)
	sink := &recordingSink{}
	hub.AddSink(sink)
	hub.Start(context.Background())

	Log(hub, "s-1", SourceSystem, "start", "SQLAgent-start")
	StreamLog(hub, "s-1", SourceAI, "Hel", "SQLAgent-R1:stream", true)
	StreamLog(hub, "s-1", SourceAI, "lo", "SQLAgent-R1:stream", false)
	hub.Stop()

	got := sink.snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, KindLog, got[0].Kind)
	assert.Equal(t, SourceSystem, got[0].Type)
	assert.Equal(t, KindStreamLog, got[1].Kind)
	assert.True(t, got[1].IsFirst)
	assert.False(t, got[2].IsFirst)
	assert.Less(t, got[0].ID, got[1].ID)
	assert.Less(t, got[1].ID, got[2].ID)
	assert.NotEmpty(t, got[0].Timestamp)
}

func TestHub_TimestampFormat(t *testing.T) {
	hub := NewHub(4, 0)
	hub.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	sink := &recordingSink{}
	hub.AddSink(sink)
	hub.Start(context.Background())

	Log(hub, "", SourceAI, "m", "")
	hub.Stop()

	got := sink.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "2026-03-04 05:06:07", got[0].Timestamp)
}

func TestHub_DropsWhenFull(t *testing.T) {
	hub := NewHub(2, 0)
	// Not started: nothing drains the queue.
	for i := 0; i < 5; i++ {
		Log(hub, "", SourceAI, "m", "")
	}
	assert.Equal(t, uint64(3), hub.Dropped())
}

func TestHub_PublishAfterStopIsDropped(t *testing.T) {
	hub := NewHub(2, 0)
	hub.Start(context.Background())
	hub.Stop()

	Log(hub, "", SourceAI, "late", "")
	assert.Equal(t, uint64(1), hub.Dropped())
}

func TestHub_ConcurrentPublishers(t *testing.T) {
	hub := NewHub(1024, 0)
	sink := &recordingSink{}
	hub.AddSink(sink)
	hub.Start(context.Background())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				Log(hub, "", SourceAI, "m", "")
			}
		}()
	}
	wg.Wait()
	hub.Stop()

	assert.Equal(t, 400, len(sink.snapshot())+int(hub.Dropped()))
}

func TestHub_NilPublisherHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		Log(nil, "s", SourceAI, "m", "")
		StreamLog(nil, "s", SourceAI, "m", "", true)
	})
}

func TestHub_SinceFiltersByChannel(t *testing.T) {
	hub := NewHub(16, 3)
	hub.Start(context.Background())

	Log(hub, "a", SourceAI, "a1", "")
	Log(hub, "b", SourceAI, "b1", "")
	Log(hub, "a", SourceAI, "a2", "")
	Log(hub, "a", SourceAI, "a3", "")
	hub.Stop()

	// History keeps the last three events.
	all := hub.Since(GlobalChannel, 0, 0)
	require.Len(t, all, 3)
	assert.Equal(t, "b1", all[0].Message)

	sessionA := hub.Since(SessionChannel("a"), 0, 0)
	require.Len(t, sessionA, 2)
	assert.Equal(t, "a2", sessionA[0].Message)
	assert.Equal(t, "a3", sessionA[1].Message)

	after := hub.Since(SessionChannel("a"), sessionA[0].ID, 0)
	require.Len(t, after, 1)
	assert.Equal(t, "a3", after[0].Message)

	limited := hub.Since(GlobalChannel, 0, 1)
	assert.Len(t, limited, 1)
}

func TestHub_IDsFollowDeliveryOrderWithConcurrentPublishers(t *testing.T) {
	const publishers, perPublisher = 8, 50
	hub := NewHub(publishers*perPublisher, publishers*perPublisher)
	sink := &recordingSink{}
	hub.AddSink(sink)
	hub.Start(context.Background())

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				Log(hub, "s-1", SourceAI, "m", "")
			}
		}()
	}
	wg.Wait()
	hub.Stop()

	delivered := sink.snapshot()
	require.Len(t, delivered, publishers*perPublisher)
	for i, evt := range delivered {
		require.Equal(t, uint64(i+1), evt.ID, "event %d", i)
	}

	// Catching up from any delivered ID returns exactly the later events.
	mid := delivered[len(delivered)/2].ID
	after := hub.Since(SessionChannel("s-1"), mid, 0)
	require.Len(t, after, len(delivered)-len(delivered)/2-1)
	assert.Equal(t, mid+1, after[0].ID)
}
