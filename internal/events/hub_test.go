package events

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/site-auditor/internal/types"
)

func TestPublishReachesSubscriber(t *testing.T) {
	hub := NewHub()
	jobID := uuid.New()

	ch := hub.Subscribe(jobID)
	defer hub.Unsubscribe(jobID, ch)

	hub.Publish(jobID, types.StatusEvent{Message: "crawling site", Status: types.EventProcessing})

	select {
	case evt := <-ch:
		assert.Equal(t, "crawling site", evt.Message)
		assert.Equal(t, types.EventProcessing, evt.Status)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestPublishIsScopedToJob(t *testing.T) {
	hub := NewHub()
	jobA := uuid.New()
	jobB := uuid.New()

	chA := hub.Subscribe(jobA)
	chB := hub.Subscribe(jobB)
	defer hub.Unsubscribe(jobA, chA)
	defer hub.Unsubscribe(jobB, chB)

	hub.Publish(jobA, types.StatusEvent{Message: "only for A", Status: types.EventProcessing})

	select {
	case evt := <-chA:
		assert.Equal(t, "only for A", evt.Message)
	case <-time.After(time.Second):
		t.Fatal("subscriber of job A got nothing")
	}

	select {
	case evt := <-chB:
		t.Fatalf("subscriber of job B received %q", evt.Message)
	default:
	}
}

func TestSlowSubscriberLosesEventsWithoutBlocking(t *testing.T) {
	hub := NewHub()
	jobID := uuid.New()

	ch := hub.Subscribe(jobID)
	defer hub.Unsubscribe(jobID, ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+5; i++ {
			hub.Publish(jobID, types.StatusEvent{Message: "tick", Status: types.EventProcessing})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	assert.Len(t, ch, subscriberBuffer)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	jobID := uuid.New()

	ch := hub.Subscribe(jobID)
	hub.Unsubscribe(jobID, ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount(jobID))
}

func TestUnsubscribeTwiceIsSafe(t *testing.T) {
	hub := NewHub()
	jobID := uuid.New()

	ch := hub.Subscribe(jobID)
	hub.Unsubscribe(jobID, ch)
	hub.Unsubscribe(jobID, ch)
}

func TestPublishWithoutSubscribersIsSafe(t *testing.T) {
	hub := NewHub()
	hub.Publish(uuid.New(), types.StatusEvent{Message: "nobody listening", Status: types.EventCompleted})
}

func TestConcurrentSubscribePublish(t *testing.T) {
	hub := NewHub()
	jobID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch := hub.Subscribe(jobID)
			hub.Unsubscribe(jobID, ch)
		}()
		go func() {
			defer wg.Done()
			hub.Publish(jobID, types.StatusEvent{Message: "race", Status: types.EventProcessing})
		}()
	}
	wg.Wait()

	require.Equal(t, 0, hub.SubscriberCount(jobID))
}
