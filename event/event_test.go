// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/gavel/event"
)

const testEvtType event.EventType = "test.event"

func receive(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		return evt
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return event.Event{}
}

func TestEventBusSingleSubscriber(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 999))
	evt := receive(t, subCh)
	assert.Equal(t, testEvtType, evt.Type)
	assert.Equal(t, 999, evt.Data)
	assert.False(t, evt.Timestamp.IsZero())
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, sub1Ch := eb.Subscribe(testEvtType)
	_, sub2Ch := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, "proposal"))
	assert.Equal(t, "proposal", receive(t, sub1Ch).Data)
	assert.Equal(t, "proposal", receive(t, sub2Ch).Data)
}

func TestEventBusTypeIsolation(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, voteCh := eb.Subscribe("test.vote")
	eb.Publish("test.other", event.NewEvent("test.other", 1))
	select {
	case evt := <-voteCh:
		t.Fatalf("received event of unexpected type %s", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	subId, subCh := eb.Subscribe(testEvtType)
	eb.Unsubscribe(testEvtType, subId)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 999))
	select {
	case _, ok := <-subCh:
		require.False(t, ok, "received unexpected event")
	case <-time.After(1 * time.Second):
		t.Fatal("subscriber channel was not closed after Unsubscribe")
	}
	// Unknown ids are ignored
	eb.Unsubscribe(testEvtType, subId)
}

func TestEventBusStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	_, subCh := eb.Subscribe(testEvtType)
	doneCh := make(chan struct{}, 1)
	eb.SubscribeFunc(testEvtType, func(evt event.Event) {
		doneCh <- struct{}{}
	})
	eb.Publish(testEvtType, event.NewEvent(testEvtType, "before"))
	select {
	case <-doneCh:
	case <-time.After(1 * time.Second):
		t.Fatal("SubscribeFunc did not receive event before Stop")
	}
	eb.Stop()
	closed := false
	timeout := time.After(1 * time.Second)
	for !closed {
		select {
		case _, ok := <-subCh:
			closed = !ok
		case <-timeout:
			t.Fatal("subscriber channel was not closed within timeout")
		}
	}
	eb.Publish(testEvtType, event.NewEvent(testEvtType, "after"))
	select {
	case <-doneCh:
		t.Fatal("SubscribeFunc received event after Stop")
	case <-time.After(50 * time.Millisecond):
	}
	// The bus can be reused after Stop
	_, newCh := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, "new"))
	assert.Equal(t, "new", receive(t, newCh).Data)
	eb.Stop()
}

func TestSubscribeFuncPanicRecovery(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	var received atomic.Int32
	done := make(chan struct{})
	eb.SubscribeFunc(testEvtType, func(evt event.Event) {
		if received.Add(1) == 1 {
			panic("handler failure")
		}
		close(done)
	})
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 1))
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 2))
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not survive a panic")
	}
	assert.Equal(t, int32(2), received.Load())
}

func TestEventBusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	eb := event.NewEventBus(reg, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 1))
	receive(t, subCh)
	count, err := testutil.GatherAndCount(reg, "gavel_event_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPublishUnsubscribeRace(t *testing.T) {
	for range 200 {
		eb := event.NewEventBus(nil, nil)
		subId, ch := eb.Subscribe(testEvtType)
		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := range 10 {
				eb.Publish(testEvtType, event.NewEvent(testEvtType, j))
			}
		}()
		go func() {
			defer wg.Done()
			eb.Unsubscribe(testEvtType, subId)
			eb.Stop()
		}()
		go func() {
			defer wg.Done()
			for range ch {
			}
		}()
		wg.Wait()
	}
}
