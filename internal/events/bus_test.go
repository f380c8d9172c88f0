package events

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitDeliversToSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []*Event
	bus.Subscribe(QueueReranked, func(e *Event) { received = append(received, e) })
	bus.Subscribe(ActionSubmitted, func(e *Event) { t.Fatal("wrong type delivered") })

	bus.Emit("ranking", &QueueRerankedData{SnapshotID: "snap-1", Entries: 12})

	require.Len(t, received, 1)
	assert.Equal(t, QueueReranked, received[0].Type)
	assert.Equal(t, "ranking", received[0].Module)
	assert.False(t, received[0].Timestamp.IsZero())

	data, ok := received[0].Data.(*QueueRerankedData)
	require.True(t, ok)
	assert.Equal(t, "snap-1", data.SnapshotID)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	calls := 0
	unsubscribe := bus.Subscribe(ActionExecuted, func(e *Event) { calls++ })
	other := bus.Subscribe(ActionExecuted, func(e *Event) {})
	assert.Equal(t, 2, bus.SubscriberCount(ActionExecuted))

	bus.Emit("actions", &ActionExecutedData{ActionID: "a"})
	unsubscribe()
	unsubscribe() // idempotent
	bus.Emit("actions", &ActionExecutedData{ActionID: "a"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, bus.SubscriberCount(ActionExecuted))
	other()
	assert.Equal(t, 0, bus.SubscriberCount(ActionExecuted))
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	count := 0
	bus.Subscribe(ActionArchived, func(e *Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit("actions", &ActionArchivedData{ActionID: "x"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
}

func TestEventDataTypes(t *testing.T) {
	tests := []struct {
		data     EventData
		expected EventType
	}{
		{&ActionSubmittedData{}, ActionSubmitted},
		{&ActionExecutedData{}, ActionExecuted},
		{&ActionArchivedData{}, ActionArchived},
		{&RerankStartedData{}, RerankStarted},
		{&QueueRerankedData{}, QueueReranked},
		{&RerankFailedData{}, RerankFailed},
		{&SnapshotArchivedData{}, SnapshotArchived},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.data.EventType())
		assert.Contains(t, AllTypes, tt.expected)
	}
}

func TestEvent_JSON(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got *Event
	bus.Subscribe(QueueReranked, func(e *Event) { got = e })
	bus.Emit("scheduler", &QueueRerankedData{SnapshotID: "s", Failures: []string{"k1"}})

	jsonData, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"type":"QUEUE_RERANKED"`)
	assert.Contains(t, string(jsonData), `"failures":["k1"]`)
}
