package messaging

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
)

func newSyncBus() *InMemoryEventBus {
	config := DefaultInMemoryEventBusConfig()
	config.AsyncMode = false
	return NewInMemoryEventBus(config)
}

func TestEventBus_DeliversToTypedSubscriber(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var got shared.Event
	err := bus.Subscribe(shared.EventLeaderboardUpdated, func(event shared.Event) error {
		got = event
		return nil
	})
	require.NoError(t, err)

	event := leaderboard.NewLeaderboardUpdatedEvent("dojo-1", 7)
	require.NoError(t, bus.Publish(event))

	require.NotNil(t, got)
	assert.Equal(t, shared.EventLeaderboardUpdated, got.EventType())
	assert.Equal(t, "dojo-1", got.AggregateID())
}

func TestEventBus_TypedSubscriberIgnoresOtherTypes(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var calls int
	require.NoError(t, bus.Subscribe(shared.EventSeasonArchived, func(shared.Event) error {
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(leaderboard.NewLeaderboardUpdatedEvent("dojo-1", 7)))
	assert.Zero(t, calls)
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var calls int
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(leaderboard.NewLeaderboardUpdatedEvent("dojo-1", 1)))
	require.NoError(t, bus.Publish(leaderboard.NewSeasonArchivedEvent("dojo-1", 2025, 4)))
	assert.Equal(t, 2, calls)
}

func TestEventBus_HandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventLeaderboardUpdated, func(shared.Event) error {
		return errors.New("handler exploded")
	}))

	assert.NoError(t, bus.Publish(leaderboard.NewLeaderboardUpdatedEvent("dojo-1", 1)))
}

func TestEventBus_AsyncDelivery(t *testing.T) {
	config := DefaultInMemoryEventBusConfig()
	config.WorkerPoolSize = 2
	bus := NewInMemoryEventBus(config)
	defer bus.Close()

	var delivered atomic.Int64
	require.NoError(t, bus.Subscribe(shared.EventLeaderboardUpdated, func(shared.Event) error {
		delivered.Add(1)
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(leaderboard.NewLeaderboardUpdatedEvent("dojo-1", i)))
	}

	require.Eventually(t, func() bool {
		return delivered.Load() == 10
	}, time.Second, 5*time.Millisecond)
}

func TestEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(leaderboard.NewLeaderboardUpdatedEvent("dojo-1", 1)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventLeaderboardUpdated, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.NoError(t, bus.Close(), "closing twice is harmless")
}

func TestEventBus_NilChecks(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	assert.ErrorIs(t, bus.Subscribe(shared.EventLeaderboardUpdated, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}

func TestEventBus_Metrics(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventLeaderboardUpdated, func(shared.Event) error { return nil }))
	require.NoError(t, bus.Publish(leaderboard.NewLeaderboardUpdatedEvent("dojo-1", 1)))

	snapshot := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snapshot.TotalPublished)
	assert.Equal(t, int64(1), snapshot.TotalHandlerExecs)
	assert.Equal(t, 1.0, snapshot.HandlerSuccessRate)
}
