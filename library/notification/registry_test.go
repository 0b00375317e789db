package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/library/notification"
)

func testMessage() notification.Message {
	return notification.NewItemAvailableMessage(lending.Item{ID: uuid.New(), Title: "Ubik"})
}

func Test_ConnectionRegistry_Deliver_ToLiveChannel(t *testing.T) {
	// arrange
	registry := notification.NewConnectionRegistry()
	defer registry.Close()
	userID := uuid.New()
	conn, err := registry.Connect(userID, "ws-1")
	require.NoError(t, err)
	msg := testMessage()

	// act
	delivered := registry.Deliver(context.Background(), userID, msg)

	// assert
	assert.True(t, delivered)
	frame := <-conn.Frames()
	received, err := notification.DecodeMessage(frame)
	require.NoError(t, err)
	assert.Equal(t, msg, received)
}

func Test_ConnectionRegistry_Deliver_WithoutChannel(t *testing.T) {
	// arrange
	registry := notification.NewConnectionRegistry()
	defer registry.Close()

	// act
	delivered := registry.Deliver(context.Background(), uuid.New(), testMessage())

	// assert
	assert.False(t, delivered)
}

func Test_ConnectionRegistry_Deliver_FullBufferTimesOut(t *testing.T) {
	// arrange
	registry := notification.NewConnectionRegistry(notification.WithBufferSize(1))
	defer registry.Close()
	userID := uuid.New()
	_, err := registry.Connect(userID, "ws-1")
	require.NoError(t, err)
	require.True(t, registry.Deliver(context.Background(), userID, testMessage()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// act
	delivered := registry.Deliver(ctx, userID, testMessage())

	// assert
	assert.False(t, delivered)
}

func Test_ConnectionRegistry_Connect_ReplacesPreviousChannel(t *testing.T) {
	// arrange
	registry := notification.NewConnectionRegistry()
	defer registry.Close()
	userID := uuid.New()
	first, err := registry.Connect(userID, "ws-1")
	require.NoError(t, err)

	// act
	second, err := registry.Connect(userID, "ws-2")
	require.NoError(t, err)
	delivered := registry.Deliver(context.Background(), userID, testMessage())

	// assert
	assert.True(t, delivered)
	assert.Equal(t, 1, registry.ConnectedUsers())
	assert.Len(t, second.Frames(), 1)
	assert.Len(t, first.Frames(), 0)
	select {
	case <-first.Done():
	default:
		t.Fatal("replaced connection must be done")
	}
}

func Test_ConnectionRegistry_Disconnect_OnlyRemovesCurrentChannel(t *testing.T) {
	// arrange
	registry := notification.NewConnectionRegistry()
	defer registry.Close()
	userID := uuid.New()
	stale, err := registry.Connect(userID, "ws-1")
	require.NoError(t, err)
	_, err = registry.Connect(userID, "ws-2")
	require.NoError(t, err)

	// act
	registry.Disconnect(stale)

	// assert
	assert.Equal(t, 1, registry.ConnectedUsers())
	assert.True(t, registry.Deliver(context.Background(), userID, testMessage()))
}

func Test_ConnectionRegistry_Close_DisconnectsEverybody(t *testing.T) {
	// arrange
	registry := notification.NewConnectionRegistry()
	userID := uuid.New()
	conn, err := registry.Connect(userID, "ws-1")
	require.NoError(t, err)

	// act
	registry.Close()
	registry.Close()

	// assert
	assert.Equal(t, 0, registry.ConnectedUsers())
	assert.False(t, registry.Deliver(context.Background(), userID, testMessage()))
	_, connectErr := registry.Connect(uuid.New(), "ws-2")
	assert.ErrorIs(t, connectErr, notification.ErrRegistryClosed)
	select {
	case <-conn.Done():
	default:
		t.Fatal("connection must be done after Close")
	}
}
