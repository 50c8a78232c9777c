package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/realtime"
	"github.com/yungbote/chartmotion-backend/internal/realtime/bus"
)

func TestBusEmitterPublishesAfterCallerCancel(t *testing.T) {
	b := bus.NewMemory()
	var got []realtime.SSEMessage
	require.NoError(t, b.StartForwarder(context.Background(), func(m realtime.SSEMessage) { got = append(got, m) }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runID := uuid.New()
	PublishCancel(ctx, NewBusEmitter(logger.Nop(), b), runID)

	require.Len(t, got, 1)
	id, ok := realtime.CancelTarget(got[0])
	assert.True(t, ok)
	assert.Equal(t, runID, id)
}

func TestBusEmitterClosedBusIsQuiet(t *testing.T) {
	b := bus.NewMemory()
	require.NoError(t, b.Close())
	NewBusEmitter(logger.Nop(), b).Emit(context.Background(), realtime.SSEMessage{Channel: "run:x"})

	var nilEmitter *BusEmitter
	nilEmitter.Emit(context.Background(), realtime.SSEMessage{})
}
