package dispatch_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adworldmediaonline/email-cron/internal/dispatch"
	"github.com/adworldmediaonline/email-cron/internal/provider"
)

// fakeSender records every SendBatch call and can fail whole chunks.
type fakeSender struct {
	chunkSizes []int
	keys       []string
	failChunk  map[int]error // call index -> error
}

func (f *fakeSender) SendBatch(ctx context.Context, msgs []provider.Message, idempotencyKey string) ([]provider.Outcome, error) {
	call := len(f.chunkSizes)
	f.chunkSizes = append(f.chunkSizes, len(msgs))
	f.keys = append(f.keys, idempotencyKey)

	if err, ok := f.failChunk[call]; ok {
		return nil, err
	}

	outcomes := make([]provider.Outcome, len(msgs))
	for i := range msgs {
		outcomes[i] = provider.Outcome{Index: i, MessageID: fmt.Sprintf("msg-%d-%d", call, i)}
	}
	return outcomes, nil
}

func messages(n int) []provider.Message {
	msgs := make([]provider.Message, n)
	for i := range msgs {
		msgs[i] = provider.Message{
			From:    "team@example.com",
			To:      []string{fmt.Sprintf("user%d@example.com", i)},
			Subject: "hi",
			HTML:    "<p>hi</p>",
		}
	}
	return msgs
}

func TestDispatchChunksInOrder(t *testing.T) {
	sender := &fakeSender{}
	d := dispatch.NewBatchDispatcher(sender, 10, 0, zerolog.Nop())

	outcomes := d.Dispatch(context.Background(), 42, messages(25))

	assert.Equal(t, []int{10, 10, 5}, sender.chunkSizes)
	require.Len(t, outcomes, 25)
	for i, out := range outcomes {
		assert.Equal(t, i, out.Index, "outcomes must preserve input order")
		assert.True(t, out.OK())
		assert.NotEmpty(t, out.MessageID)
	}
}

func TestDispatchIdempotencyKeys(t *testing.T) {
	sender := &fakeSender{}
	d := dispatch.NewBatchDispatcher(sender, 10, 0, zerolog.Nop())

	d.Dispatch(context.Background(), 42, messages(25))

	require.Len(t, sender.keys, 3)
	for i, key := range sender.keys {
		assert.Equal(t, dispatch.IdempotencyKey(42, i), key, "keys must be derivable for retries")
	}
	assert.NotEqual(t, sender.keys[0], sender.keys[1], "each chunk gets its own key")
	assert.NotEqual(t, dispatch.IdempotencyKey(42, 0), dispatch.IdempotencyKey(43, 0), "keys are campaign-scoped")
}

func TestChunkErrorBecomesPerMemberFailures(t *testing.T) {
	sender := &fakeSender{failChunk: map[int]error{1: fmt.Errorf("connection refused")}}
	d := dispatch.NewBatchDispatcher(sender, 5, 0, zerolog.Nop())

	outcomes := d.Dispatch(context.Background(), 7, messages(12))

	require.Len(t, outcomes, 12)
	for i, out := range outcomes {
		if i >= 5 && i < 10 {
			assert.False(t, out.OK(), "chunk members share the failure")
			assert.Contains(t, out.Err, "connection refused")
		} else {
			assert.True(t, out.OK(), "other chunks are unaffected")
		}
	}
}

func TestDispatchCanceledContext(t *testing.T) {
	sender := &fakeSender{}
	d := dispatch.NewBatchDispatcher(sender, 5, 50*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := d.Dispatch(ctx, 7, messages(12))

	require.Len(t, outcomes, 12, "every message still gets an outcome")
	assert.Equal(t, []int{5}, sender.chunkSizes, "no chunk is attempted after cancellation")
	for _, out := range outcomes[5:] {
		assert.False(t, out.OK())
	}
}
