// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adworldmediaonline/email-cron/internal/provider"
)

// Namespace for deriving batch idempotency keys. Fixed so a retried cron run
// produces the same key for the same campaign chunk and the provider
// deduplicates the resend.
var nsCampaignBatch = uuid.MustParse("8f3c6a52-1f7e-4b16-9b1e-5f0f1a2d4c63")

// Sender is the slice of the provider client the dispatcher needs.
type Sender interface {
	SendBatch(ctx context.Context, msgs []provider.Message, idempotencyKey string) ([]provider.Outcome, error)
}

// BatchDispatcher splits a recipient set into rate-limited batches and turns
// provider responses into a per-recipient outcome list preserving input order.
type BatchDispatcher struct {
	Sender     Sender
	BatchSize  int
	BatchDelay time.Duration
	Logger     zerolog.Logger
}

const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = time.Second
)

func NewBatchDispatcher(sender Sender, batchSize int, batchDelay time.Duration, logger zerolog.Logger) *BatchDispatcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchDelay < 0 {
		batchDelay = DefaultBatchDelay
	}
	return &BatchDispatcher{
		Sender:     sender,
		BatchSize:  batchSize,
		BatchDelay: batchDelay,
		Logger:     logger,
	}
}

// IdempotencyKey derives the deterministic batch-scoped key for one chunk.
func IdempotencyKey(campaignID, chunk int) string {
	return uuid.NewSHA1(nsCampaignBatch, []byte(fmt.Sprintf("campaign:%d:chunk:%d", campaignID, chunk))).String()
}

// Dispatch sends all messages in order, one provider call per chunk, sleeping
// BatchDelay between chunks (never after the last). A chunk-level send error
// becomes a shared failure outcome for every member of that chunk instead of
// aborting the campaign.
func (d *BatchDispatcher) Dispatch(ctx context.Context, campaignID int, msgs []provider.Message) []provider.Outcome {
	outcomes := make([]provider.Outcome, 0, len(msgs))

	for chunkIdx, offset := 0, 0; offset < len(msgs); chunkIdx, offset = chunkIdx+1, offset+d.BatchSize {
		end := offset + d.BatchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		chunk := msgs[offset:end]
		key := IdempotencyKey(campaignID, chunkIdx)

		chunkOutcomes, err := d.Sender.SendBatch(ctx, chunk, key)
		if err != nil {
			d.Logger.Warn().Err(err).
				Int("campaign_id", campaignID).
				Int("chunk", chunkIdx).
				Msg("batch send failed, marking chunk members failed")
			shared := fmt.Sprintf("batch send failed: %v", err)
			chunkOutcomes = make([]provider.Outcome, len(chunk))
			for i := range chunk {
				chunkOutcomes[i] = provider.Outcome{Index: i, Err: shared}
			}
		}

		for _, out := range chunkOutcomes {
			out.Index += offset
			outcomes = append(outcomes, out)
		}

		if end < len(msgs) {
			if !sleepCtx(ctx, d.BatchDelay) {
				// Context gone: fail the remaining messages rather than leaving
				// them without an outcome.
				for i := end; i < len(msgs); i++ {
					outcomes = append(outcomes, provider.Outcome{Index: i, Err: "dispatch canceled"})
				}
				break
			}
		}
	}

	return outcomes
}

// sleepCtx sleeps for d, returning false if the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
