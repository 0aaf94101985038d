package bitcoin

import (
	"context"
	"time"
)

// BlockEvent is emitted whenever the watched node's chain tip advances.
type BlockEvent struct {
	Height int64
	Hash   string
}

// WatchBlocks polls the node for new blocks and emits one BlockEvent per
// height advance, standing in for the node's block-hash subscription named
// in §4.7. The returned channel is closed when ctx is cancelled.
func (c *Client) WatchBlocks(ctx context.Context, pollInterval time.Duration) <-chan BlockEvent {
	events := make(chan BlockEvent, 16)
	go func() {
		defer close(events)
		var lastHeight int64 = -1
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				height, err := c.GetBlockCount(ctx)
				if err != nil {
					c.logger.Error().Err(err).Msg("failed to poll block count")
					continue
				}
				if height <= lastHeight {
					continue
				}
				for h := lastHeight + 1; h <= height; h++ {
					if lastHeight >= 0 || h == height {
						hash, err := c.GetBlockHash(ctx, h)
						if err != nil {
							c.logger.Error().Err(err).Int64("height", h).Msg("failed to fetch block hash")
							continue
						}
						select {
						case events <- BlockEvent{Height: h, Hash: hash}:
						case <-ctx.Done():
							return
						}
					}
				}
				lastHeight = height
			}
		}
	}()
	return events
}
