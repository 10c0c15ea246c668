package shippo

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultTrackConcurrency bounds TrackAll when no limit is given.
const DefaultTrackConcurrency = 4

// TrackResult is the outcome of one lookup in TrackAll.
type TrackResult struct {
	Ref      TrackRef
	Response *Response
	Err      error
}

// TrackAll fetches the tracking status of every ref in parallel, at most limit at a time.
// Results are returned in the order of refs. A failed lookup is reported in its
// result and does not cancel the others; the returned error is only non-nil when
// ctx is done before all lookups finish.
func (c *Client) TrackAll(ctx context.Context, merchantID string, refs []TrackRef, limit int) ([]TrackResult, error) {
	if limit <= 0 {
		limit = DefaultTrackConcurrency
	}

	results := make([]TrackResult, len(refs))
	g := &errgroup.Group{}
	g.SetLimit(limit)

	for i, ref := range refs {
		g.Go(func() error {
			results[i].Ref = ref
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			resp, err := c.GetTrackStatus(ctx, merchantID, ref.Carrier, ref.TrackingNumber)
			results[i].Response = resp
			results[i].Err = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.logger.Ctx(ctx).Warn("Tracking poll interrupted",
			zap.String("merchant_id", merchantID),
			zap.Int("refs", len(refs)),
			zap.Error(err),
		)
		return results, err
	}
	return results, nil
}
