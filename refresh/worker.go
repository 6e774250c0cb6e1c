package refresh

import (
	"context"
	"time"

	"github.com/rs/xid"

	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/platform"
)

// scheduledSweep is a single scheduled platform refresh sweep
type scheduledSweep struct {
	at         time.Time
	platform   platform.Platform
	platformID xid.ID
}

// Less is utilized to sort scheduled sweeps by their due-time (latest == first)
func (a scheduledSweep) Less(b scheduledSweep) bool {
	return a.at.Before(b.at)
}

// sweepInfo is the work context for the sweep routine
type sweepInfo struct {
	job        *Job
	platform   platform.Platform
	resCh      chan<- *sweepResponse
	platformID xid.ID
}

// sweepResponse is the sweep routine response
type sweepResponse struct {
	error      error               // encountered error, if any
	result     *types.RefreshResult // the sweep outcome
	platformID xid.ID              // the platform ID
}

// handleSweep refreshes the platform's full combination matrix
func handleSweep(
	ctx context.Context,
	info *sweepInfo,
) {
	result, err := info.job.RunPlatform(ctx, info.platform)

	response := &sweepResponse{
		error:      err,
		result:     result,
		platformID: info.platformID,
	}

	select {
	case <-ctx.Done():
	case info.resCh <- response:
	}
}
