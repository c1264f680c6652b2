package txsend

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"stakebridge/internal/stakeerr"
)

// AwaitConfirmation polls for the receipt of hash until it is mined, timeout passes or ctx ends.
// The receipt is returned whatever its status; callers decide what a failed status means.
func (s *Sender) AwaitConfirmation(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	start := time.Now()
	t := time.NewTicker(s.pollInterval)
	defer t.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		rcpt, err := s.pair.Receipt(ctx, hash, s.net)
		if err != nil {
			s.log.Debug().Err(err).Str("tx", hash.Hex()).Msg("receipt lookup failed, polling again")
		}
		if rcpt != nil {
			s.metrics.ConfirmationWait("mined", time.Since(start))
			return rcpt, nil
		}
		select {
		case <-ctx.Done():
			s.metrics.ConfirmationWait("cancelled", time.Since(start))
			return nil, ctx.Err()
		case <-deadline.C:
			s.metrics.ConfirmationWait("timeout", time.Since(start))
			return nil, stakeerr.New(stakeerr.ConfirmationTimeout, "no receipt for %s after %s", hash.Hex(), timeout)
		case <-t.C:
		}
	}
}
