// Package checkpoint answers whether a child-chain block has been committed to the root chain.
package checkpoint

import (
	"context"

	"github.com/rs/zerolog"

	"stakebridge/internal/contracts"
	"stakebridge/internal/logger"
	"stakebridge/internal/stakeerr"
)

// Verifier re-reads the checkpoint registry on every question. Failures propagate; there is no
// default answer.
type Verifier struct {
	resolver *contracts.Resolver
	caller   *contracts.Caller
	log      zerolog.Logger
}

func New(resolver *contracts.Resolver, caller *contracts.Caller, log zerolog.Logger) *Verifier {
	return &Verifier{resolver: resolver, caller: caller, log: logger.Component(log, "checkpoint")}
}

// LastCheckpointedBlock returns the end block of the most recent header block.
func (v *Verifier) LastCheckpointedBlock(ctx context.Context) (uint64, error) {
	registry, err := v.resolver.CheckpointRegistry(ctx)
	if err != nil {
		return 0, err
	}
	idx, err := v.caller.CurrentHeaderBlock(ctx, registry)
	if err != nil {
		return 0, err
	}
	hb, err := v.caller.HeaderBlock(ctx, registry, idx)
	if err != nil {
		return 0, err
	}
	if !hb.End.IsUint64() {
		return 0, stakeerr.New(stakeerr.CheckpointDataUnavailable, "end block %s out of range", hb.End).WithContract(registry)
	}
	v.log.Debug().Str("header_block", idx.String()).Uint64("end", hb.End.Uint64()).Msg("read last checkpoint")
	return hb.End.Uint64(), nil
}

// IsCheckpointed reports blockNumber <= LastCheckpointedBlock.
func (v *Verifier) IsCheckpointed(ctx context.Context, blockNumber uint64) (bool, error) {
	last, err := v.LastCheckpointedBlock(ctx)
	if err != nil {
		return false, err
	}
	return blockNumber <= last, nil
}
