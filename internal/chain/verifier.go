package chain

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tishajain880/Chronobank/internal/ledger"
)

// Verifier checks the in-memory chain and its persisted copy.
type Verifier struct {
	chain *Chain
	repo  *GormRepository
	log   zerolog.Logger
}

func NewVerifier(c *Chain, repo *GormRepository, log zerolog.Logger) *Verifier {
	return &Verifier{chain: c, repo: repo, log: log.With().Str("component", "chain").Logger()}
}

// Check returns ErrIntegrityViolation if either copy fails verification
// or the stored tip is not part of the in-memory chain.
func (v *Verifier) Check(ctx context.Context) error {
	if err := v.chain.VerifyErr(); err != nil {
		v.log.Error().Err(err).Msg("in-memory chain failed verification")
		return err
	}
	if v.repo == nil {
		return nil
	}
	stored, err := v.repo.Open(ctx)
	if err != nil {
		v.log.Error().Err(err).Msg("stored chain failed verification")
		return err
	}
	// memory is read after storage so a commit in flight has finished
	// appending by the time Blocks returns
	got := stored.Last()
	mem := v.chain.Blocks()
	if pos := got.Index - 1; pos >= len(mem) || mem[pos].Hash != got.Hash {
		err := fmt.Errorf("stored block %d (%s) is not in memory: %w", got.Index, got.Hash, ledger.ErrIntegrityViolation)
		v.log.Error().Err(err).Msg("chain copies diverged")
		return err
	}
	return nil
}

func (v *Verifier) Chain() *Chain { return v.chain }
