package crawler

import (
	"context"

	"github.com/flare-foundation/evm-address-indexer/internal/database"
	"github.com/flare-foundation/evm-address-indexer/internal/entities"
)

// nextStartBlock resumes one block past the highest stored record touching
// address, never earlier than defaultStart.
func nextStartBlock[R entities.Record](
	ctx context.Context, store database.Store[R], address string, defaultStart uint64,
) (uint64, error) {
	highest, found, err := store.MaxBlock(ctx, address)
	if err != nil {
		return 0, err
	}

	return startBlock(highest, found, defaultStart), nil
}

func startBlock(highest uint64, found bool, defaultStart uint64) uint64 {
	if !found || highest+1 < defaultStart {
		return defaultStart
	}

	return highest + 1
}
