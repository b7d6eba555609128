package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/MJE43/casino-settle-go/internal/ledger"
)

// NonceKeyPrefix stores the highest nonce handed to a round under the
// active server seed. Rounds still open, or whose history write failed,
// are covered by it even though the rounds table never saw them.
const NonceKeyPrefix = "rngNonce_"

// NonceMark is the persisted nonce high-water mark.
type NonceMark struct {
	ServerSeedHash string `json:"server_seed_hash"`
	Nonce          uint64 `json:"nonce"`
}

// markMu orders Advance and the mark write across settlements sharing a
// source, so a lower nonce never overwrites a higher one.
var markMu sync.Mutex

// LoadNonceMark reads the mark for casinoID. ok is false when none was
// written yet. An unreadable mark is an error: resuming below it could
// replay a nonce.
func LoadNonceMark(ctx context.Context, kv ledger.KV, casinoID string) (mark NonceMark, ok bool, err error) {
	raw, err := kv.Get(ctx, NonceKeyPrefix+casinoID)
	if errors.Is(err, ledger.ErrNotFound) {
		return NonceMark{}, false, nil
	}
	if err != nil {
		return NonceMark{}, false, fmt.Errorf("load nonce mark: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &mark); err != nil {
		return NonceMark{}, false, fmt.Errorf("decode nonce mark %q: %w", raw, err)
	}
	return mark, true, nil
}

func storeNonceMark(ctx context.Context, kv ledger.KV, casinoID string, mark NonceMark) error {
	raw, err := json.Marshal(mark)
	if err != nil {
		return err
	}
	if err := kv.Set(ctx, NonceKeyPrefix+casinoID, string(raw)); err != nil {
		return fmt.Errorf("%w: nonce mark: %v", ledger.ErrPersistence, err)
	}
	return nil
}

// LoadMinesBoard returns the open mines board for casinoID, if any.
func LoadMinesBoard(ctx context.Context, kv ledger.KV, casinoID string) (*MinesBoard, error) {
	raw, err := kv.Get(ctx, MinesKeyPrefix+casinoID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load mines board: %w", err)
	}
	var board MinesBoard
	if err := json.Unmarshal([]byte(raw), &board); err != nil {
		return nil, fmt.Errorf("decode mines board: %w", err)
	}
	return &board, nil
}
