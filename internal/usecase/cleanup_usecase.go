package usecase

import (
	"context"
	"log"
	"time"
)

// CleanupUseCase finds and purges transfers past their retention
// window, removing storage and metadata together
type CleanupUseCase struct {
	transfers *TransferUseCase
	grace     time.Duration
}

// NewCleanupUseCase creates a new cleanup use case. grace is the
// extra buffer past expiry before a transfer becomes a candidate.
func NewCleanupUseCase(transfers *TransferUseCase, grace time.Duration) *CleanupUseCase {
	return &CleanupUseCase{
		transfers: transfers,
		grace:     grace,
	}
}

// RunOnce performs a single sweep. A failure deleting one transfer is
// logged and does not stop the rest; the transfer stays a candidate
// for the next pass.
func (c *CleanupUseCase) RunOnce(ctx context.Context, now time.Time) (int, error) {
	candidates, err := c.transfers.FindExpired(ctx, now, c.grace)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, t := range candidates {
		if err := c.transfers.DeleteExpiredTransfer(ctx, t.ID); err != nil {
			log.Printf("cleanup: transfer %s not deleted: %v", t.ID, err)
			continue
		}
		deleted++
	}

	if len(candidates) > 0 {
		log.Printf("cleanup: %d of %d expired transfers deleted", deleted, len(candidates))
	}
	return deleted, nil
}

// Start runs a sweep immediately and then on every tick until the
// context is cancelled
func (c *CleanupUseCase) Start(ctx context.Context, interval time.Duration) {
	log.Printf("cleanup: sweeping every %s (grace %s)", interval, c.grace)

	if _, err := c.RunOnce(ctx, time.Now()); err != nil {
		log.Printf("cleanup: sweep failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("cleanup: shutting down")
			return
		case <-ticker.C:
			if _, err := c.RunOnce(ctx, time.Now()); err != nil {
				log.Printf("cleanup: sweep failed: %v", err)
			}
		}
	}
}
