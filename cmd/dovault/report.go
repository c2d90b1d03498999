package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/dovault/internal/adapters/notify"
	"github.com/alejandrodnm/dovault/internal/adapters/storage"
)

// runReport prints the settlement history of every configured vault and the
// delivery log of each recorded round.
func runReport(ctx context.Context, store *storage.SQLiteStorage, console *notify.Console, vaults int) error {
	for i := 0; i < vaults; i++ {
		index := uint64(i)
		settlements, err := store.GetSettlements(ctx, index)
		if err != nil {
			return fmt.Errorf("vault %d settlements: %w", index, err)
		}
		fmt.Printf("\n=== vault %d: %d rounds settled ===\n", index, len(settlements))
		if err := console.NotifySettlements(ctx, settlements); err != nil {
			return err
		}
		for _, s := range settlements {
			if s.Skipped {
				continue
			}
			deliveries, err := store.GetDeliveries(ctx, index, s.Round)
			if err != nil {
				return fmt.Errorf("vault %d round %d deliveries: %w", index, s.Round, err)
			}
			if len(deliveries) == 0 {
				continue
			}
			fmt.Printf("\n--- vault %d round %d deliveries ---\n", index, s.Round)
			if err := console.NotifyDeliveries(ctx, deliveries); err != nil {
				return err
			}
		}

		events, err := store.GetEvents(ctx, index, 10)
		if err != nil {
			return fmt.Errorf("vault %d events: %w", index, err)
		}
		for _, e := range events {
			if err := console.Emit(ctx, e); err != nil {
				return err
			}
		}
	}
	slog.Info("report complete", "vaults", vaults)
	return nil
}
