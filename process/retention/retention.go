// Package retention removes old read notifications.
package retention

import (
	"context"
	"fmt"
	"io"
	"time"

	"lppm/pkg/notify"
)

// Options mirror the command line flags.
type Options struct {
	OlderThanDays int
	DryRun        bool
	Yes           bool
	Now           time.Time
}

// Run deletes read notifications created more than OlderThanDays days before
// Now. Nothing is deleted in dry-run mode or without Yes; the number of
// matching rows is reported either way.
func Run(ctx context.Context, store *notify.Store, opts Options, w io.Writer) (int64, error) {
	if opts.OlderThanDays < 1 {
		return 0, fmt.Errorf("older-than-days must be at least 1, got %d", opts.OlderThanDays)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	cutoff := opts.Now.AddDate(0, 0, -opts.OlderThanDays)

	n, err := store.PurgeRead(ctx, cutoff, true)
	if err != nil {
		return 0, fmt.Errorf("count old notifications: %w", err)
	}
	fmt.Fprintf(w, "read notifications created before %s: %d\n", cutoff.Format(time.RFC3339), n)
	if n == 0 {
		return 0, nil
	}
	if opts.DryRun {
		fmt.Fprintln(w, "dry-run enabled; no changes will be made. Use --dry-run=false --yes to execute.")
		return 0, nil
	}
	if !opts.Yes {
		fmt.Fprintln(w, "Destructive operation. Pass --yes to confirm execution. Aborting.")
		return 0, nil
	}
	deleted, err := store.PurgeRead(ctx, cutoff, false)
	if err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}
	fmt.Fprintf(w, "deleted %d notifications\n", deleted)
	return deleted, nil
}
