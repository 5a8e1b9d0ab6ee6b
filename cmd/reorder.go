package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"deckfm/eventlog"
	"deckfm/logger"
)

var reorderCmd = &cobra.Command{
	Use:   "reorder <id> [id...]",
	Short: "Set an explicit order for the pending queue",
	Long: `Records the given queued ids as the new pending order. Pending entries
not named keep their relative order after the named ones.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		defer logger.Sync()

		store, err := newStore(cfg)
		if err != nil {
			return err
		}

		order := make([]uint64, 0, len(args))
		for _, arg := range args {
			id, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", arg)
			}
			order = append(order, id)
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		if _, err := eventlog.NewAppender(store).AppendReordered(ctx, order); err != nil {
			return err
		}
		fmt.Println("Queue reordered")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reorderCmd)
}
