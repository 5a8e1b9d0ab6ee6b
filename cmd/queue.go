package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"deckfm/eventlog"
	"deckfm/logger"
)

const opTimeout = 30 * time.Second

var queueBy string

var queueCmd = &cobra.Command{
	Use:   "queue <url>",
	Short: "Add a track to the shared queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		defer logger.Sync()

		store, err := newStore(cfg)
		if err != nil {
			return err
		}

		by := queueBy
		if by == "" {
			by = cfg.Identity
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		id, err := eventlog.NewAppender(store).AppendQueued(ctx, args[0], by)
		if err != nil {
			return err
		}
		fmt.Printf("Queued as #%d\n", id)
		return nil
	},
}

func init() {
	queueCmd.Flags().StringVar(&queueBy, "by", "", "attribution name (defaults to this participant's identity)")
	rootCmd.AddCommand(queueCmd)
}
