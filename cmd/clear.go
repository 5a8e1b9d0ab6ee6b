package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deckfm/eventlog"
	"deckfm/logger"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Void every pending entry in the shared queue",
	Long: `Voids every pending entry. The playing track is skipped first: the clear
watermark voids its queued event, and the hosting engine only reacts to skip
events mid-track.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		defer logger.Sync()

		store, err := newStore(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		appender := eventlog.NewAppender(store)
		st, err := loadState(ctx, store)
		if err != nil {
			return err
		}
		if st.NowPlaying != nil && st.NowPlaying.QueuedID != 0 {
			if _, err := appender.AppendSkip(ctx, st.NowPlaying.QueuedID); err != nil {
				return err
			}
		}
		if _, err := appender.AppendCleared(ctx); err != nil {
			return err
		}
		fmt.Println("Queue cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
