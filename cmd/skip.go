package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"deckfm/eventlog"
	"deckfm/logger"
)

var skipCmd = &cobra.Command{
	Use:   "skip [id]",
	Short: "Request a skip of the playing track, or of a queued id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		defer logger.Sync()

		store, err := newStore(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		var id uint64
		if len(args) == 1 {
			id, err = strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
		} else {
			st, err := loadState(ctx, store)
			if err != nil {
				return err
			}
			if st.NowPlaying == nil || st.NowPlaying.QueuedID == 0 {
				return fmt.Errorf("nothing is playing")
			}
			id = st.NowPlaying.QueuedID
		}

		if _, err := eventlog.NewAppender(store).AppendSkip(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Skip requested for #%d\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(skipCmd)
}
