package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deckfm/logger"
	"deckfm/model"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the shared queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		defer logger.Sync()

		store, err := newStore(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		st, err := loadState(ctx, store)
		if err != nil {
			return err
		}

		if st.NowPlaying != nil {
			fmt.Printf("Now playing: %s  (#%d)\n", st.NowPlaying.Title, st.NowPlaying.QueuedID)
		} else {
			fmt.Println("Now playing: -")
		}

		if len(st.Items) == 0 {
			fmt.Println("Queue is empty")
			return nil
		}
		for i, track := range st.Items {
			title := track.Title
			if title == model.TitlePending {
				title = track.URL
			}
			line := fmt.Sprintf("%2d. #%-4d %s", i+1, track.QueuedID, title)
			if track.QueuedBy != "" {
				line += fmt.Sprintf("  [%s]", track.QueuedBy)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
