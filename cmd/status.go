package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deckfm/logger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is playing and how much is queued",
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
			fmt.Printf("Playing: %s\n", st.NowPlaying.Title)
		} else {
			fmt.Println("Idle")
		}
		fmt.Printf("Pending: %d track(s)\n", len(st.Items))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
