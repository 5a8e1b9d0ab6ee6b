package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deckfm/logger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show finished tracks, most recent first",
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

		if len(st.History) == 0 {
			fmt.Println("No history yet")
			return nil
		}
		for i, item := range st.History {
			title := item.Title
			if title == "" {
				title = item.URL
			}
			line := fmt.Sprintf("%2d. %s", i+1, title)
			if item.QueuedBy != "" {
				line += fmt.Sprintf("  [%s]", item.QueuedBy)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
