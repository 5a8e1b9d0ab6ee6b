// Package cmd holds the deckfm command line surface. The play command hosts
// the playback loop; the rest are one-shot queue operations against the shared
// event log.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"deckfm/config"
	"deckfm/eventlog"
	"deckfm/logger"
	"deckfm/queue"
)

var rootCmd = &cobra.Command{
	Use:   "deckfm",
	Short: "deckfm is a shared listening-room broadcast engine.",
	Long: `deckfm plays a queue that any participant can edit. The queue lives in a
shared append-only event log; every command here is an append to that log or a
projection of it.`,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and initializes logging for every command.
func setup() *config.Config {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})
	return cfg
}

// newStore selects the shared log backend from configuration.
func newStore(cfg *config.Config) (eventlog.Store, error) {
	switch cfg.StoreBackend {
	case "github":
		if cfg.QueueRepo == "" {
			return nil, fmt.Errorf("github backend requires DECKFM_QUEUE_REPO")
		}
		return eventlog.NewGitHubStore(cfg.GitHubAPI, cfg.QueueRepo, cfg.QueueFile, cfg.GitHubToken), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return eventlog.NewRedisStore(client, cfg.RedisKey), nil
	case "file", "":
		return eventlog.NewFileStore(cfg.LogFilePath), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.StoreBackend)
	}
}

// loadState projects the current queue state from the log.
func loadState(ctx context.Context, store eventlog.Store) (*queue.State, error) {
	content, _, err := store.Read(ctx)
	if err != nil {
		return nil, err
	}
	return queue.Project(eventlog.Parse(content)), nil
}
